// Package seed loads bots and allow-listed usernames from a TOML or YAML
// file and registers them through the admin service. Re-running a seed is
// safe: entries that already exist are skipped.
//
// Example (TOML):
//
//	bots  = ["Maisons Paris", "Bot One"]
//	users = ["alice", "bob"]
//
// The same keys are accepted in YAML.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/services"
)

// Format identifies the encoding of a seed file.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for file extensions other than .toml,
// .yaml and .yml.
var ErrUnsupportedFormat = errors.New("unsupported seed format")

// File is the decoded seed document.
type File struct {
	Bots  []string `toml:"bots" yaml:"bots"`
	Users []string `toml:"users" yaml:"users"`
}

// Admin is the subset of services.AdminService the loader needs.
type Admin interface {
	CreateBot(ctx context.Context, name string) (*domain.Bot, error)
	AddUser(ctx context.Context, username string) (*domain.AllowedUser, error)
}

// Report counts what Apply created and skipped.
type Report struct {
	BotsCreated  int
	BotsSkipped  int
	UsersCreated int
	UsersSkipped int
}

// FormatFromPath picks the decoder from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads and decodes the seed file at path.
func Load(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(bytes.NewReader(raw), format)
}

// Parse decodes a seed document. Unknown keys are rejected so that typos do
// not silently drop entries.
func Parse(r io.Reader, format Format) (*File, error) {
	var f File
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode toml seed: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml seed: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return &f, nil
}

// Apply registers every bot and user in f. Existing entries are counted as
// skipped; any other failure stops the run and is returned with the entry
// that caused it.
func Apply(ctx context.Context, admin Admin, f *File) (Report, error) {
	var rep Report
	if f == nil {
		return rep, nil
	}
	l := zerolog.Ctx(ctx)

	for _, name := range f.Bots {
		b, err := admin.CreateBot(ctx, name)
		switch {
		case err == nil:
			rep.BotsCreated++
			l.Debug().Str("bot_id", b.ID).Msg("seed_bot_created")
		case errors.Is(err, services.ErrBotExists):
			rep.BotsSkipped++
		default:
			return rep, fmt.Errorf("seed bot %q: %w", name, err)
		}
	}

	for _, username := range f.Users {
		_, err := admin.AddUser(ctx, username)
		switch {
		case err == nil:
			rep.UsersCreated++
		case errors.Is(err, services.ErrUserExists):
			rep.UsersSkipped++
		default:
			return rep, fmt.Errorf("seed user %q: %w", username, err)
		}
	}

	l.Info().
		Int("bots_created", rep.BotsCreated).
		Int("bots_skipped", rep.BotsSkipped).
		Int("users_created", rep.UsersCreated).
		Int("users_skipped", rep.UsersSkipped).
		Msg("seed_applied")
	return rep, nil
}

// LoadAndApply is Load followed by Apply.
func LoadAndApply(ctx context.Context, admin Admin, path string) (Report, error) {
	f, err := Load(path)
	if err != nil {
		return Report{}, err
	}
	return Apply(ctx, admin, f)
}
