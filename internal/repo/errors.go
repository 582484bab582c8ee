package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is gorm.ErrRecordNotFound under the repo's name.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate reports an insert that hit a unique constraint.
var ErrDuplicate = errors.New("repo: duplicate")

// duplicateMarkers are lower-cased fragments of unique-violation messages
// from sqlite, postgres and mysql, for errors TranslateError misses.
var duplicateMarkers = []string{
	"unique constraint",
	"constraint failed: unique",
	"duplicate key",
	"duplicate entry",
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range duplicateMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
