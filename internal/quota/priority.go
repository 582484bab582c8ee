package quota

import (
	"errors"
	"math"
)

// Priority is the projected category weighting of a user.
type Priority struct {
	Ghibli int `json:"ghibli"`
	Sanrio int `json:"sanrio"`
}

var (
	// ErrPriorityNotInteger is returned for priority inputs that are not
	// non-negative whole JSON numbers.
	ErrPriorityNotInteger = errors.New("ghibli and sanrio must be non-negative integers")
	// ErrPriorityTotal is returned when ghibli + sanrio exceeds MaxCredits.
	ErrPriorityTotal = errors.New("priority total must be <= 3")
)

// ProjectPriority is the lenient read path over stored priority columns.
// Missing or negative values count as zero; nil is returned when both are
// unset or both are zero.
func ProjectPriority(ghibli, sanrio *int) *Priority {
	if ghibli == nil && sanrio == nil {
		return nil
	}
	p := Priority{Ghibli: lenient(ghibli), Sanrio: lenient(sanrio)}
	if p.Ghibli == 0 && p.Sanrio == 0 {
		return nil
	}
	return &p
}

func lenient(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

// ParsePriorityValue is the strict write path for one decoded JSON value.
// Only numbers holding a non-negative whole value are accepted; strings,
// booleans, null and fractional numbers are rejected, never coerced.
func ParsePriorityValue(v any) (int, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, ErrPriorityNotInteger
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, ErrPriorityNotInteger
	}
	return int(f), nil
}

// ValidatePriority checks an already-parsed pair before it is written.
func ValidatePriority(ghibli, sanrio int) error {
	if ghibli < 0 || sanrio < 0 {
		return ErrPriorityNotInteger
	}
	if ghibli+sanrio > MaxCredits {
		return ErrPriorityTotal
	}
	return nil
}

// IsClear reports whether the pair means "no priority".
func IsClear(ghibli, sanrio int) bool { return ghibli == 0 && sanrio == 0 }
