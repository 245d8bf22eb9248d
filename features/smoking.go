package features

import (
	"fmt"
	"strings"
)

// Smoking is the ordinal encoding of a smoking status.
type Smoking int

const (
	SmokingNever Smoking = iota
	SmokingFormer
	SmokingCurrent
)

// ParseSmoking maps a status name (case-insensitive) to its ordinal.
func ParseSmoking(s string) (Smoking, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "never":
		return SmokingNever, nil
	case "former":
		return SmokingFormer, nil
	case "current":
		return SmokingCurrent, nil
	default:
		return SmokingNever, fmt.Errorf("%w: unknown smoking status %q (must be one of: Never, Former, Current)", ErrInvalidInput, s)
	}
}

func (s Smoking) String() string {
	switch s {
	case SmokingNever:
		return "Never"
	case SmokingFormer:
		return "Former"
	case SmokingCurrent:
		return "Current"
	default:
		return fmt.Sprintf("Smoking(%d)", int(s))
	}
}
