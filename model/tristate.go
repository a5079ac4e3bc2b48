package model

import "github.com/pkg/errors"

// Tristate is a three-valued boolean for style properties the format does
// not expose directly. The zero value is Unknown so a forgotten field can
// never silently read as "false": callers that need a boolean must go
// through Bool and handle the unknown case.
type Tristate int

const (
	Unknown Tristate = iota
	No
	Yes
)

// Definite converts a known boolean into a Tristate.
func Definite(v bool) Tristate {
	if v {
		return Yes
	}
	return No
}

// IsKnown reports whether the value carries a definite answer.
func (t Tristate) IsKnown() bool { return t == Yes || t == No }

// Bool returns the definite value and whether one exists.
func (t Tristate) Bool() (value, known bool) {
	switch t {
	case Yes:
		return true, true
	case No:
		return false, true
	default:
		return false, false
	}
}

func (t Tristate) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so Tristate serializes as
// a readable string instead of a bare integer.
func (t Tristate) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tristate) UnmarshalText(b []byte) error {
	switch string(b) {
	case "yes":
		*t = Yes
	case "no":
		*t = No
	case "unknown", "":
		*t = Unknown
	default:
		return errors.Errorf("model: invalid tristate %q", b)
	}
	return nil
}
