package calc

import (
	"fmt"
	"strings"
)

// CompatibilityMode selects the coercion rules of a specific spreadsheet
// application. it is passed explicitly through every validation call and is
// never mutated during an evaluation.
type CompatibilityMode uint8

const (
	ModeExcel CompatibilityMode = iota
	ModeOpenOffice
	ModeGnumeric
)

func (m CompatibilityMode) String() string {
	switch m {
	case ModeExcel:
		return "EXCEL"
	case ModeOpenOffice:
		return "OPENOFFICE"
	case ModeGnumeric:
		return "GNUMERIC"
	}
	return fmt.Sprintf("CompatibilityMode(%d)", uint8(m))
}

// ParseCompatibilityMode parses EXCEL, OPENOFFICE or GNUMERIC, ignoring case
func ParseCompatibilityMode(s string) (CompatibilityMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "EXCEL":
		return ModeExcel, nil
	case "OPENOFFICE":
		return ModeOpenOffice, nil
	case "GNUMERIC":
		return ModeGnumeric, nil
	}
	return ModeExcel, NewApplicationError(InvalidArgument, fmt.Sprintf("unknown compatibility mode %q", s))
}

// UnmarshalText lets modes be read from flags and yaml
func (m *CompatibilityMode) UnmarshalText(text []byte) error {
	mode, err := ParseCompatibilityMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

func (m CompatibilityMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
