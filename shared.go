package calc

import (
	"fmt"
	"strings"
)

// SharedFormula is a formula stored once at its master cell and reused by
// a group of dependent cells
type SharedFormula struct {
	Master   CellReference
	Template string
}

// Expand rewrites the template for target: every relative axis of every
// cell and range reference moves by the distance from the master to the
// target, absolute axes stay. the rest of the text is kept as written. a
// reference pushed off the grid becomes #REF!. a template that does not
// tokenize is a usage error.
func Expand(shared SharedFormula, target CellReference) (string, error) {
	if !shared.Master.Valid() || !target.Valid() {
		return "", NewApplicationError(OutOfRange, "shared formula master and target must be on the grid")
	}
	tokens, err := NewLexer(shared.Template).Tokenize()
	if err != nil {
		return "", wrapApplicationError(InvalidArgument, err, "malformed shared formula template at %s", shared.Master)
	}

	dRow := target.Row - shared.Master.Row
	dCol := target.Column - shared.Master.Column
	runes := []rune(shared.Template)

	var sb strings.Builder
	last := 0
	for _, tok := range tokens {
		if tok.Type != TokenCell && tok.Type != TokenRange {
			continue
		}
		shifted, err := shiftReference(tok, dRow, dCol)
		if err != nil {
			return "", wrapApplicationError(InvalidArgument, err, "malformed reference in shared formula at %s", shared.Master)
		}
		sb.WriteString(string(runes[last:tok.Pos]))
		sb.WriteString(shifted)
		last = tok.End
	}
	sb.WriteString(string(runes[last:]))
	return sb.String(), nil
}

// ExpandGroup expands the formula for each target in order
func ExpandGroup(shared SharedFormula, targets ...CellReference) ([]string, error) {
	out := make([]string, 0, len(targets))
	for _, target := range targets {
		formula, err := Expand(shared, target)
		if err != nil {
			return nil, err
		}
		out = append(out, formula)
	}
	return out, nil
}

// shiftReference renders a cell or range token moved by the deltas. the
// sheet prefix is kept exactly as written.
func shiftReference(tok Token, dRow, dCol int) (string, error) {
	prefix, addr := "", tok.Value
	if idx := strings.LastIndexByte(tok.Value, '!'); idx >= 0 {
		prefix, addr = tok.Value[:idx+1], tok.Value[idx+1:]
	}

	parts := strings.Split(addr, ":")
	shifted := make([]string, len(parts))
	for i, part := range parts {
		col, row, absC, absR, ok := parseA1(part)
		if !ok {
			return "", fmt.Errorf("invalid cell address %q", part)
		}
		ref, ok := CellReference{Column: col, Row: row, AbsColumn: absC, AbsRow: absR}.Offset(dRow, dCol)
		if !ok {
			return ErrorCode(ErrRef), nil
		}
		shifted[i] = ref.Address()
	}
	return prefix + strings.Join(shifted, ":"), nil
}
