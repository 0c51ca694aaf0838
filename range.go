package calc

import (
	"fmt"
	"iter"

	"github.com/elliotchance/orderedmap/v3"
)

// NamedRangeTable holds the workbook's named ranges in definition order.
// names are matched case-insensitively and keep the spelling of their
// first definition.
type NamedRangeTable struct {
	ranges *orderedmap.OrderedMap[string, namedRange]
}

type namedRange struct {
	name  string
	value Range
}

func NewNamedRangeTable() *NamedRangeTable {
	return &NamedRangeTable{ranges: orderedmap.NewOrderedMap[string, namedRange]()}
}

// validName reports whether name can be used as a named range: it must
// lex as a plain identifier, so it cannot look like a cell, a boolean or a
// function call
func validName(name string) bool {
	tokens, err := NewLexer(name).Tokenize()
	return err == nil && len(tokens) == 2 && tokens[0].Type == TokenIdentifier && tokens[0].Value == name
}

// Define adds or redefines a named range. the range must name its sheet.
func (t *NamedRangeTable) Define(name string, r Range) error {
	if !validName(name) {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("%q is not a valid range name", name))
	}
	if r.Start.Sheet == "" {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("named range %s must name its sheet", name))
	}
	key := asciiUpper(name)
	if existing, ok := t.ranges.Get(key); ok {
		name = existing.name
	}
	t.ranges.Set(key, namedRange{name: name, value: r})
	return nil
}

// Undefine removes a name. returns true if it existed.
func (t *NamedRangeTable) Undefine(name string) bool {
	return t.ranges.Delete(asciiUpper(name))
}

// Lookup returns the range a name stands for
func (t *NamedRangeTable) Lookup(name string) (Range, bool) {
	nr, ok := t.ranges.Get(asciiUpper(name))
	return nr.value, ok
}

// All yields the names and their ranges in definition order
func (t *NamedRangeTable) All() iter.Seq2[string, Range] {
	return func(yield func(string, Range) bool) {
		for _, nr := range t.ranges.AllFromFront() {
			if !yield(nr.name, nr.value) {
				return
			}
		}
	}
}

func (t *NamedRangeTable) Len() int {
	return t.ranges.Len()
}
