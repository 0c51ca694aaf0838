package calc

import (
	"fmt"
	"iter"
	"strings"

	"github.com/elliotchance/orderedmap/v3"
)

// Workbook is an in-memory CellSource: named worksheets in insertion
// order, named ranges and a compatibility mode. it may be read from many
// goroutines at once but not modified while being read.
type Workbook struct {
	sheets  *orderedmap.OrderedMap[string, *Worksheet]
	names   *NamedRangeTable
	strings *stringTable
	mode    CompatibilityMode
}

// NewWorkbook creates an empty workbook
func NewWorkbook(mode CompatibilityMode) *Workbook {
	return &Workbook{
		sheets:  orderedmap.NewOrderedMap[string, *Worksheet](),
		names:   NewNamedRangeTable(),
		strings: newStringTable(),
		mode:    mode,
	}
}

func (wb *Workbook) Mode() CompatibilityMode {
	return wb.mode
}

// AddSheet adds a worksheet. names are unique ignoring case.
func (wb *Workbook) AddSheet(name string) (*Worksheet, error) {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "[]:*?/\\") {
		return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid sheet name %q", name))
	}
	key := asciiUpper(name)
	if wb.sheets.Has(key) {
		return nil, NewApplicationError(AlreadyExists, fmt.Sprintf("sheet %q already exists", name))
	}
	ws := newWorksheet(name, wb.strings)
	wb.sheets.Set(key, ws)
	return ws, nil
}

// RemoveSheet drops a worksheet and its cells. formulas still pointing at
// it evaluate to #REF!.
func (wb *Workbook) RemoveSheet(name string) error {
	key := asciiUpper(name)
	ws, ok := wb.sheets.Get(key)
	if !ok || name == "" {
		return NewApplicationError(NotFound, fmt.Sprintf("sheet %q not found", name))
	}
	ws.reset()
	wb.sheets.Delete(key)
	return nil
}

// Worksheet looks a sheet up by name. the empty name is the first sheet.
func (wb *Workbook) Worksheet(name string) (*Worksheet, bool) {
	if name == "" {
		for _, ws := range wb.sheets.AllFromFront() {
			return ws, true
		}
		return nil, false
	}
	return wb.sheets.Get(asciiUpper(name))
}

// Worksheets yields the sheets in insertion order
func (wb *Workbook) Worksheets() iter.Seq[*Worksheet] {
	return wb.sheets.Values()
}

// Sheet implements CellSource
func (wb *Workbook) Sheet(name string) (string, bool) {
	ws, ok := wb.Worksheet(name)
	if !ok {
		return "", false
	}
	return ws.name, true
}

// Cell implements CellSource
func (wb *Workbook) Cell(ref CellReference) (Value, string, bool) {
	ws, ok := wb.Worksheet(ref.Sheet)
	if !ok || !ref.Valid() {
		return nil, "", false
	}
	return ws.get(ref.Row, ref.Column)
}

// Name implements NameSource
func (wb *Workbook) Name(name string) (Range, bool) {
	return wb.names.Lookup(name)
}

func (wb *Workbook) worksheetFor(ref CellReference) (*Worksheet, error) {
	if !ref.Valid() {
		return nil, NewApplicationError(OutOfRange, fmt.Sprintf("cell %s is off the grid", ref))
	}
	ws, ok := wb.Worksheet(ref.Sheet)
	if !ok {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("sheet %q not found", ref.Sheet))
	}
	return ws, nil
}

// Set stores user input: text starting with '=' is a formula, anything
// else is read as a number, boolean, error code or text. formulas are
// checked for syntax when stored.
func (wb *Workbook) Set(ref CellReference, input string) error {
	ws, err := wb.worksheetFor(ref)
	if err != nil {
		return err
	}
	if strings.HasPrefix(input, "=") && len(input) > 1 {
		if _, err := Parse(input, nil); err != nil {
			return err
		}
		ws.setFormula(ref.Row, ref.Column, input)
		return nil
	}
	return ws.setValue(ref.Row, ref.Column, ParseLiteral(input))
}

// SetValue stores a raw value. Empty clears the cell.
func (wb *Workbook) SetValue(ref CellReference, v Value) error {
	ws, err := wb.worksheetFor(ref)
	if err != nil {
		return err
	}
	return ws.setValue(ref.Row, ref.Column, v)
}

// SetShared expands a shared formula group and stores the formula for the
// master and every target
func (wb *Workbook) SetShared(shared SharedFormula, targets ...CellReference) error {
	template := shared.Template
	if !strings.HasPrefix(template, "=") {
		template = "=" + template
	}
	shared.Template = template
	if err := wb.Set(shared.Master, template); err != nil {
		return err
	}
	formulas, err := ExpandGroup(shared, targets...)
	if err != nil {
		return err
	}
	for i, target := range targets {
		if target.Sheet == "" {
			target.Sheet = shared.Master.Sheet
		}
		if err := wb.Set(target, formulas[i]); err != nil {
			return err
		}
	}
	return nil
}

// DefineName adds a named range. a range without a sheet refers to the
// first sheet.
func (wb *Workbook) DefineName(name string, r Range) error {
	sheet, ok := wb.Sheet(r.Start.Sheet)
	if !ok {
		return NewApplicationError(NotFound, fmt.Sprintf("sheet %q not found", r.Start.Sheet))
	}
	r.Start.Sheet, r.End.Sheet = sheet, sheet
	return wb.names.Define(name, r)
}

// Names returns the named range table
func (wb *Workbook) Names() *NamedRangeTable {
	return wb.names
}

// Formulas yields every formula cell, sheet by sheet in row-major order
func (wb *Workbook) Formulas() iter.Seq[CellReference] {
	return wb.walk(true)
}

// Cells yields every occupied cell, sheet by sheet in row-major order
func (wb *Workbook) Cells() iter.Seq[CellReference] {
	return wb.walk(false)
}

func (wb *Workbook) walk(formulasOnly bool) iter.Seq[CellReference] {
	return func(yield func(CellReference) bool) {
		for ws := range wb.sheets.Values() {
			for ref := range ws.cells(formulasOnly) {
				if !yield(ref) {
					return
				}
			}
		}
	}
}
