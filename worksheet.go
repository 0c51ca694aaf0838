package calc

import (
	"iter"
	"slices"
)

// chunkKey indexes chunks in a Worksheet
type chunkKey struct {
	row int
	col int
}

const (
	chunkRows = 256 // rows per chunk
	chunkCols = 256 // columns per chunk
	chunkSize = chunkRows * chunkCols
)

// stored kinds of a chunk slot
const (
	slotEmpty uint8 = iota
	slotNumber
	slotText
	slotBoolean
	slotError
	slotFormula
)

// chunk is a 256x256 region of cells in structure-of-arrays layout. the
// value arrays are allocated on first use.
type chunk struct {
	kinds    []uint8
	occupied int

	numbers    []float64 // numbers, booleans as 0/1 and error kinds
	stringIDs  []uint32  // interned text
	formulaIDs []uint32  // interned formula text
}

func (c *chunk) ensureNumbers() {
	if c.numbers == nil {
		c.numbers = make([]float64, chunkSize)
	}
}

func (c *chunk) ensureStrings() {
	if c.stringIDs == nil {
		c.stringIDs = make([]uint32, chunkSize)
	}
}

func (c *chunk) ensureFormulas() {
	if c.formulaIDs == nil {
		c.formulaIDs = make([]uint32, chunkSize)
	}
}

// Worksheet is a sparse grid of cells stored in chunks
type Worksheet struct {
	name    string
	chunks  map[chunkKey]*chunk
	strings *stringTable
}

func newWorksheet(name string, strings *stringTable) *Worksheet {
	return &Worksheet{
		name:    name,
		chunks:  make(map[chunkKey]*chunk),
		strings: strings,
	}
}

func (s *Worksheet) Name() string {
	return s.name
}

// locate returns the chunk holding row/col and the slot index in it. the
// chunk is created when create is set.
func (s *Worksheet) locate(row, col int, create bool) (*chunk, int) {
	key := chunkKey{row: row / chunkRows, col: col / chunkCols}
	c, exists := s.chunks[key]
	if !exists {
		if !create {
			return nil, 0
		}
		c = &chunk{kinds: make([]uint8, chunkSize)}
		s.chunks[key] = c
	}
	// column-first indexing, ranges are mostly read down columns
	return c, (col%chunkCols)*chunkRows + row%chunkRows
}

// clear empties a slot, releasing its strings
func (s *Worksheet) clear(c *chunk, idx int) {
	switch c.kinds[idx] {
	case slotEmpty:
		return
	case slotText:
		s.strings.release(c.stringIDs[idx])
		c.stringIDs[idx] = 0
	case slotFormula:
		s.strings.release(c.formulaIDs[idx])
		c.formulaIDs[idx] = 0
	}
	c.kinds[idx] = slotEmpty
	c.occupied--
}

// setValue stores a scalar. Empty clears the cell.
func (s *Worksheet) setValue(row, col int, v Value) error {
	if _, blank := v.(Empty); blank || v == nil {
		if c, idx := s.locate(row, col, false); c != nil {
			s.clear(c, idx)
		}
		return nil
	}
	if _, isArray := v.(*ArrayValue); isArray {
		return NewApplicationError(InvalidArgument, "a cell cannot store an array")
	}

	c, idx := s.locate(row, col, true)
	s.clear(c, idx)
	switch x := v.(type) {
	case Number:
		c.ensureNumbers()
		c.kinds[idx], c.numbers[idx] = slotNumber, float64(x)
	case Boolean:
		c.ensureNumbers()
		c.numbers[idx] = 0
		if x {
			c.numbers[idx] = 1
		}
		c.kinds[idx] = slotBoolean
	case Text:
		c.ensureStrings()
		c.kinds[idx], c.stringIDs[idx] = slotText, s.strings.intern(string(x))
	case *ErrorValue:
		c.ensureNumbers()
		c.kinds[idx], c.numbers[idx] = slotError, float64(x.Kind)
	}
	c.occupied++
	return nil
}

// setFormula stores formula text, '=' included
func (s *Worksheet) setFormula(row, col int, formula string) {
	c, idx := s.locate(row, col, true)
	s.clear(c, idx)
	c.ensureFormulas()
	c.kinds[idx], c.formulaIDs[idx] = slotFormula, s.strings.intern(formula)
	c.occupied++
}

// get returns the stored raw value or formula of a cell
func (s *Worksheet) get(row, col int) (Value, string, bool) {
	c, idx := s.locate(row, col, false)
	if c == nil {
		return nil, "", false
	}
	switch c.kinds[idx] {
	case slotNumber:
		return Number(c.numbers[idx]), "", true
	case slotBoolean:
		return Boolean(c.numbers[idx] != 0), "", true
	case slotError:
		return newError(ErrorKind(c.numbers[idx])), "", true
	case slotText:
		text, _ := s.strings.lookup(c.stringIDs[idx])
		return Text(text), "", true
	case slotFormula:
		formula, _ := s.strings.lookup(c.formulaIDs[idx])
		return nil, formula, true
	}
	return nil, "", false
}

// cells yields the occupied cells in row-major order. formulasOnly
// restricts it to formula cells.
func (s *Worksheet) cells(formulasOnly bool) iter.Seq[CellReference] {
	return func(yield func(CellReference) bool) {
		var refs []CellReference
		for key, c := range s.chunks {
			if c.occupied == 0 {
				continue
			}
			for idx, kind := range c.kinds {
				if kind == slotEmpty || (formulasOnly && kind != slotFormula) {
					continue
				}
				refs = append(refs, CellReference{
					Sheet:  s.name,
					Row:    key.row*chunkRows + idx%chunkRows,
					Column: key.col*chunkCols + idx/chunkRows,
				})
			}
		}
		slices.SortFunc(refs, func(a, b CellReference) int {
			if a.Row != b.Row {
				return a.Row - b.Row
			}
			return a.Column - b.Column
		})
		for _, ref := range refs {
			if !yield(ref) {
				return
			}
		}
	}
}

// reset clears every cell, releasing the interned strings
func (s *Worksheet) reset() {
	for _, c := range s.chunks {
		for idx := range c.kinds {
			s.clear(c, idx)
		}
	}
	s.chunks = make(map[chunkKey]*chunk)
}

// Len counts the occupied cells
func (s *Worksheet) Len() int {
	n := 0
	for _, c := range s.chunks {
		n += c.occupied
	}
	return n
}
