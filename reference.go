package calc

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// grid limits, matching current desktop spreadsheets
const (
	MaxRows    = 1048576
	MaxColumns = 16384
)

// CellReference addresses a single cell. Column and Row are zero-based; the
// Abs flags mark the axes written with '$', which shared formula expansion
// leaves untouched. An empty Sheet means the sheet of the formula's origin.
type CellReference struct {
	Sheet     string
	Column    int
	Row       int
	AbsColumn bool
	AbsRow    bool
}

// Cell is shorthand for a relative reference on the default sheet
func Cell(column, row int) CellReference {
	return CellReference{Column: column, Row: row}
}

// MustParseCellReference is ParseCellReference for tests and constants
func MustParseCellReference(s string) CellReference {
	ref, err := ParseCellReference(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// ParseCellReference parses A1 notation with optional '$' markers and an
// optional sheet prefix, e.g. "B3", "$B$3", "Sheet2!B3" or "'My Sheet'!B3".
func ParseCellReference(s string) (CellReference, error) {
	sheet, addr, err := splitSheet(s)
	if err != nil {
		return CellReference{}, err
	}
	col, row, absC, absR, ok := parseA1(addr)
	if !ok {
		return CellReference{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid cell reference %q", s))
	}
	return CellReference{Sheet: sheet, Column: col, Row: row, AbsColumn: absC, AbsRow: absR}, nil
}

// splitSheet separates an optional sheet prefix from an address. quoted
// sheet names escape a single quote by doubling it.
func splitSheet(s string) (sheet, addr string, err error) {
	if strings.HasPrefix(s, "'") {
		var sb strings.Builder
		for i := 1; i < len(s); i++ {
			if s[i] != '\'' {
				sb.WriteByte(s[i])
				continue
			}
			if i+1 < len(s) && s[i+1] == '\'' {
				sb.WriteByte('\'')
				i++
				continue
			}
			if i+1 >= len(s) || s[i+1] != '!' {
				return "", "", NewApplicationError(InvalidArgument, fmt.Sprintf("expected '!' after sheet name in %q", s))
			}
			return sb.String(), s[i+2:], nil
		}
		return "", "", NewApplicationError(InvalidArgument, fmt.Sprintf("unclosed sheet name in %q", s))
	}
	if idx := strings.LastIndexByte(s, '!'); idx >= 0 {
		if idx == 0 {
			return "", "", NewApplicationError(InvalidArgument, fmt.Sprintf("empty sheet name in %q", s))
		}
		return s[:idx], s[idx+1:], nil
	}
	return "", s, nil
}

// parseA1 parses "$A$1" style addresses without a sheet prefix
func parseA1(s string) (col, row int, absC, absR, ok bool) {
	i := 0
	if i < len(s) && s[i] == '$' {
		absC = true
		i++
	}
	start := i
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	if i == start || i-start > 3 {
		return 0, 0, false, false, false
	}
	col = ColumnIndex(s[start:i])
	if i < len(s) && s[i] == '$' {
		absR = true
		i++
	}
	digits := s[i:]
	if digits == "" || digits[0] == '0' {
		return 0, 0, false, false, false
	}
	for j := 0; j < len(digits); j++ {
		if digits[j] < '0' || digits[j] > '9' {
			return 0, 0, false, false, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n > MaxRows || col >= MaxColumns {
		return 0, 0, false, false, false
	}
	return col, n - 1, absC, absR, true
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// ColumnIndex converts column letters to a zero-based index: A=0, Z=25,
// AA=26. letters are case-insensitive.
func ColumnIndex(letters string) int {
	n := 0
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		if c >= 'a' && c <= 'z' {
			c -= 32
		}
		n = n*26 + int(c-'A'+1)
	}
	return n - 1
}

// ColumnName converts a zero-based index to column letters
func ColumnName(col int) string {
	var buf [4]byte
	i := len(buf)
	for col >= 0 {
		i--
		buf[i] = byte('A' + col%26)
		col = col/26 - 1
	}
	return string(buf[i:])
}

// Valid reports whether the reference lies on the grid
func (r CellReference) Valid() bool {
	return r.Column >= 0 && r.Column < MaxColumns && r.Row >= 0 && r.Row < MaxRows
}

// Offset shifts the relative axes by the given deltas. ok is false when the
// result falls off the grid.
func (r CellReference) Offset(dRow, dCol int) (CellReference, bool) {
	if !r.AbsRow {
		r.Row += dRow
	}
	if !r.AbsColumn {
		r.Column += dCol
	}
	return r, r.Valid()
}

// WithSheet returns the reference qualified by sheet unless it already
// names one
func (r CellReference) WithSheet(sheet string) CellReference {
	if r.Sheet == "" {
		r.Sheet = sheet
	}
	return r
}

// Address renders the reference without its sheet
func (r CellReference) Address() string {
	var sb strings.Builder
	if r.AbsColumn {
		sb.WriteByte('$')
	}
	sb.WriteString(ColumnName(r.Column))
	if r.AbsRow {
		sb.WriteByte('$')
	}
	sb.WriteString(strconv.Itoa(r.Row + 1))
	return sb.String()
}

func (r CellReference) String() string {
	if r.Sheet == "" {
		return r.Address()
	}
	return sheetPrefix(r.Sheet) + r.Address()
}

// sheetPrefix renders "Sheet!" quoting names that are not plain identifiers
func sheetPrefix(sheet string) string {
	plain := sheet != "" && !(sheet[0] >= '0' && sheet[0] <= '9')
	for i := 0; i < len(sheet) && plain; i++ {
		c := sheet[i]
		plain = isLetter(c) || (c >= '0' && c <= '9') || c == '_' || c == '.'
	}
	if plain {
		return sheet + "!"
	}
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!"
}

// key identifies the cell for maps; sheet names compare case-insensitively
func (r CellReference) key() cellKey {
	return cellKey{sheet: asciiUpper(r.Sheet), row: r.Row, col: r.Column}
}

type cellKey struct {
	sheet string
	row   int
	col   int
}

// Range is a rectangle of cells on one sheet. Start is always the top-left
// corner and End the bottom-right one.
type Range struct {
	Start CellReference
	End   CellReference
}

// NewRange normalizes two corners into a range. corners on different
// sheets are a usage error.
func NewRange(a, b CellReference) (Range, error) {
	if b.Sheet != "" && a.Sheet != "" && !strings.EqualFold(a.Sheet, b.Sheet) {
		return Range{}, NewApplicationError(InvalidArgument,
			fmt.Sprintf("range corners %s and %s are on different sheets", a, b))
	}
	if a.Sheet == "" {
		a.Sheet = b.Sheet
	}
	b.Sheet = a.Sheet
	start, end := a, b
	if b.Row < a.Row {
		start.Row, start.AbsRow, end.Row, end.AbsRow = b.Row, b.AbsRow, a.Row, a.AbsRow
	}
	if b.Column < a.Column {
		start.Column, start.AbsColumn, end.Column, end.AbsColumn = b.Column, b.AbsColumn, a.Column, a.AbsColumn
	}
	return Range{Start: start, End: end}, nil
}

// ParseRange parses "A1:B2", "Sheet2!A1:B2" or a single cell
func ParseRange(s string) (Range, error) {
	sheet, addr, err := splitSheet(s)
	if err != nil {
		return Range{}, err
	}
	first, second, found := strings.Cut(addr, ":")
	if !found {
		second = first
	}
	c1, r1, ac1, ar1, ok1 := parseA1(first)
	c2, r2, ac2, ar2, ok2 := parseA1(second)
	if !ok1 || !ok2 {
		return Range{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid range %q", s))
	}
	return NewRange(
		CellReference{Sheet: sheet, Column: c1, Row: r1, AbsColumn: ac1, AbsRow: ar1},
		CellReference{Sheet: sheet, Column: c2, Row: r2, AbsColumn: ac2, AbsRow: ar2},
	)
}

func (r Range) Rows() int { return r.End.Row - r.Start.Row + 1 }
func (r Range) Cols() int { return r.End.Column - r.Start.Column + 1 }

// Contains reports whether ref lies inside the rectangle, ignoring sheets
func (r Range) Contains(ref CellReference) bool {
	return ref.Row >= r.Start.Row && ref.Row <= r.End.Row &&
		ref.Column >= r.Start.Column && ref.Column <= r.End.Column
}

// Cells yields every cell of the range in row-major order
func (r Range) Cells() iter.Seq[CellReference] {
	return func(yield func(CellReference) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Column; col <= r.End.Column; col++ {
				if !yield(CellReference{Sheet: r.Start.Sheet, Column: col, Row: row}) {
					return
				}
			}
		}
	}
}

// WithSheet qualifies both corners unless the range already names a sheet
func (r Range) WithSheet(sheet string) Range {
	return Range{Start: r.Start.WithSheet(sheet), End: r.End.WithSheet(sheet)}
}

func (r Range) String() string {
	prefix := ""
	if r.Start.Sheet != "" {
		prefix = sheetPrefix(r.Start.Sheet)
	}
	return prefix + r.Start.Address() + ":" + r.End.Address()
}
