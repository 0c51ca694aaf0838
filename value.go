package calc

import (
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the variants of Value
type ValueKind uint8

const (
	KindEmpty ValueKind = iota
	KindNumber
	KindText
	KindBoolean
	KindError
	KindArray
)

func (k ValueKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindError:
		return "error"
	case KindArray:
		return "array"
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// Value represents the values a formula can produce.
// variants:
//   - Number: IEEE-754 double, there is no integer variant
//   - Text: string values
//   - Boolean: TRUE/FALSE
//   - Empty: a blank cell
//   - *ErrorValue: #DIV/0!, #VALUE!, etc.
//   - *ArrayValue: rectangular rows x columns of scalar values
type Value interface {
	ValueKind() ValueKind
}

type Number float64

type Text string

type Boolean bool

type Empty struct{}

func (Number) ValueKind() ValueKind      { return KindNumber }
func (Text) ValueKind() ValueKind        { return KindText }
func (Boolean) ValueKind() ValueKind     { return KindBoolean }
func (Empty) ValueKind() ValueKind       { return KindEmpty }
func (*ErrorValue) ValueKind() ValueKind { return KindError }
func (*ArrayValue) ValueKind() ValueKind { return KindArray }

// ArrayValue is a rectangular grid of scalar values stored row-major. arrays
// never nest.
type ArrayValue struct {
	rows  int
	cols  int
	cells []Value
}

// NewArray creates a rows x cols array filled with Empty
func NewArray(rows, cols int) *ArrayValue {
	cells := make([]Value, rows*cols)
	for i := range cells {
		cells[i] = Empty{}
	}
	return &ArrayValue{rows: rows, cols: cols, cells: cells}
}

// ArrayFromRows builds an array from row slices. jagged input is rejected.
func ArrayFromRows(rows [][]Value) (*ArrayValue, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, NewApplicationError(InvalidArgument, "array must have at least one row and one column")
	}
	cols := len(rows[0])
	a := &ArrayValue{rows: len(rows), cols: cols, cells: make([]Value, 0, len(rows)*cols)}
	for i, row := range rows {
		if len(row) != cols {
			return nil, NewApplicationError(InvalidArgument,
				fmt.Sprintf("array row %d has %d columns, expected %d", i, len(row), cols))
		}
		for _, v := range row {
			if _, nested := v.(*ArrayValue); nested {
				return nil, NewApplicationError(InvalidArgument, "arrays cannot contain arrays")
			}
			if v == nil {
				v = Empty{}
			}
			a.cells = append(a.cells, v)
		}
	}
	return a, nil
}

// Row builds a 1 x n array
func Row(values ...Value) *ArrayValue {
	a, err := ArrayFromRows([][]Value{values})
	if err != nil {
		return NewArray(1, 1)
	}
	return a
}

func (a *ArrayValue) Rows() int { return a.rows }
func (a *ArrayValue) Cols() int { return a.cols }

func (a *ArrayValue) At(row, col int) Value {
	return a.cells[row*a.cols+col]
}

func (a *ArrayValue) Set(row, col int, v Value) {
	a.cells[row*a.cols+col] = v
}

// SameShape reports whether both arrays have identical rows and columns
func (a *ArrayValue) SameShape(b *ArrayValue) bool {
	return a.rows == b.rows && a.cols == b.cols
}

// Values iterates row-major over every element
func (a *ArrayValue) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for _, v := range a.cells {
			if !yield(v) {
				return
			}
		}
	}
}

// Slice returns the elements as rows
func (a *ArrayValue) Slice() [][]Value {
	out := make([][]Value, a.rows)
	for r := range out {
		out[r] = append([]Value(nil), a.cells[r*a.cols:(r+1)*a.cols]...)
	}
	return out
}

// Map applies fn to every element, preserving shape
func (a *ArrayValue) Map(fn func(Value) Value) *ArrayValue {
	out := &ArrayValue{rows: a.rows, cols: a.cols, cells: make([]Value, len(a.cells))}
	for i, v := range a.cells {
		out.cells[i] = fn(v)
	}
	return out
}

func (a *ArrayValue) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for r := 0; r < a.rows; r++ {
		if r > 0 {
			sb.WriteByte(';')
		}
		for c := 0; c < a.cols; c++ {
			if c > 0 {
				sb.WriteByte(',')
			}
			v := a.At(r, c)
			if t, ok := v.(Text); ok {
				sb.WriteString(quoteText(string(t)))
			} else {
				sb.WriteString(FormatValue(v))
			}
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

// FormatValue renders a value the way a cell displays it
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil, Empty:
		return ""
	case Number:
		return formatNumber(float64(x))
	case Text:
		return string(x)
	case Boolean:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case *ErrorValue:
		return x.Code()
	case *ArrayValue:
		return x.String()
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', 15, 64)
}

func quoteText(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ValueOf converts a go value to a Value. unsupported types become #VALUE!.
func ValueOf(x any) Value {
	switch v := x.(type) {
	case nil:
		return Empty{}
	case Value:
		return v
	case float64:
		return Number(v)
	case float32:
		return Number(v)
	case int:
		return Number(v)
	case int64:
		return Number(v)
	case uint32:
		return Number(v)
	case string:
		return Text(v)
	case bool:
		return Boolean(v)
	case [][]any:
		rows := make([][]Value, len(v))
		for i, row := range v {
			rows[i] = make([]Value, len(row))
			for j, e := range row {
				rows[i][j] = ValueOf(e)
			}
		}
		a, err := ArrayFromRows(rows)
		if err != nil {
			return newError(ErrValue)
		}
		return a
	}
	return NewErrorValue(ErrValue, fmt.Sprintf("unsupported go type %T", x))
}

// ParseLiteral interprets raw cell input that is not a formula: numbers,
// booleans, error codes and otherwise text.
func ParseLiteral(input string) Value {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Empty{}
	}
	if f, ok := parseNumber(trimmed); ok {
		return Number(f)
	}
	switch strings.ToUpper(trimmed) {
	case "TRUE":
		return Boolean(true)
	case "FALSE":
		return Boolean(false)
	}
	if kind, ok := ErrorKindFromCode(trimmed); ok {
		return newError(kind)
	}
	return Text(input)
}

// parseNumber reads numeric text. Inf and NaN spellings are not numbers in
// a spreadsheet.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// toNumber converts value to number, returning ok=false if conversion fails
func toNumber(value Value) (float64, bool) {
	switch v := value.(type) {
	case Number:
		return float64(v), true
	case Boolean:
		if v {
			return 1, true
		}
		return 0, true
	case Text:
		return parseNumber(string(v))
	case nil, Empty:
		return 0, true
	default:
		return 0, false
	}
}

// toText converts value to its text form for concatenation and text functions
func toText(value Value) string {
	return FormatValue(value)
}

// isTruthy checks if value is truthy
func isTruthy(value Value) (bool, bool) {
	switch v := value.(type) {
	case Boolean:
		return bool(v), true
	case Number:
		return v != 0, true
	case nil, Empty:
		return false, true
	case Text:
		switch strings.ToUpper(string(v)) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
	}
	return false, false
}

// typeRank orders mixed-type comparisons: numbers < text < booleans. blanks
// compare as the zero value of the other side.
func typeRank(v Value) int {
	switch v.(type) {
	case Number:
		return 0
	case Text:
		return 1
	case Boolean:
		return 2
	}
	return 3
}

// compareValues returns -1, 0 or 1. text compares case-insensitively.
func compareValues(left, right Value) int {
	left, right = blankAs(left, right), blankAs(right, left)

	lr, rr := typeRank(left), typeRank(right)
	if lr != rr {
		if lr < rr {
			return -1
		}
		return 1
	}

	switch l := left.(type) {
	case Number:
		r := right.(Number)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		}
		return 0
	case Text:
		return strings.Compare(strings.ToLower(string(l)), strings.ToLower(string(right.(Text))))
	case Boolean:
		r := right.(Boolean)
		switch {
		case l == r:
			return 0
		case !bool(l):
			return -1
		}
		return 1
	}
	return 0
}

// blankAs substitutes the zero value matching other's type for a blank v
func blankAs(v, other Value) Value {
	if _, blank := v.(Empty); !blank && v != nil {
		return v
	}
	switch other.(type) {
	case Text:
		return Text("")
	case Boolean:
		return Boolean(false)
	}
	return Number(0)
}
