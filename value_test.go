package calc

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scalarComparer compares errors by kind and numbers within a relative
// tolerance
var scalarComparer = cmp.Options{
	cmp.Comparer(func(a, b *ErrorValue) bool { return a.Equal(b) }),
	cmp.Comparer(func(a, b Number) bool {
		x, y := float64(a), float64(b)
		return x == y || math.Abs(x-y) <= 1e-9*max(1, math.Abs(x), math.Abs(y))
	}),
}

// valueComparer extends scalarComparer to arrays
var valueComparer = cmp.Options{
	scalarComparer,
	cmp.Comparer(func(a, b *ArrayValue) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.SameShape(b) && cmp.Equal(a.Slice(), b.Slice(), scalarComparer)
	}),
}

func assertValue(t *testing.T, want, got Value) {
	t.Helper()
	if diff := cmp.Diff(want, got, valueComparer); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
}

func mustArray(t *testing.T, rows ...[]Value) *ArrayValue {
	t.Helper()
	a, err := ArrayFromRows(rows)
	require.NoError(t, err)
	return a
}

func TestValueKinds(t *testing.T) {
	tests := []struct {
		v    Value
		want ValueKind
	}{
		{Number(1), KindNumber},
		{Text("a"), KindText},
		{Boolean(true), KindBoolean},
		{Empty{}, KindEmpty},
		{newError(ErrDiv0), KindError},
		{Row(Number(1)), KindArray},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.ValueKind(), "%#v", tt.v)
	}

	// the error's own kind sits beside the value kind
	e := NewErrorValue(ErrRef, "gone")
	assert.Equal(t, ErrRef, e.Kind)
	assert.Equal(t, KindError, e.ValueKind())
}

func TestArrayFromRows(t *testing.T) {
	a := mustArray(t, []Value{Number(1), Text("x")}, []Value{nil, Boolean(true)})
	assert.Equal(t, 2, a.Rows())
	assert.Equal(t, 2, a.Cols())
	assert.Equal(t, Empty{}, a.At(1, 0))
	assert.Equal(t, `{1,"x";,TRUE}`, a.String())

	_, err := ArrayFromRows([][]Value{{Number(1)}, {Number(1), Number(2)}})
	assert.Error(t, err)

	_, err = ArrayFromRows([][]Value{{Row(Number(1))}})
	assert.Error(t, err, "arrays must not nest")

	_, err = ArrayFromRows(nil)
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{Number(3), "3"},
		{Number(-0.5), "-0.5"},
		{Number(1e20), "1e+20"},
		{Number(0.1 + 0.2), "0.3"},
		{Text("hi"), "hi"},
		{Boolean(true), "TRUE"},
		{Boolean(false), "FALSE"},
		{Empty{}, ""},
		{newError(ErrNA), "#N/A"},
		{Row(Number(1), Text("a")), `{1,"a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.value))
		})
	}
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		input string
		want  Value
	}{
		{"42", Number(42)},
		{" 1.5 ", Number(1.5)},
		{"1e3", Number(1000)},
		{"true", Boolean(true)},
		{"FALSE", Boolean(false)},
		{"#N/A", newError(ErrNA)},
		{"#div/0!", newError(ErrDiv0)},
		{"hello", Text("hello")},
		{"", Empty{}},
		{"   ", Empty{}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assertValue(t, tt.want, ParseLiteral(tt.input))
		})
	}
}

func TestValueOf(t *testing.T) {
	assertValue(t, Number(2), ValueOf(2))
	assertValue(t, Text("a"), ValueOf("a"))
	assertValue(t, Boolean(true), ValueOf(true))
	assertValue(t, Empty{}, ValueOf(nil))
	assertValue(t, mustArray(t, []Value{Number(1), Text("b")}), ValueOf([][]any{{1, "b"}}))
	assertValue(t, newError(ErrValue), ValueOf(struct{}{}))
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name        string
		left, right Value
		want        int
	}{
		{"numbers", Number(1), Number(2), -1},
		{"equal numbers", Number(2), Number(2), 0},
		{"text ignores case", Text("abc"), Text("ABC"), 0},
		{"text order", Text("b"), Text("a"), 1},
		{"number before text", Number(100), Text("a"), -1},
		{"text before boolean", Text("z"), Boolean(false), -1},
		{"false before true", Boolean(false), Boolean(true), -1},
		{"blank as zero", Empty{}, Number(0), 0},
		{"blank as empty text", Empty{}, Text(""), 0},
		{"blank as false", Empty{}, Boolean(false), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareValues(tt.left, tt.right))
		})
	}
}

func TestValidateFloat(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		want    float64
		wantErr ErrorKind
	}{
		{"number", Number(2.5), 2.5, 0},
		{"true", Boolean(true), 1, 0},
		{"false", Boolean(false), 0, 0},
		{"blank", Empty{}, 0, 0},
		{"numeric text", Text(" 12 "), 12, 0},
		{"other text", Text("twelve"), 0, ErrValue},
		{"error", newError(ErrNA), 0, ErrNA},
		{"array", Row(Number(1)), 0, ErrValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errv := ValidateFloat(tt.value, ModeExcel)
			if tt.wantErr != 0 {
				require.NotNil(t, errv)
				assert.Equal(t, tt.wantErr, errv.Kind)
				return
			}
			require.Nil(t, errv)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateInt(t *testing.T) {
	n, errv := ValidateInt(Number(-3.9), ModeExcel)
	require.Nil(t, errv)
	assert.Equal(t, -3, n)

	_, errv = ValidateInt(Number(math.MaxInt64), ModeExcel)
	require.NotNil(t, errv)
	assert.Equal(t, ErrNum, errv.Kind)
}

func TestValidateProbability(t *testing.T) {
	for _, ok := range []float64{0, 0.5, 1} {
		p, errv := ValidateProbability(Number(ok), ModeExcel)
		assert.Nil(t, errv)
		assert.Equal(t, ok, p)
	}
	for _, bad := range []float64{-0.1, 1.1} {
		_, errv := ValidateProbability(Number(bad), ModeExcel)
		require.NotNil(t, errv)
		assert.Equal(t, ErrNum, errv.Kind, "out of range probabilities are #NUM!")
	}
	_, errv := ValidateProbability(Text("half"), ModeExcel)
	require.NotNil(t, errv)
	assert.Equal(t, ErrValue, errv.Kind)
}

func TestValidateNumericBaseString(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		mode    CompatibilityMode
		want    string
		wantErr ErrorKind
	}{
		{"boolean rejected by excel", Boolean(true), ModeExcel, "", ErrValue},
		{"boolean as one elsewhere", Boolean(true), ModeOpenOffice, "1", 0},
		{"boolean as zero in gnumeric", Boolean(false), ModeGnumeric, "0", 0},
		{"number kept by excel", Number(101.7), ModeExcel, "101.7", 0},
		{"number floored by gnumeric", Number(101.7), ModeGnumeric, "101", 0},
		{"numeric text floored by gnumeric", Text("11.9"), ModeGnumeric, "11", 0},
		{"text trimmed", Text(" ff "), ModeExcel, "ff", 0},
		{"blank", Empty{}, ModeExcel, "0", 0},
		{"error", newError(ErrRef), ModeExcel, "", ErrRef},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errv := ValidateNumericBaseString(tt.value, tt.mode)
			if tt.wantErr != 0 {
				require.NotNil(t, errv)
				assert.Equal(t, tt.wantErr, errv.Kind)
				return
			}
			require.Nil(t, errv)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompatibilityMode(t *testing.T) {
	for _, m := range []CompatibilityMode{ModeExcel, ModeOpenOffice, ModeGnumeric} {
		parsed, err := ParseCompatibilityMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	var m CompatibilityMode
	require.NoError(t, m.UnmarshalText([]byte("gnumeric")))
	assert.Equal(t, ModeGnumeric, m)

	_, err := ParseCompatibilityMode("lotus")
	assert.Error(t, err)
}
