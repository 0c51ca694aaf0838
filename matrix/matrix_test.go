package matrix

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func mustRows(t *testing.T, rows [][]float64) *Matrix {
	t.Helper()
	m, err := FromRows(rows)
	require.NoError(t, err)
	return m
}

var (
	twoByThree = [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	}
	threeByTwo = [][]float64{
		{7, 8},
		{9, 10},
		{11, 12},
	}
)

func TestFromRowsRejectsJagged(t *testing.T) {
	_, err := FromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrJagged)

	_, err = FromRows(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestAddRequiresMatchingDimensions(t *testing.T) {
	_, err := Add(twoByThree, threeByTwo)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMultiplyReflectingDimensions(t *testing.T) {
	got, err := Multiply(twoByThree, threeByTwo)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Rows())
	assert.Equal(t, 2, got.Cols())

	want := [][]float64{
		{58, 64},
		{139, 154},
	}
	if diff := cmp.Diff(want, got.ToRows()); diff != "" {
		t.Errorf("Multiply() mismatch (-want +got):\n%s", diff)
	}

	_, err = Multiply(twoByThree, twoByThree)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFoldOperators(t *testing.T) {
	a := [][]float64{{1, 2}, {3, 4}}
	b := [][]float64{{5, 6}, {7, 8}}
	c := [][]float64{{1, 1}, {1, 1}}

	tests := []struct {
		name string
		fn   func(...any) (*Matrix, error)
		args []any
		want [][]float64
	}{
		{"add two", Add, []any{a, b}, [][]float64{{6, 8}, {10, 12}}},
		{"add three folds left to right", Add, []any{a, b, c}, [][]float64{{7, 9}, {11, 13}}},
		{"subtract", Subtract, []any{b, a, c}, [][]float64{{3, 3}, {3, 3}}},
		{"multiply", Multiply, []any{a, b}, [][]float64{{19, 22}, {43, 50}}},
		{"direct sum", DirectSumOf, []any{a, b}, [][]float64{
			{1, 2, 0, 0},
			{3, 4, 0, 0},
			{0, 0, 5, 6},
			{0, 0, 7, 8},
		}},
		{"divide by identity", DivideBy, []any{a, Identity(2)}, a},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.args...)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got.ToRows(), approx); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOperatorsRequireTwoOperands(t *testing.T) {
	fns := map[string]func(...any) (*Matrix, error){
		"add":        Add,
		"subtract":   Subtract,
		"multiply":   Multiply,
		"divideby":   DivideBy,
		"divideinto": DivideInto,
		"directsum":  DirectSumOf,
	}
	for name, fn := range fns {
		t.Run(name, func(t *testing.T) {
			_, err := fn([][]float64{{1}})
			assert.ErrorIs(t, err, ErrTooFewOperands)
			assert.False(t, errors.Is(err, ErrDimensionMismatch))

			_, err = fn()
			assert.ErrorIs(t, err, ErrTooFewOperands)
		})
	}
}

func TestDivideIntoIsReversedDivideBy(t *testing.T) {
	a := [][]float64{{4, 7}, {2, 6}}
	b := [][]float64{{1, 2}, {3, 5}}

	into, err := DivideInto(a, b)
	require.NoError(t, err)
	by, err := DivideBy(b, a)
	require.NoError(t, err)
	assert.True(t, into.EqualApprox(by, 1e-12))

	// b / a == b * inv(a)
	inv := [][]float64{{0.6, -0.7}, {-0.2, 0.4}}
	want, err := Multiply(b, inv)
	require.NoError(t, err)
	assert.True(t, by.EqualApprox(want, 1e-9), "got %v want %v", by, want)
}

func TestDivideBySingular(t *testing.T) {
	_, err := DivideBy([][]float64{{1, 2}, {3, 4}}, [][]float64{{1, 2}, {2, 4}})
	assert.ErrorIs(t, err, ErrSingular)
}

func TestDirectSumRequiresMatchingDimensions(t *testing.T) {
	_, err := DirectSumOf(twoByThree, threeByTwo)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestUnsupportedOperand(t *testing.T) {
	_, err := Add([][]float64{{1}}, "nope")
	assert.ErrorIs(t, err, ErrUnsupportedOperand)
}

func TestTranspose(t *testing.T) {
	m := mustRows(t, twoByThree)
	got := m.Transpose()
	want := [][]float64{{1, 4}, {2, 5}, {3, 6}}
	if diff := cmp.Diff(want, got.ToRows()); diff != "" {
		t.Errorf("Transpose() mismatch (-want +got):\n%s", diff)
	}
}
