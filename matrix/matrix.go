// Package matrix implements the dimension-checked matrix operators behind the
// spreadsheet matrix functions, plus LU and QR decomposition.
package matrix

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrDimensionMismatch is returned when operand shapes are incompatible.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

	// ErrTooFewOperands is a usage error: the public operators fold at least
	// two operands.
	ErrTooFewOperands = errors.New("matrix: at least two operands required")

	// ErrUnknownDecomposition is a usage error for an unrecognized
	// decomposition kind.
	ErrUnknownDecomposition = errors.New("matrix: unknown decomposition kind")

	// ErrSingular is returned when a matrix has no inverse.
	ErrSingular = errors.New("matrix: singular matrix")

	// ErrJagged is returned when rows have different lengths.
	ErrJagged = errors.New("matrix: rows have different lengths")

	// ErrEmpty is returned for a matrix without rows or columns.
	ErrEmpty = errors.New("matrix: empty matrix")

	// ErrUnsupportedOperand is returned for operands that are neither a
	// *Matrix nor a [][]float64.
	ErrUnsupportedOperand = errors.New("matrix: unsupported operand type")
)

// singularTolerance is the pivot magnitude below which a matrix is treated as
// singular
const singularTolerance = 1e-12

// Matrix is a dense rectangular matrix stored row-major
type Matrix struct {
	rows int
	cols int
	data []float64
}

// New returns a rows x cols zero matrix
func New(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// FromRows copies a rectangular [][]float64 into a Matrix
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmpty
	}
	m := New(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			return nil, fmt.Errorf("row %d has %d values, want %d: %w", i, len(row), m.cols, ErrJagged)
		}
		copy(m.data[i*m.cols:], row)
	}
	return m, nil
}

// Identity returns the n x n identity matrix
func Identity(n int) *Matrix {
	m := New(n, n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.cols+j]
}

func (m *Matrix) Set(i, j int, v float64) {
	m.data[i*m.cols+j] = v
}

// Clone returns a deep copy
func (m *Matrix) Clone() *Matrix {
	out := New(m.rows, m.cols)
	copy(out.data, m.data)
	return out
}

// ToRows returns the values as a [][]float64
func (m *Matrix) ToRows() [][]float64 {
	out := make([][]float64, m.rows)
	for i := range out {
		out[i] = append([]float64(nil), m.data[i*m.cols:(i+1)*m.cols]...)
	}
	return out
}

// Transpose returns a new matrix with rows and columns swapped
func (m *Matrix) Transpose() *Matrix {
	out := New(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			out.Set(j, i, m.At(i, j))
		}
	}
	return out
}

// EqualApprox compares shapes and values within tol
func (m *Matrix) EqualApprox(other *Matrix, tol float64) bool {
	if m.rows != other.rows || m.cols != other.cols {
		return false
	}
	for i, v := range m.data {
		if math.Abs(v-other.data[i]) > tol {
			return false
		}
	}
	return true
}

func (m *Matrix) String() string {
	var sb strings.Builder
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%g", m.At(i, j))
		}
	}
	return sb.String()
}

// validateMatchingDimensions checks that a and b have identical rows and
// columns.
func validateMatchingDimensions(a, b *Matrix) error {
	if a.rows != b.rows || a.cols != b.cols {
		return fmt.Errorf("%dx%d and %dx%d must have the same shape: %w",
			a.rows, a.cols, b.rows, b.cols, ErrDimensionMismatch)
	}
	return nil
}

// validateReflectingDimensions checks that a's column count equals b's row
// count.
func validateReflectingDimensions(a, b *Matrix) error {
	if a.cols != b.rows {
		return fmt.Errorf("%dx%d columns must equal %dx%d rows: %w",
			a.rows, a.cols, b.rows, b.cols, ErrDimensionMismatch)
	}
	return nil
}

func validateSquare(m *Matrix) error {
	if m.rows != m.cols {
		return fmt.Errorf("%dx%d is not square: %w", m.rows, m.cols, ErrDimensionMismatch)
	}
	return nil
}

// toMatrix accepts the operand forms of the public API
func toMatrix(operand any) (*Matrix, error) {
	switch x := operand.(type) {
	case *Matrix:
		if x == nil {
			return nil, ErrEmpty
		}
		return x, nil
	case Matrix:
		return &x, nil
	case [][]float64:
		return FromRows(x)
	}
	return nil, fmt.Errorf("%T: %w", operand, ErrUnsupportedOperand)
}
