package calc

import (
	"errors"

	"github.com/vogtb/go-spreadsheet/packages/calc/matrix"
)

func matrixFunctions() []FunctionDescriptor {
	whole := func(name string, minArgs, maxArgs int, impl func(c *Call) Value) FunctionDescriptor {
		return FunctionDescriptor{
			Name:    name,
			MinArgs: minArgs,
			MaxArgs: maxArgs,
			Args:    []ArgShape{ArgArray},
			Impl:    impl,
		}
	}
	return []FunctionDescriptor{
		whole("MMULT", 2, 2, MMULT),
		whole("MINVERSE", 1, 1, MINVERSE),
		whole("MDETERM", 1, 1, MDETERM),
		whole("TRANSPOSE", 1, 1, TRANSPOSE),
	}
}

// toMatrix reads a numeric array argument. any non-numeric element is
// #VALUE!, an error element propagates.
func toMatrix(v Value) (*matrix.Matrix, *ErrorValue) {
	a, ok := v.(*ArrayValue)
	if !ok {
		a = Row(v)
	}
	m := matrix.New(a.Rows(), a.Cols())
	for r := 0; r < a.Rows(); r++ {
		for c := 0; c < a.Cols(); c++ {
			switch x := a.At(r, c).(type) {
			case Number:
				m.Set(r, c, float64(x))
			case *ErrorValue:
				return nil, x
			default:
				return nil, NewErrorValue(ErrValue, "matrix elements must be numbers")
			}
		}
	}
	return m, nil
}

func fromMatrix(m *matrix.Matrix) *ArrayValue {
	out := NewArray(m.Rows(), m.Cols())
	for r := 0; r < m.Rows(); r++ {
		for c := 0; c < m.Cols(); c++ {
			out.Set(r, c, Number(m.At(r, c)))
		}
	}
	return out
}

// matrixError maps matrix package failures onto spreadsheet errors
func matrixError(err error) *ErrorValue {
	if errors.Is(err, matrix.ErrSingular) {
		return NewErrorValue(ErrNum, err.Error())
	}
	return NewErrorValue(ErrValue, err.Error())
}

func MMULT(c *Call) Value {
	a, errv := toMatrix(c.Arg(0))
	if errv != nil {
		return errv
	}
	b, errv := toMatrix(c.Arg(1))
	if errv != nil {
		return errv
	}
	product, err := matrix.Multiply(a, b)
	if err != nil {
		return matrixError(err)
	}
	return fromMatrix(product)
}

func MINVERSE(c *Call) Value {
	m, errv := toMatrix(c.Arg(0))
	if errv != nil {
		return errv
	}
	lu, err := matrix.NewLU(m)
	if err != nil {
		return matrixError(err)
	}
	inv, err := lu.Inverse()
	if err != nil {
		return matrixError(err)
	}
	return fromMatrix(inv)
}

func MDETERM(c *Call) Value {
	m, errv := toMatrix(c.Arg(0))
	if errv != nil {
		return errv
	}
	lu, err := matrix.NewLU(m)
	if err != nil {
		return matrixError(err)
	}
	return numberResult(lu.Determinant())
}

// TRANSPOSE accepts any values, not only numbers
func TRANSPOSE(c *Call) Value {
	a, ok := c.Arg(0).(*ArrayValue)
	if !ok {
		return c.Arg(0)
	}
	out := NewArray(a.Cols(), a.Rows())
	for r := 0; r < a.Rows(); r++ {
		for col := 0; col < a.Cols(); col++ {
			out.Set(col, r, a.At(r, col))
		}
	}
	return out
}
