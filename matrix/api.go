package matrix

import "fmt"

// Add returns the element-wise sum of the operands
func Add(operands ...any) (*Matrix, error) {
	return fold("add", operands, func(m *Matrix) Operator { return NewAddition(m) })
}

// Subtract subtracts every following operand from the first
func Subtract(operands ...any) (*Matrix, error) {
	return fold("subtract", operands, func(m *Matrix) Operator { return NewSubtraction(m) })
}

// Multiply returns the matrix product of the operands, left to right
func Multiply(operands ...any) (*Matrix, error) {
	return fold("multiply", operands, func(m *Matrix) Operator { return NewMultiplication(m) })
}

// DivideBy divides the first operand by each following operand in turn
func DivideBy(operands ...any) (*Matrix, error) {
	return fold("divideby", operands, func(m *Matrix) Operator { return NewDivision(m) })
}

// DivideInto is DivideBy with the operand order reversed
func DivideInto(operands ...any) (*Matrix, error) {
	reversed := make([]any, len(operands))
	for i, op := range operands {
		reversed[len(operands)-1-i] = op
	}
	return fold("divideinto", reversed, func(m *Matrix) Operator { return NewDivision(m) })
}

// DirectSumOf returns the block-diagonal direct sum of the operands
func DirectSumOf(operands ...any) (*Matrix, error) {
	return fold("directsum", operands, func(m *Matrix) Operator { return NewDirectSum(m) })
}

func fold(name string, operands []any, build func(*Matrix) Operator) (*Matrix, error) {
	if len(operands) < 2 {
		return nil, fmt.Errorf("%s: got %d: %w", name, len(operands), ErrTooFewOperands)
	}
	base, err := toMatrix(operands[0])
	if err != nil {
		return nil, fmt.Errorf("%s: operand 0: %w", name, err)
	}
	op := build(base)
	for i, operand := range operands[1:] {
		next, err := toMatrix(operand)
		if err != nil {
			return nil, fmt.Errorf("%s: operand %d: %w", name, i+1, err)
		}
		if err := op.Execute(next); err != nil {
			return nil, fmt.Errorf("%s: operand %d: %w", name, i+1, err)
		}
	}
	return op.Result(), nil
}
