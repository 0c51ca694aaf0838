package matrix

// Operator folds operands into an accumulated result, left to right. an
// operator is built from its base matrix and then Execute is called once per
// further operand.
type Operator interface {
	Execute(next *Matrix) error
	Result() *Matrix
}

// Addition sums operands element-wise
type Addition struct {
	result *Matrix
}

func NewAddition(base *Matrix) *Addition {
	return &Addition{result: base.Clone()}
}

func (op *Addition) Execute(next *Matrix) error {
	if err := validateMatchingDimensions(op.result, next); err != nil {
		return err
	}
	for i := range op.result.data {
		op.result.data[i] += next.data[i]
	}
	return nil
}

func (op *Addition) Result() *Matrix { return op.result }

// Subtraction subtracts operands element-wise
type Subtraction struct {
	result *Matrix
}

func NewSubtraction(base *Matrix) *Subtraction {
	return &Subtraction{result: base.Clone()}
}

func (op *Subtraction) Execute(next *Matrix) error {
	if err := validateMatchingDimensions(op.result, next); err != nil {
		return err
	}
	for i := range op.result.data {
		op.result.data[i] -= next.data[i]
	}
	return nil
}

func (op *Subtraction) Result() *Matrix { return op.result }

// Multiplication is the matrix product
type Multiplication struct {
	result *Matrix
}

func NewMultiplication(base *Matrix) *Multiplication {
	return &Multiplication{result: base.Clone()}
}

func (op *Multiplication) Execute(next *Matrix) error {
	if err := validateReflectingDimensions(op.result, next); err != nil {
		return err
	}
	op.result = product(op.result, next)
	return nil
}

func (op *Multiplication) Result() *Matrix { return op.result }

// Division multiplies by the inverse of each next operand, which must be
// square and non-singular.
type Division struct {
	result *Matrix
}

func NewDivision(base *Matrix) *Division {
	return &Division{result: base.Clone()}
}

func (op *Division) Execute(next *Matrix) error {
	if err := validateReflectingDimensions(op.result, next); err != nil {
		return err
	}
	if err := validateSquare(next); err != nil {
		return err
	}
	lu, err := NewLU(next)
	if err != nil {
		return err
	}
	inv, err := lu.Inverse()
	if err != nil {
		return err
	}
	op.result = product(op.result, inv)
	return nil
}

func (op *Division) Result() *Matrix { return op.result }

// DirectSum places operands along the diagonal of a block matrix. operands
// must have matching dimensions.
type DirectSum struct {
	result *Matrix
	shape  *Matrix
}

func NewDirectSum(base *Matrix) *DirectSum {
	return &DirectSum{result: base.Clone(), shape: base}
}

func (op *DirectSum) Execute(next *Matrix) error {
	if err := validateMatchingDimensions(op.shape, next); err != nil {
		return err
	}
	prev := op.result
	out := New(prev.rows+next.rows, prev.cols+next.cols)
	for i := 0; i < prev.rows; i++ {
		copy(out.data[i*out.cols:], prev.data[i*prev.cols:(i+1)*prev.cols])
	}
	for i := 0; i < next.rows; i++ {
		row := prev.rows + i
		copy(out.data[row*out.cols+prev.cols:], next.data[i*next.cols:(i+1)*next.cols])
	}
	op.result = out
	return nil
}

func (op *DirectSum) Result() *Matrix { return op.result }

func product(a, b *Matrix) *Matrix {
	out := New(a.rows, b.cols)
	for i := 0; i < a.rows; i++ {
		for k := 0; k < a.cols; k++ {
			aik := a.At(i, k)
			if aik == 0 {
				continue
			}
			for j := 0; j < b.cols; j++ {
				out.data[i*out.cols+j] += aik * b.At(k, j)
			}
		}
	}
	return out
}
