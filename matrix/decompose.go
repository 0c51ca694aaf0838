package matrix

import (
	"fmt"
	"math"
	"strings"
)

// Decomposition is a factorization strategy able to solve A x = b
type Decomposition interface {
	Kind() string
	Solve(b *Matrix) (*Matrix, error)
}

const (
	KindLU = "LU"
	KindQR = "QR"
)

// Decompose resolves kind ("LU" or "QR", any case) to a factorization of m.
// an unknown kind is ErrUnknownDecomposition.
func Decompose(kind string, m *Matrix) (Decomposition, error) {
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case KindLU:
		return NewLU(m)
	case KindQR:
		return NewQR(m)
	}
	return nil, fmt.Errorf("%q: %w", kind, ErrUnknownDecomposition)
}

// LU is a Doolittle factorization with partial pivoting, P A = L U
type LU struct {
	lu    *Matrix
	pivot []int
	sign  float64
}

// NewLU factors a square matrix. a singular matrix still factors; Solve and
// Inverse report ErrSingular.
func NewLU(a *Matrix) (*LU, error) {
	if err := validateSquare(a); err != nil {
		return nil, err
	}
	n := a.rows
	lu := a.Clone()
	pivot := make([]int, n)
	for i := range pivot {
		pivot[i] = i
	}
	sign := 1.0

	for k := 0; k < n; k++ {
		p := k
		for i := k + 1; i < n; i++ {
			if math.Abs(lu.At(i, k)) > math.Abs(lu.At(p, k)) {
				p = i
			}
		}
		if p != k {
			for j := 0; j < n; j++ {
				pj, kj := lu.At(p, j), lu.At(k, j)
				lu.Set(p, j, kj)
				lu.Set(k, j, pj)
			}
			pivot[p], pivot[k] = pivot[k], pivot[p]
			sign = -sign
		}
		if math.Abs(lu.At(k, k)) < singularTolerance {
			continue
		}
		for i := k + 1; i < n; i++ {
			f := lu.At(i, k) / lu.At(k, k)
			lu.Set(i, k, f)
			for j := k + 1; j < n; j++ {
				lu.Set(i, j, lu.At(i, j)-f*lu.At(k, j))
			}
		}
	}
	return &LU{lu: lu, pivot: pivot, sign: sign}, nil
}

func (d *LU) Kind() string { return KindLU }

// L returns the unit lower triangular factor
func (d *LU) L() *Matrix {
	n := d.lu.rows
	l := New(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			l.Set(i, j, d.lu.At(i, j))
		}
		l.Set(i, i, 1)
	}
	return l
}

// U returns the upper triangular factor
func (d *LU) U() *Matrix {
	n := d.lu.rows
	u := New(n, n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			u.Set(i, j, d.lu.At(i, j))
		}
	}
	return u
}

// P returns the row permutation matrix
func (d *LU) P() *Matrix {
	n := d.lu.rows
	p := New(n, n)
	for i, row := range d.pivot {
		p.Set(i, row, 1)
	}
	return p
}

func (d *LU) Singular() bool {
	for i := 0; i < d.lu.rows; i++ {
		if math.Abs(d.lu.At(i, i)) < singularTolerance {
			return true
		}
	}
	return false
}

func (d *LU) Determinant() float64 {
	det := d.sign
	for i := 0; i < d.lu.rows; i++ {
		det *= d.lu.At(i, i)
	}
	return det
}

func (d *LU) Solve(b *Matrix) (*Matrix, error) {
	n := d.lu.rows
	if b.rows != n {
		return nil, fmt.Errorf("right-hand side has %d rows, want %d: %w", b.rows, n, ErrDimensionMismatch)
	}
	if d.Singular() {
		return nil, ErrSingular
	}

	x := New(n, b.cols)
	for i, row := range d.pivot {
		copy(x.data[i*x.cols:(i+1)*x.cols], b.data[row*b.cols:(row+1)*b.cols])
	}
	// forward substitution with unit L
	for k := 0; k < n; k++ {
		for i := k + 1; i < n; i++ {
			f := d.lu.At(i, k)
			for j := 0; j < x.cols; j++ {
				x.Set(i, j, x.At(i, j)-f*x.At(k, j))
			}
		}
	}
	// back substitution with U
	for k := n - 1; k >= 0; k-- {
		for j := 0; j < x.cols; j++ {
			x.Set(k, j, x.At(k, j)/d.lu.At(k, k))
		}
		for i := 0; i < k; i++ {
			f := d.lu.At(i, k)
			for j := 0; j < x.cols; j++ {
				x.Set(i, j, x.At(i, j)-f*x.At(k, j))
			}
		}
	}
	return x, nil
}

func (d *LU) Inverse() (*Matrix, error) {
	return d.Solve(Identity(d.lu.rows))
}

// QR is a Householder factorization, A = Q R with Q orthogonal (m x m) and
// R upper triangular (m x n)
type QR struct {
	q *Matrix
	r *Matrix
}

func NewQR(a *Matrix) (*QR, error) {
	m, n := a.rows, a.cols
	r := a.Clone()
	q := Identity(m)

	for k := 0; k < min(m-1, n); k++ {
		var norm float64
		for i := k; i < m; i++ {
			norm = math.Hypot(norm, r.At(i, k))
		}
		if norm == 0 {
			continue
		}
		alpha := -norm
		if r.At(k, k) < 0 {
			alpha = norm
		}
		v := make([]float64, m-k)
		for i := k; i < m; i++ {
			v[i-k] = r.At(i, k)
		}
		v[0] -= alpha
		var vv float64
		for _, x := range v {
			vv += x * x
		}
		if vv == 0 {
			continue
		}

		// R = H R
		for j := 0; j < n; j++ {
			var dot float64
			for i := k; i < m; i++ {
				dot += v[i-k] * r.At(i, j)
			}
			f := 2 * dot / vv
			for i := k; i < m; i++ {
				r.Set(i, j, r.At(i, j)-f*v[i-k])
			}
		}
		// Q = Q H
		for i := 0; i < m; i++ {
			var dot float64
			for l := k; l < m; l++ {
				dot += q.At(i, l) * v[l-k]
			}
			f := 2 * dot / vv
			for l := k; l < m; l++ {
				q.Set(i, l, q.At(i, l)-f*v[l-k])
			}
		}
	}
	return &QR{q: q, r: r}, nil
}

func (d *QR) Kind() string { return KindQR }

func (d *QR) Q() *Matrix { return d.q.Clone() }

func (d *QR) R() *Matrix { return d.r.Clone() }

// Solve returns the least squares solution of A x = b. A needs at least as
// many rows as columns and full column rank.
func (d *QR) Solve(b *Matrix) (*Matrix, error) {
	m, n := d.r.rows, d.r.cols
	if m < n {
		return nil, fmt.Errorf("%dx%d is underdetermined: %w", m, n, ErrDimensionMismatch)
	}
	if b.rows != m {
		return nil, fmt.Errorf("right-hand side has %d rows, want %d: %w", b.rows, m, ErrDimensionMismatch)
	}
	y := product(d.q.Transpose(), b)
	x := New(n, b.cols)
	for j := 0; j < b.cols; j++ {
		for i := n - 1; i >= 0; i-- {
			rii := d.r.At(i, i)
			if math.Abs(rii) < singularTolerance {
				return nil, ErrSingular
			}
			s := y.At(i, j)
			for k := i + 1; k < n; k++ {
				s -= d.r.At(i, k) * x.At(k, j)
			}
			x.Set(i, j, s/rii)
		}
	}
	return x, nil
}
