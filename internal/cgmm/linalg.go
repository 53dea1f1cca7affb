package cgmm

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var logPi = math.Log(math.Pi)

// row returns row i of g as a slice aliasing its backing data
func row(g *mat.CDense, i int) []complex128 {
	raw := g.RawCMatrix()
	return raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
}

// cells returns every element of g in row-major order. Only valid for
// matrices allocated by NewCDense, whose stride equals the column count.
func cells(g *mat.CDense) []complex128 {
	raw := g.RawCMatrix()
	return raw.Data[:raw.Rows*raw.Stride]
}

func cloneCDense(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	out.Copy(a)
	return out
}

func identity(n int) *mat.CDense {
	m := mat.NewCDense(n, n, nil)
	for i := range n {
		m.Set(i, i, 1)
	}
	return m
}

// outer returns x·xᴴ
func outer(x []complex128) *mat.CDense {
	n := len(x)
	data := make([]complex128, n*n)
	for i := range x {
		for j := range x {
			data[i*n+j] = x[i] * cmplx.Conj(x[j])
		}
	}
	return mat.NewCDense(n, n, data)
}

// quadraticForm returns xᴴ·A·x
func quadraticForm(x []complex128, a *mat.CDense) complex128 {
	var sum complex128
	for i := range x {
		var ax complex128
		for j := range x {
			ax += a.At(i, j) * x[j]
		}
		sum += cmplx.Conj(x[i]) * ax
	}
	return sum
}

// traceProduct returns trace(A·B) without forming the product
func traceProduct(a, b *mat.CDense) complex128 {
	n, _ := a.Dims()
	var tr complex128
	for i := range n {
		for j := range n {
			tr += a.At(i, j) * b.At(j, i)
		}
	}
	return tr
}

func finite(a *mat.CDense) bool {
	r, c := a.Dims()
	for i := range r {
		for j := range c {
			v := a.At(i, j)
			if cmplx.IsNaN(v) || cmplx.IsInf(v) {
				return false
			}
		}
	}
	return true
}

// embed returns the real 2n x 2n representation [[Re, -Im], [Im, Re]] of a.
// The map is a ring homomorphism, so inverses and eigenvalues carry over.
func embed(a *mat.CDense) *mat.Dense {
	n, _ := a.Dims()
	e := mat.NewDense(2*n, 2*n, nil)
	for i := range n {
		for j := range n {
			v := a.At(i, j)
			e.Set(i, j, real(v))
			e.Set(i, j+n, -imag(v))
			e.Set(i+n, j, imag(v))
			e.Set(i+n, j+n, real(v))
		}
	}
	return e
}

// invert returns a⁻¹. Non-finite or (near-)singular input yields
// ErrSingularCovariance.
func invert(a *mat.CDense) (*mat.CDense, error) {
	if !finite(a) {
		return nil, fmt.Errorf("%w: matrix has non-finite entries", ErrSingularCovariance)
	}

	n, _ := a.Dims()
	var inv mat.Dense
	if err := inv.Inverse(embed(a)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularCovariance, err)
	}

	out := mat.NewCDense(n, n, nil)
	for i := range n {
		for j := range n {
			out.Set(i, j, complex(inv.At(i, j), inv.At(i+n, j)))
		}
	}
	return out, nil
}

// determinant computes det(a) by LU decomposition with partial pivoting.
// gonum only factorizes real matrices, and the real embedding yields |det|²
// which loses the phase.
func determinant(a *mat.CDense) complex128 {
	n, _ := a.Dims()
	lu := cloneCDense(a)
	det := complex(1, 0)

	for k := range n {
		pivot, best := k, cmplx.Abs(lu.At(k, k))
		for i := k + 1; i < n; i++ {
			if v := cmplx.Abs(lu.At(i, k)); v > best {
				pivot, best = i, v
			}
		}
		if best == 0 {
			return 0
		}
		if pivot != k {
			for j := range n {
				x, y := lu.At(k, j), lu.At(pivot, j)
				lu.Set(k, j, y)
				lu.Set(pivot, j, x)
			}
			det = -det
		}

		p := lu.At(k, k)
		det *= p
		for i := k + 1; i < n; i++ {
			factor := lu.At(i, k) / p
			for j := k + 1; j < n; j++ {
				lu.Set(i, j, lu.At(i, j)-factor*lu.At(k, j))
			}
		}
	}
	return det
}

// eigenvalueRealParts returns the real parts of the eigenvalues of a in
// ascending order. The embedding's spectrum is {λ, conj(λ)} for every
// eigenvalue λ of a, so the sorted real parts arrive in pairs.
func eigenvalueRealParts(a *mat.CDense) ([]float64, error) {
	n, _ := a.Dims()

	var eig mat.Eigen
	if ok := eig.Factorize(embed(a), mat.EigenNone); !ok {
		return nil, fmt.Errorf("eigendecomposition did not converge")
	}

	values := eig.Values(nil)
	re := make([]float64, len(values))
	for i, v := range values {
		re[i] = real(v)
	}
	slices.Sort(re)

	out := make([]float64, n)
	for i := range out {
		out[i] = re[2*i]
	}
	return out, nil
}

// spectralEntropy normalizes eigenvalues to a distribution and returns its
// Shannon entropy in nats
func spectralEntropy(eigenvalues []float64) float64 {
	p := floats.ScaleTo(make([]float64, len(eigenvalues)), 1/floats.Sum(eigenvalues), eigenvalues)
	return stat.Entropy(p)
}

func powInt(z complex128, n int) complex128 {
	out := complex(1, 0)
	for range n {
		out *= z
	}
	return out
}

// logDensity evaluates the zero-mean complex Gaussian log-density of x with
// covariance phi·Σ, given Σ⁻¹ and det(Σ):
//
//	-0.5·[M·log π + log(det·phi^M) + xᴴΣ⁻¹x / phi]
func logDensity(x []complex128, phi complex128, precision *mat.CDense, det complex128) complex128 {
	dim := len(x)
	quad := quadraticForm(x, precision) / phi
	return -0.5 * (complex(float64(dim)*logPi, 0) + cmplx.Log(det*powInt(phi, dim)) + quad)
}
