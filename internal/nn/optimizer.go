package nn

import (
	"math"

	"github.com/romba050/hand-written-digits/internal/tensor"
)

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates.
type Adam struct {
	LR    float32
	Beta1 float32
	Beta2 float32
	Eps   float32

	t int
	m [][]float32
	v [][]float32
}

// NewAdam creates an Adam optimizer with the usual defaults for the betas
// and epsilon.
func NewAdam(lr float32) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-7}
}

// Step applies one update to params given matching grads. Moment buffers
// are allocated lazily on the first call; the params slice must keep the
// same order across calls.
func (a *Adam) Step(params, grads []*tensor.Tensor) {
	if a.m == nil {
		a.m = make([][]float32, len(params))
		a.v = make([][]float32, len(params))
		for i, p := range params {
			a.m[i] = make([]float32, p.Size())
			a.v[i] = make([]float32, p.Size())
		}
	}
	a.t++
	c1 := 1 - float32(math.Pow(float64(a.Beta1), float64(a.t)))
	c2 := 1 - float32(math.Pow(float64(a.Beta2), float64(a.t)))

	for i, p := range params {
		pd, gd := p.Data(), grads[i].Data()
		m, v := a.m[i], a.v[i]
		for j, g := range gd {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			pd[j] -= a.LR * mHat / (float32(math.Sqrt(float64(vHat))) + a.Eps)
		}
	}
}
