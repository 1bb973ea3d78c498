package nn

import (
	"math/rand"

	"github.com/romba050/hand-written-digits/internal/tensor"
)

// Flatten collapses all dimensions after the batch dimension.
type Flatten struct {
	LayerName string

	inDims []int
}

// NewFlatten creates a flatten layer.
func NewFlatten() *Flatten { return &Flatten{} }

func (f *Flatten) Name() string { return f.LayerName }

func (f *Flatten) OutShape(in []int) []int {
	size := 1
	for _, d := range in[1:] {
		size *= d
	}
	return []int{in[0], size}
}

func (f *Flatten) Forward(x *tensor.Tensor) *tensor.Tensor {
	return x.Reshape(f.OutShape(x.Shape())...)
}

func (f *Flatten) ForwardTrain(x *tensor.Tensor) *tensor.Tensor {
	f.inDims = x.Shape()
	return f.Forward(x)
}

func (f *Flatten) Backward(grad *tensor.Tensor) *tensor.Tensor {
	return grad.Reshape(f.inDims...)
}

// Dropout zeroes a fraction of its inputs during training and scales the
// survivors by 1/(1-rate) so expected magnitudes match inference, where
// the layer is an identity pass-through.
type Dropout struct {
	LayerName string
	Rate      float32

	rng  *rand.Rand
	mask []float32
}

// NewDropout creates a dropout layer with the given drop rate.
func NewDropout(rate float32, rng *rand.Rand) *Dropout {
	return &Dropout{Rate: rate, rng: rng}
}

func (d *Dropout) Name() string { return d.LayerName }

func (d *Dropout) OutShape(in []int) []int { return in }

func (d *Dropout) Forward(x *tensor.Tensor) *tensor.Tensor { return x }

func (d *Dropout) ForwardTrain(x *tensor.Tensor) *tensor.Tensor {
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(0))
	}
	keep := 1 - d.Rate
	scale := 1 / keep
	d.mask = make([]float32, x.Size())
	out := tensor.New(x.Shape()...)
	xd, od := x.Data(), out.Data()
	for i := range xd {
		if d.rng.Float32() < keep {
			d.mask[i] = scale
			od[i] = xd[i] * scale
		}
	}
	return out
}

func (d *Dropout) Backward(grad *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(grad.Shape()...)
	gd, od := grad.Data(), out.Data()
	for i, m := range d.mask {
		od[i] = gd[i] * m
	}
	return out
}
