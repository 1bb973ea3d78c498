package nn

import (
	"math/rand"

	"github.com/romba050/hand-written-digits/internal/tensor"
)

// Dense is a fully connected layer over (N, In) tensors, optionally fused
// with a ReLU or softmax activation. Weights have shape (In, Out).
type Dense struct {
	LayerName string
	In, Out   int
	Act       string
	W         *tensor.Tensor
	B         *tensor.Tensor

	lastIn  *tensor.Tensor
	lastPre *tensor.Tensor
	gradW   *tensor.Tensor
	gradB   *tensor.Tensor
}

// NewDense creates a fully connected layer with He-initialized weights.
func NewDense(in, out int, act string, rng *rand.Rand) *Dense {
	w := tensor.New(in, out)
	scale := heScale(in)
	for i, d := 0, w.Data(); i < len(d); i++ {
		d[i] = float32(rng.NormFloat64()) * scale
	}
	return &Dense{In: in, Out: out, Act: act, W: w, B: tensor.New(out)}
}

func (l *Dense) Name() string { return l.LayerName }

func (l *Dense) OutShape(in []int) []int { return []int{in[0], l.Out} }

func (l *Dense) Forward(x *tensor.Tensor) *tensor.Tensor {
	out, _ := l.apply(x)
	return out
}

// ForwardTrain caches the input and pre-activation values for Backward.
// A softmax layer returns its pre-activation logits here: the softmax is
// folded into the cross-entropy gradient, which expects logits.
func (l *Dense) ForwardTrain(x *tensor.Tensor) *tensor.Tensor {
	out, pre := l.apply(x)
	l.lastIn = x
	l.lastPre = pre
	if l.Act == ActSoftmax {
		return pre
	}
	return out
}

func (l *Dense) apply(x *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor) {
	n := x.Dim(0)
	pre := tensor.New(n, l.Out)
	xd, wd, bd, pd := x.Data(), l.W.Data(), l.B.Data(), pre.Data()

	for b := 0; b < n; b++ {
		row := pd[b*l.Out : (b+1)*l.Out]
		copy(row, bd)
		xRow := xd[b*l.In : (b+1)*l.In]
		for i, xv := range xRow {
			if xv == 0 {
				continue
			}
			wRow := wd[i*l.Out : (i+1)*l.Out]
			for o, wv := range wRow {
				row[o] += xv * wv
			}
		}
	}

	switch l.Act {
	case ActReLU:
		out := tensor.New(n, l.Out)
		od := out.Data()
		for i, v := range pd {
			od[i] = relu32(v)
		}
		return out, pre
	case ActSoftmax:
		return Softmax(pre), pre
	default:
		return pre, pre
	}
}

// Backward propagates grad to the input, accumulating weight and bias
// gradients. For a softmax layer the incoming gradient is already with
// respect to the logits (see ForwardTrain), so only ReLU gates here.
func (l *Dense) Backward(grad *tensor.Tensor) *tensor.Tensor {
	n := grad.Dim(0)
	l.gradW = tensor.New(l.In, l.Out)
	l.gradB = tensor.New(l.Out)
	dIn := tensor.New(n, l.In)

	gd := grad.Data()
	if l.Act == ActReLU {
		pd := l.lastPre.Data()
		gated := make([]float32, len(gd))
		for i, v := range gd {
			if pd[i] > 0 {
				gated[i] = v
			}
		}
		gd = gated
	}

	xd, wd := l.lastIn.Data(), l.W.Data()
	gwd, gbd, did := l.gradW.Data(), l.gradB.Data(), dIn.Data()

	for b := 0; b < n; b++ {
		gRow := gd[b*l.Out : (b+1)*l.Out]
		xRow := xd[b*l.In : (b+1)*l.In]
		dRow := did[b*l.In : (b+1)*l.In]
		for o, g := range gRow {
			gbd[o] += g
		}
		for i, xv := range xRow {
			wRow := wd[i*l.Out : (i+1)*l.Out]
			gwRow := gwd[i*l.Out : (i+1)*l.Out]
			var dx float32
			for o, g := range gRow {
				gwRow[o] += xv * g
				dx += wRow[o] * g
			}
			dRow[i] = dx
		}
	}
	return dIn
}

func (l *Dense) Params() []*tensor.Tensor { return []*tensor.Tensor{l.W, l.B} }

func (l *Dense) Grads() []*tensor.Tensor {
	if l.gradW == nil {
		l.gradW = tensor.New(l.In, l.Out)
		l.gradB = tensor.New(l.Out)
	}
	return []*tensor.Tensor{l.gradW, l.gradB}
}
