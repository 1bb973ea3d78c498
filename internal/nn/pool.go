package nn

import "github.com/romba050/hand-written-digits/internal/tensor"

// MaxPool2D downsamples NHWC tensors by taking the maximum over
// non-overlapping Pool×Pool windows. Trailing rows/columns that do not
// fill a window are dropped, matching the usual valid-pooling behavior.
type MaxPool2D struct {
	LayerName string
	Pool      int

	argmax []int // flat input index of each output element, training only
	inDims []int
}

// NewMaxPool2D creates a pooling layer with the given window size.
func NewMaxPool2D(pool int) *MaxPool2D {
	return &MaxPool2D{Pool: pool}
}

func (p *MaxPool2D) Name() string { return p.LayerName }

func (p *MaxPool2D) OutShape(in []int) []int {
	return []int{in[0], in[1] / p.Pool, in[2] / p.Pool, in[3]}
}

func (p *MaxPool2D) Forward(x *tensor.Tensor) *tensor.Tensor {
	out, _ := p.apply(x)
	return out
}

func (p *MaxPool2D) ForwardTrain(x *tensor.Tensor) *tensor.Tensor {
	out, argmax := p.apply(x)
	p.argmax = argmax
	p.inDims = x.Shape()
	return out
}

func (p *MaxPool2D) apply(x *tensor.Tensor) (*tensor.Tensor, []int) {
	n, h, w, ch := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	oh, ow := h/p.Pool, w/p.Pool
	out := tensor.New(n, oh, ow, ch)
	argmax := make([]int, out.Size())

	xd, od := x.Data(), out.Data()
	xRow := w * ch

	for b := 0; b < n; b++ {
		inBase := b * h * xRow
		outBase := b * oh * ow * ch
		for y := 0; y < oh; y++ {
			for xx := 0; xx < ow; xx++ {
				dst := outBase + (y*ow+xx)*ch
				for c := 0; c < ch; c++ {
					best := inBase + (y*p.Pool)*xRow + (xx*p.Pool)*ch + c
					bestVal := xd[best]
					for py := 0; py < p.Pool; py++ {
						for px := 0; px < p.Pool; px++ {
							idx := inBase + (y*p.Pool+py)*xRow + (xx*p.Pool+px)*ch + c
							if xd[idx] > bestVal {
								bestVal = xd[idx]
								best = idx
							}
						}
					}
					od[dst+c] = bestVal
					argmax[dst+c] = best
				}
			}
		}
	}
	return out, argmax
}

// Backward routes each gradient back to the input position that won the
// corresponding max window.
func (p *MaxPool2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	dIn := tensor.New(p.inDims...)
	did, gd := dIn.Data(), grad.Data()
	for i, src := range p.argmax {
		did[src] += gd[i]
	}
	return dIn
}
