package nn

import (
	"math/rand"

	"github.com/romba050/hand-written-digits/internal/tensor"
)

// Conv2D is a 2D convolution over NHWC tensors with valid padding and
// stride 1, optionally fused with a ReLU activation. Weights have shape
// (K, K, inC, outC).
type Conv2D struct {
	LayerName string
	InC, OutC int
	K         int
	Act       string
	W         *tensor.Tensor
	B         *tensor.Tensor

	lastIn  *tensor.Tensor // training caches, unused at inference
	lastPre *tensor.Tensor
	gradW   *tensor.Tensor
	gradB   *tensor.Tensor
}

// NewConv2D creates a convolution layer with He-initialized kernels.
func NewConv2D(inC, outC, k int, act string, rng *rand.Rand) *Conv2D {
	w := tensor.New(k, k, inC, outC)
	scale := heScale(k * k * inC)
	for i, d := 0, w.Data(); i < len(d); i++ {
		d[i] = float32(rng.NormFloat64()) * scale
	}
	return &Conv2D{
		InC: inC, OutC: outC, K: k, Act: act,
		W: w,
		B: tensor.New(outC),
	}
}

func (c *Conv2D) Name() string { return c.LayerName }

// OutShape reports the output shape for an NHWC input shape.
func (c *Conv2D) OutShape(in []int) []int {
	return []int{in[0], in[1] - c.K + 1, in[2] - c.K + 1, c.OutC}
}

// Forward computes the convolution without touching layer state.
func (c *Conv2D) Forward(x *tensor.Tensor) *tensor.Tensor {
	out, _ := c.apply(x)
	return out
}

// ForwardTrain runs the convolution and caches the input and
// pre-activation values for Backward.
func (c *Conv2D) ForwardTrain(x *tensor.Tensor) *tensor.Tensor {
	out, pre := c.apply(x)
	c.lastIn = x
	c.lastPre = pre
	return out
}

// apply returns (activated output, pre-activation). When no activation is
// configured the two are the same tensor.
func (c *Conv2D) apply(x *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor) {
	n, h, w := x.Dim(0), x.Dim(1), x.Dim(2)
	oh, ow := h-c.K+1, w-c.K+1
	pre := tensor.New(n, oh, ow, c.OutC)

	xd, wd, bd, pd := x.Data(), c.W.Data(), c.B.Data(), pre.Data()
	// Strides for NHWC input and (K,K,inC,outC) weights.
	xRow := w * c.InC
	wRow := c.K * c.InC * c.OutC

	for b := 0; b < n; b++ {
		inBase := b * h * xRow
		outBase := b * oh * ow * c.OutC
		for y := 0; y < oh; y++ {
			for xx := 0; xx < ow; xx++ {
				dst := outBase + (y*ow+xx)*c.OutC
				for o := 0; o < c.OutC; o++ {
					pd[dst+o] = bd[o]
				}
				for ky := 0; ky < c.K; ky++ {
					srcRow := inBase + (y+ky)*xRow + xx*c.InC
					wBase := ky * wRow
					for kx := 0; kx < c.K; kx++ {
						src := srcRow + kx*c.InC
						wb := wBase + kx*c.InC*c.OutC
						for ci := 0; ci < c.InC; ci++ {
							v := xd[src+ci]
							if v == 0 {
								continue
							}
							wc := wb + ci*c.OutC
							for o := 0; o < c.OutC; o++ {
								pd[dst+o] += v * wd[wc+o]
							}
						}
					}
				}
			}
		}
	}

	if c.Act != ActReLU {
		return pre, pre
	}
	out := tensor.New(n, oh, ow, c.OutC)
	od := out.Data()
	for i, v := range pd {
		od[i] = relu32(v)
	}
	return out, pre
}

// Backward propagates grad through the convolution, accumulating weight
// and bias gradients and returning the input gradient.
func (c *Conv2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	x := c.lastIn
	n, h, w := x.Dim(0), x.Dim(1), x.Dim(2)
	oh, ow := h-c.K+1, w-c.K+1

	c.gradW = tensor.New(c.K, c.K, c.InC, c.OutC)
	c.gradB = tensor.New(c.OutC)
	dIn := tensor.New(n, h, w, c.InC)

	gd := grad.Data()
	if c.Act == ActReLU {
		// Gate the incoming gradient by the pre-activation sign.
		pd := c.lastPre.Data()
		gated := make([]float32, len(gd))
		for i, v := range gd {
			if pd[i] > 0 {
				gated[i] = v
			}
		}
		gd = gated
	}

	xd, wd := x.Data(), c.W.Data()
	gwd, gbd, did := c.gradW.Data(), c.gradB.Data(), dIn.Data()
	xRow := w * c.InC
	wRow := c.K * c.InC * c.OutC

	for b := 0; b < n; b++ {
		inBase := b * h * xRow
		outBase := b * oh * ow * c.OutC
		for y := 0; y < oh; y++ {
			for xx := 0; xx < ow; xx++ {
				gBase := outBase + (y*ow+xx)*c.OutC
				for o := 0; o < c.OutC; o++ {
					gbd[o] += gd[gBase+o]
				}
				for ky := 0; ky < c.K; ky++ {
					srcRow := inBase + (y+ky)*xRow + xx*c.InC
					wBase := ky * wRow
					for kx := 0; kx < c.K; kx++ {
						src := srcRow + kx*c.InC
						wb := wBase + kx*c.InC*c.OutC
						for ci := 0; ci < c.InC; ci++ {
							wc := wb + ci*c.OutC
							xv := xd[src+ci]
							var dx float32
							for o := 0; o < c.OutC; o++ {
								g := gd[gBase+o]
								gwd[wc+o] += xv * g
								dx += wd[wc+o] * g
							}
							did[src+ci] += dx
						}
					}
				}
			}
		}
	}
	return dIn
}

func (c *Conv2D) Params() []*tensor.Tensor { return []*tensor.Tensor{c.W, c.B} }

func (c *Conv2D) Grads() []*tensor.Tensor {
	if c.gradW == nil {
		c.gradW = tensor.New(c.K, c.K, c.InC, c.OutC)
		c.gradB = tensor.New(c.OutC)
	}
	return []*tensor.Tensor{c.gradW, c.gradB}
}
