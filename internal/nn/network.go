package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/romba050/hand-written-digits/internal/tensor"
)

// Capture is one intermediate layer output recorded during a forward pass.
type Capture struct {
	Layer  string
	Output *tensor.Tensor
}

// Network is an ordered stack of layers. The terminal Dense carries the
// softmax activation, so a capture of the last layer's output is the
// probability vector, not raw logits. During training the softmax is
// folded into the cross-entropy gradient (ForwardTrain yields logits).
type Network struct {
	Layers []Layer
}

// NewNetwork builds a network and assigns Keras-style auto-names
// (conv2d, conv2d_1, max_pooling2d, flatten, dropout, dense, ...) to any
// layer without an explicit name. The trainer and server both rely on
// these names: activation capture matches on name substrings.
func NewNetwork(layers ...Layer) *Network {
	counts := map[string]int{}
	for _, l := range layers {
		kind := kindName(l)
		n := counts[kind]
		counts[kind] = n + 1
		name := kind
		if n > 0 {
			name = fmt.Sprintf("%s_%d", kind, n)
		}
		setName(l, name)
	}
	return &Network{Layers: layers}
}

func kindName(l Layer) string {
	switch l.(type) {
	case *Conv2D:
		return "conv2d"
	case *MaxPool2D:
		return "max_pooling2d"
	case *Flatten:
		return "flatten"
	case *Dropout:
		return "dropout"
	case *Dense:
		return "dense"
	default:
		return "layer"
	}
}

func setName(l Layer, name string) {
	switch v := l.(type) {
	case *Conv2D:
		if v.LayerName == "" {
			v.LayerName = name
		}
	case *MaxPool2D:
		if v.LayerName == "" {
			v.LayerName = name
		}
	case *Flatten:
		if v.LayerName == "" {
			v.LayerName = name
		}
	case *Dropout:
		if v.LayerName == "" {
			v.LayerName = name
		}
	case *Dense:
		if v.LayerName == "" {
			v.LayerName = name
		}
	}
}

// NewMnistCNN builds the digit recognition architecture: three ReLU
// convolution blocks, then flatten, dropout and two dense layers. The
// final dense layer emits the 10-class softmax distribution.
func NewMnistCNN(rng *rand.Rand) *Network {
	return NewNetwork(
		NewConv2D(1, 32, 3, ActReLU, rng),
		NewMaxPool2D(2),
		NewConv2D(32, 64, 3, ActReLU, rng),
		NewMaxPool2D(2),
		NewConv2D(64, 64, 3, ActReLU, rng),
		NewFlatten(),
		NewDropout(0.5, rng),
		NewDense(3*3*64, 64, ActReLU, rng),
		NewDropout(0.3, rng),
		NewDense(64, 10, ActSoftmax, rng),
	)
}

// Forward runs a pure inference pass and returns the final layer output,
// shape (N, classes); with a softmax terminal layer these are
// probabilities.
func (n *Network) Forward(x *tensor.Tensor) *tensor.Tensor {
	for _, l := range n.Layers {
		x = l.Forward(x)
	}
	return x
}

// ForwardCaptured runs one inference pass, recording the output of every
// layer whose name the capture predicate accepts. The captured tensors
// are post-activation layer outputs, in layer order, so a capture of the
// softmax layer holds probabilities. Pure like Forward.
func (n *Network) ForwardCaptured(x *tensor.Tensor, capture func(name string) bool) (*tensor.Tensor, []Capture) {
	var captures []Capture
	for _, l := range n.Layers {
		x = l.Forward(x)
		if capture != nil && capture(l.Name()) {
			captures = append(captures, Capture{Layer: l.Name(), Output: x})
		}
	}
	return x, captures
}

// ForwardTrain runs a training pass (dropout active, caches retained)
// and returns logits: a softmax terminal layer emits its pre-activation
// here so CrossEntropyLoss can pair softmax with the loss gradient.
func (n *Network) ForwardTrain(x *tensor.Tensor) *tensor.Tensor {
	for _, l := range n.Layers {
		x = l.(trainable).ForwardTrain(x)
	}
	return x
}

// Backward propagates a logits gradient through the stack, filling each
// parameterized layer's gradients.
func (n *Network) Backward(grad *tensor.Tensor) {
	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].(trainable).Backward(grad)
	}
}

// Params returns all learned weight tensors in a stable order.
func (n *Network) Params() []*tensor.Tensor {
	var out []*tensor.Tensor
	for _, l := range n.Layers {
		if p, ok := l.(parameterized); ok {
			out = append(out, p.Params()...)
		}
	}
	return out
}

// Grads returns the gradient tensors matching Params order.
func (n *Network) Grads() []*tensor.Tensor {
	var out []*tensor.Tensor
	for _, l := range n.Layers {
		if p, ok := l.(parameterized); ok {
			out = append(out, p.Grads()...)
		}
	}
	return out
}

// Softmax converts (N, classes) logits to probabilities, numerically
// stabilized by subtracting the per-row maximum before exponentiation.
func Softmax(logits *tensor.Tensor) *tensor.Tensor {
	n, classes := logits.Dim(0), logits.Dim(1)
	out := tensor.New(n, classes)
	ld, od := logits.Data(), out.Data()
	for b := 0; b < n; b++ {
		row := ld[b*classes : (b+1)*classes]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		oRow := od[b*classes : (b+1)*classes]
		for i, v := range row {
			e := float32(math.Exp(float64(v - max)))
			oRow[i] = e
			sum += e
		}
		for i := range oRow {
			oRow[i] /= sum
		}
	}
	return out
}

// CrossEntropyLoss computes the mean sparse categorical cross-entropy of
// logits against integer labels, along with the logits gradient
// (softmax - onehot)/N for the backward pass.
func CrossEntropyLoss(logits *tensor.Tensor, labels []int) (float32, *tensor.Tensor) {
	n, classes := logits.Dim(0), logits.Dim(1)
	probs := Softmax(logits)
	grad := probs.Clone()
	pd, gd := probs.Data(), grad.Data()

	var loss float64
	inv := 1 / float32(n)
	for b, label := range labels {
		p := pd[b*classes+label]
		if p < 1e-12 {
			p = 1e-12
		}
		loss -= math.Log(float64(p))
		gd[b*classes+label] -= 1
	}
	for i := range gd {
		gd[i] *= inv
	}
	return float32(loss / float64(n)), grad
}
