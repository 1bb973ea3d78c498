// Package nn implements the small convolutional network used for digit
// recognition: layer forward passes for serving, backward passes for
// training, and gob checkpoints for the on-disk model artifact.
package nn

import (
	"math"

	"github.com/romba050/hand-written-digits/internal/tensor"
)

// Activation names accepted by Conv2D and Dense. ActSoftmax is only
// meaningful on the terminal Dense layer.
const (
	ActNone    = ""
	ActReLU    = "relu"
	ActSoftmax = "softmax"
)

// Layer is one named stage of the network. Forward must be pure: no
// mutation of layer state, so a loaded network can serve concurrent
// requests without locking.
type Layer interface {
	Name() string
	Forward(x *tensor.Tensor) *tensor.Tensor
	OutShape(in []int) []int
}

// trainable is implemented by layers that participate in backprop.
// ForwardTrain may cache inputs for the backward pass and is therefore
// only safe from a single training goroutine.
type trainable interface {
	Layer
	ForwardTrain(x *tensor.Tensor) *tensor.Tensor
	Backward(grad *tensor.Tensor) *tensor.Tensor
}

// parameterized is implemented by layers carrying learned weights.
type parameterized interface {
	Params() []*tensor.Tensor
	Grads() []*tensor.Tensor
}

func relu32(v float32) float32 {
	if v < 0 {
		return 0
	}
	return v
}

// heScale returns the He-initialization standard deviation for a layer
// with the given fan-in, suited to ReLU activations.
func heScale(fanIn int) float32 {
	return float32(math.Sqrt(2.0 / float64(fanIn)))
}
