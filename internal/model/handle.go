// Package model wraps a trained digit network behind a read-only handle
// the HTTP layer can share across requests.
package model

import (
	"fmt"
	"strings"

	"github.com/romba050/hand-written-digits/internal/nn"
	"github.com/romba050/hand-written-digits/internal/preprocess"
	"github.com/romba050/hand-written-digits/internal/tensor"
)

// NumClasses is the number of digit classes.
const NumClasses = 10

// Handle is a loaded, ready-to-evaluate classifier. It is effectively
// immutable after Load, so concurrent Predict calls need no locking.
type Handle struct {
	net *nn.Network
}

// Load reads the model artifact from path and performs a warm-up
// inference with a zero tensor so the first real request pays no lazy
// initialization cost. The caller decides what a missing artifact means;
// Load just returns the underlying error.
func Load(path string) (*Handle, error) {
	net, err := nn.Load(path)
	if err != nil {
		return nil, err
	}
	h := &Handle{net: net}
	if _, err := h.Predict(tensor.New(1, preprocess.Side, preprocess.Side, 1)); err != nil {
		return nil, fmt.Errorf("warm-up inference: %w", err)
	}
	return h, nil
}

// New wraps an in-memory network, used by the trainer and tests.
func New(net *nn.Network) *Handle {
	return &Handle{net: net}
}

// Layers returns the ordered layer names of the underlying network.
func (h *Handle) Layers() []string {
	names := make([]string, len(h.net.Layers))
	for i, l := range h.net.Layers {
		names[i] = l.Name()
	}
	return names
}

// LayerSummaries returns "name (shape)" descriptions of each layer for a
// batch-1 input, used by the architecture diagram.
func (h *Handle) LayerSummaries() []string {
	shape := []int{1, preprocess.Side, preprocess.Side, 1}
	out := make([]string, len(h.net.Layers))
	for i, l := range h.net.Layers {
		shape = l.OutShape(shape)
		dims := make([]string, len(shape)-1)
		for j, d := range shape[1:] {
			dims[j] = fmt.Sprint(d)
		}
		out[i] = fmt.Sprintf("%s (%s)", l.Name(), strings.Join(dims, "×"))
	}
	return out
}

// Predict returns the 10-class softmax distribution for a (1,28,28,1)
// input tensor.
func (h *Handle) Predict(t *tensor.Tensor) ([]float32, error) {
	probs := h.net.Forward(t)
	if probs.Size() != NumClasses {
		return nil, fmt.Errorf("model emitted %d scores, want %d", probs.Size(), NumClasses)
	}
	return probs.Data(), nil
}

// PredictWithActivations runs one forward pass, capturing the output of
// every layer the predicate accepts. Captured outputs have their batch
// dimension dropped, are flattened, and are evenly subsampled to at most
// maxSamples values so wide layers still fit the visualization.
func (h *Handle) PredictWithActivations(t *tensor.Tensor, capture func(name string) bool, maxSamples int) ([]float32, []LayerActivations, error) {
	probs, captures := h.net.ForwardCaptured(t, capture)
	if probs.Size() != NumClasses {
		return nil, nil, fmt.Errorf("model emitted %d scores, want %d", probs.Size(), NumClasses)
	}

	activations := make([]LayerActivations, 0, len(captures))
	for _, c := range captures {
		activations = append(activations, LayerActivations{
			Layer:       c.Layer,
			Activations: Subsample(c.Output.Data(), maxSamples),
		})
	}
	return probs.Data(), activations, nil
}

// NameFilter builds a capture predicate matching any layer whose name
// contains one of the given substrings. The trainer names dense and
// flatten layers accordingly, which is what ties the default filter
// ["dense", "flatten"] to the visualization.
func NameFilter(substrings []string) func(name string) bool {
	return func(name string) bool {
		for _, s := range substrings {
			if s != "" && strings.Contains(name, s) {
				return true
			}
		}
		return false
	}
}

// Subsample reduces values to at most max entries by picking evenly
// spaced indices spanning the full range, preserving the overall shape
// of the vector rather than truncating it. Values at or under the limit
// are returned copied but unchanged.
func Subsample(values []float32, max int) []float32 {
	if max <= 0 || len(values) <= max {
		out := make([]float32, len(values))
		copy(out, values)
		return out
	}
	if max == 1 {
		// A single evenly spaced index over the full range is the first.
		return []float32{values[0]}
	}
	out := make([]float32, max)
	last := float64(len(values) - 1)
	for i := range out {
		idx := int(last * float64(i) / float64(max-1))
		out[i] = values[idx]
	}
	return out
}

// Response assembles the full prediction payload: arg-max digit, its
// confidence, the per-class probability map and the activation trace.
func Response(probs []float32, activations []LayerActivations) *PredictResponse {
	digit := 0
	best := probs[0]
	probMap := make(map[string]float32, len(probs))
	for i, p := range probs {
		probMap[fmt.Sprint(i)] = p
		if p > best {
			best = p
			digit = i
		}
	}
	if activations == nil {
		activations = []LayerActivations{}
	}
	return &PredictResponse{
		Digit:              digit,
		Confidence:         best,
		Probabilities:      probMap,
		NetworkActivations: activations,
	}
}
