// Package preprocess converts a base64 canvas capture into the normalized
// tensor the digit model was trained on.
package preprocess

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/romba050/hand-written-digits/internal/tensor"
)

// Side is the input resolution the model expects.
const Side = 28

// FromBase64 decodes a base64-encoded (optionally data-URL wrapped) image
// and produces a (1, 28, 28, 1) float32 tensor in [0,1].
//
// The canvas draws dark ink on a light background while the training data
// is light ink on dark, so pixel values are inverted. Skipping the
// inversion silently breaks recognition; the resize must stay Lanczos
// because the training resolution and filter materially affect accuracy
// on thin strokes.
func FromBase64(data string) (*tensor.Tensor, error) {
	if idx := strings.Index(data, "base64,"); idx >= 0 {
		data = data[idx+len("base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image bytes: %w", err)
	}

	return FromImage(img), nil
}

// FromImage runs the preprocessing pipeline on an already decoded image:
// luminance grayscale, Lanczos resize to 28x28, scale to [0,1], invert,
// add batch and channel dimensions.
func FromImage(img image.Image) *tensor.Tensor {
	gray := toGray(img)
	resized := resize.Resize(Side, Side, gray, resize.Lanczos3)

	t := tensor.New(1, Side, Side, 1)
	d := t.Data()
	bounds := resized.Bounds()
	for y := 0; y < Side; y++ {
		for x := 0; x < Side; x++ {
			c := color.GrayModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			v := float32(c.Y) / 255
			d[y*Side+x] = 1 - v
		}
	}
	return t
}

// toGray converts using the standard luminance weights of color.GrayModel.
func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// Invert flips foreground/background polarity in place and returns t.
// Applying it twice restores the original values.
func Invert(t *tensor.Tensor) *tensor.Tensor {
	d := t.Data()
	for i, v := range d {
		d[i] = 1 - v
	}
	return t
}

// Ink returns the mean pixel intensity of a preprocessed tensor. After
// inversion, ink is high-valued, so a near-zero result means the canvas
// was effectively blank.
func Ink(t *tensor.Tensor) float32 {
	d := t.Data()
	var sum float32
	for _, v := range d {
		sum += v
	}
	return sum / float32(len(d))
}
