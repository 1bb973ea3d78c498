package tensor

import (
	"bytes"
	"encoding/gob"
)

type wireTensor struct {
	Shape []int
	Data  []float32
}

// GobEncode implements gob.GobEncoder so tensors survive model checkpoints
// despite keeping their fields unexported.
func (t *Tensor) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(wireTensor{Shape: t.shape, Data: t.data})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (t *Tensor) GobDecode(b []byte) error {
	var w wireTensor
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&w); err != nil {
		return err
	}
	t.shape = w.Shape
	t.data = w.Data
	return nil
}
