// Package mnist loads the gzip-compressed IDX files of the MNIST
// handwritten digit dataset.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/romba050/hand-written-digits/internal/tensor"
)

// Standard MNIST file names as distributed.
const (
	TrainImagesFile = "train-images-idx3-ubyte.gz"
	TrainLabelsFile = "train-labels-idx1-ubyte.gz"
	TestImagesFile  = "t10k-images-idx3-ubyte.gz"
	TestLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

const (
	imageMagic = 0x00000803
	labelMagic = 0x00000801

	// ImgSize is the side length of every MNIST image.
	ImgSize = 28
)

// Set is one split of the dataset. Images holds N tensors of shape
// (1, 28, 28, 1) with values scaled to [0,1]; Labels holds the matching
// digit for each image.
type Set struct {
	Images []*tensor.Tensor
	Labels []int
}

// Load reads the train and test splits from dir.
func Load(dir string) (train, test *Set, err error) {
	train, err = loadSplit(dir, TrainImagesFile, TrainLabelsFile)
	if err != nil {
		return nil, nil, err
	}
	test, err = loadSplit(dir, TestImagesFile, TestLabelsFile)
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func loadSplit(dir, imgFile, labelFile string) (*Set, error) {
	images, err := readImages(filepath.Join(dir, imgFile))
	if err != nil {
		return nil, err
	}
	labels, err := readLabels(filepath.Join(dir, labelFile))
	if err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("mnist: %s has %d images but %s has %d labels",
			imgFile, len(images), labelFile, len(labels))
	}
	return &Set{Images: images, Labels: labels}, nil
}

func openIDX(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("mnist: gunzip %s: %w", path, err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("mnist: read %s: %w", path, err)
	}
	return raw, nil
}

func readImages(path string) ([]*tensor.Tensor, error) {
	raw, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < 16 {
		return nil, fmt.Errorf("mnist: %s: truncated header", path)
	}
	if magic := binary.BigEndian.Uint32(raw); magic != imageMagic {
		return nil, fmt.Errorf("mnist: %s: bad magic %#x", path, magic)
	}
	count := int(binary.BigEndian.Uint32(raw[4:]))
	rows := int(binary.BigEndian.Uint32(raw[8:]))
	cols := int(binary.BigEndian.Uint32(raw[12:]))
	if rows != ImgSize || cols != ImgSize {
		return nil, fmt.Errorf("mnist: %s: unexpected image size %dx%d", path, rows, cols)
	}
	pixels := raw[16:]
	if len(pixels) < count*rows*cols {
		return nil, fmt.Errorf("mnist: %s: truncated image data", path)
	}

	images := make([]*tensor.Tensor, count)
	for i := 0; i < count; i++ {
		t := tensor.New(1, rows, cols, 1)
		d := t.Data()
		src := pixels[i*rows*cols:]
		for j := range d {
			d[j] = float32(src[j]) / 255
		}
		images[i] = t
	}
	return images, nil
}

func readLabels(path string) ([]int, error) {
	raw, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("mnist: %s: truncated header", path)
	}
	if magic := binary.BigEndian.Uint32(raw); magic != labelMagic {
		return nil, fmt.Errorf("mnist: %s: bad magic %#x", path, magic)
	}
	count := int(binary.BigEndian.Uint32(raw[4:]))
	data := raw[8:]
	if len(data) < count {
		return nil, fmt.Errorf("mnist: %s: truncated label data", path)
	}
	labels := make([]int, count)
	for i := range labels {
		labels[i] = int(data[i])
	}
	return labels, nil
}
