package nn

import (
	"encoding/gob"
	"fmt"
	"os"
)

// checkpointVersion guards against loading artifacts written by an
// incompatible build.
const checkpointVersion = 1

type checkpoint struct {
	Version int
	Layers  []Layer
}

func init() {
	gob.Register(&Conv2D{})
	gob.Register(&MaxPool2D{})
	gob.Register(&Flatten{})
	gob.Register(&Dropout{})
	gob.Register(&Dense{})
}

// Save writes the network to path as a gob checkpoint. The file is
// written to a temp name and renamed so a crash mid-write never leaves a
// truncated artifact at the model path.
func (n *Network) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	err = gob.NewEncoder(f).Encode(checkpoint{Version: checkpointVersion, Layers: n.Layers})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize checkpoint: %w", err)
	}
	return nil
}

// Load reads a network checkpoint from path.
func Load(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cp checkpoint
	if err := gob.NewDecoder(f).Decode(&cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if cp.Version != checkpointVersion {
		return nil, fmt.Errorf("checkpoint %s: unsupported version %d", path, cp.Version)
	}
	return &Network{Layers: cp.Layers}, nil
}
