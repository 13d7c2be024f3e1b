package autoencoder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const checkpointVersion = 1

// Checkpoint is the on-disk form of a trained Network.
type Checkpoint struct {
	Version  int             `json:"version"`
	SavedAt  time.Time       `json:"savedAt"`
	History  History         `json:"history"`
	Layers   []*Layer        `json:"layers"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Network rebuilds a validated Network from the checkpoint's layers.
func (c *Checkpoint) Network() (*Network, error) {
	net := (&Network{Layers: c.Layers}).Clone()
	if err := net.validate(); err != nil {
		return nil, errors.Wrap(err, "checkpoint holds an invalid network")
	}
	return net, nil
}

// Save writes the Network and the given history to path. The file is written to a
// temporary sibling first and renamed into place.
func (net *Network) Save(path string, hist History, metadata json.RawMessage) error {
	if err := net.validate(); err != nil {
		return errors.Wrap(err, "refusing to save invalid network")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory %q", dir)
		}
	}

	cp := Checkpoint{
		Version:  checkpointVersion,
		SavedAt:  time.Now().UTC(),
		History:  hist,
		Layers:   net.Layers,
		Metadata: metadata,
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return errors.Wrap(err, "failed to encode checkpoint")
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %q", tempPath)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrapf(err, "failed to rename %q", tempPath)
	}

	return nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read checkpoint %q", path)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.Wrapf(err, "failed to decode checkpoint %q", path)
	}
	if cp.Version != checkpointVersion {
		return nil, errors.Errorf("checkpoint %q has version %d, expected %d", path, cp.Version, checkpointVersion)
	}

	return &cp, nil
}

// FileCheckpointer overwrites the checkpoint file at Path on every improvement.
type FileCheckpointer struct {
	Path     string
	Metadata json.RawMessage
}

func (f *FileCheckpointer) Save(net *Network, hist History) error {
	return net.Save(f.Path, hist, f.Metadata)
}

func (f *FileCheckpointer) Restore() (*Network, error) {
	cp, err := Load(f.Path)
	if err != nil {
		return nil, err
	}
	return cp.Network()
}
