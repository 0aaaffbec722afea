// Package artifact reads and writes the persisted topology.json.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gaps-closure/vscle/pkg/models"
)

// FileName is the name of the persisted topology inside the output directory.
const FileName = "topology.json"

// Path returns the artifact location inside outputDir.
func Path(outputDir string) string {
	return filepath.Join(outputDir, FileName)
}

// Read loads a topology artifact.
func Read(path string) (*models.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var top models.Topology
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &top, nil
}

// Write stores top at path, creating the parent directory. The file is
// replaced atomically so readers never observe a partial artifact.
func Write(path string, top *models.Topology) error {
	data, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".topology-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
