package registry

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"routectl/internal/model"
)

// snapshotFile is the on-disk YAML layout of a registry snapshot.
type snapshotFile struct {
	UpdatedAt time.Time           `yaml:"updated_at"`
	Nodes     []model.NodeMetrics `yaml:"nodes"`
	Keys      map[string][]string `yaml:"keys,omitempty"`
}

// LoadSnapshot loads a registry snapshot from disk. A missing file returns
// an empty registry.
func LoadSnapshot(path string) (*Registry, error) {
	r := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}

	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	for _, node := range file.Nodes {
		r.Register(node)
	}
	for nodeID, keys := range file.Keys {
		for _, key := range keys {
			// Keys for nodes missing from the snapshot are dropped.
			_ = r.AddKey(nodeID, key)
		}
	}
	return r, nil
}

// SaveSnapshot writes the registry to disk as YAML.
func (r *Registry) SaveSnapshot(path string) error {
	file := snapshotFile{UpdatedAt: time.Now().UTC()}

	r.mu.Lock()
	file.Nodes = make([]model.NodeMetrics, 0, len(r.nodes))
	for _, node := range r.nodes {
		node.Capabilities = copyStrings(node.Capabilities)
		file.Nodes = append(file.Nodes, node)
	}
	file.Keys = make(map[string][]string, len(r.keys))
	for nodeID, set := range r.keys {
		if len(set) == 0 {
			continue
		}
		keys := make([]string, 0, len(set))
		for key := range set {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		file.Keys[nodeID] = keys
	}
	r.mu.Unlock()

	// Stable node order keeps snapshots diffable.
	sort.Slice(file.Nodes, func(i, j int) bool { return file.Nodes[i].ID < file.Nodes[j].ID })

	data, err := yaml.Marshal(&file)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
