package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/lineforge/lineforge/pkg/core"
)

// Load reads and validates a manifest file. Any structural problem is fatal
// and reported as a *core.ManifestError.
func Load(path string, logger *slog.Logger) (*Manifest, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.ManifestError{Path: path, Msg: "read failed", Err: err}
	}
	return Parse(data, path, logger)
}

// Parse decodes and validates manifest bytes. The path is used only for
// error reporting.
func Parse(data []byte, path string, logger *slog.Logger) (*Manifest, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &core.ManifestError{Path: path, Msg: "malformed JSON", Err: err}
	}
	if len(raw.Nodes) == 0 {
		return nil, &core.ManifestError{Path: path, Msg: "no nodes"}
	}

	m := &Manifest{
		Path:   path,
		Models: make(map[string]*core.Model, len(raw.Nodes)),
		Edges:  raw.Lineage.Edges,
	}

	for id, rn := range raw.Nodes {
		node, err := convertNode(id, rn, path)
		if err != nil {
			return nil, err
		}
		m.Models[id] = node
	}

	// Every dependsOn pointer must resolve to a node in the same manifest.
	for id, node := range m.Models {
		for _, dep := range node.DependsOn {
			if _, ok := m.Models[dep]; !ok {
				return nil, &core.ManifestError{
					Path: path,
					Node: id,
					Msg:  fmt.Sprintf("unresolvable dependency %q", dep),
				}
			}
		}
	}

	// Explicit edges must reference known nodes.
	for _, e := range m.Edges {
		if _, ok := m.Models[e.Source]; !ok {
			return nil, &core.ManifestError{
				Path: path,
				Msg:  fmt.Sprintf("lineage edge references unknown source node %q", e.Source),
			}
		}
		if _, ok := m.Models[e.Target]; !ok {
			return nil, &core.ManifestError{
				Path: path,
				Msg:  fmt.Sprintf("lineage edge references unknown target node %q", e.Target),
			}
		}
	}

	logger.Info("manifest loaded",
		slog.String("path", path),
		slog.Int("nodes", len(m.Models)),
		slog.Int("edges", len(m.Edges)))

	return m, nil
}

func convertNode(id string, rn rawNode, path string) (*core.Model, error) {
	if rn.Name == "" {
		return nil, &core.ManifestError{Path: path, Node: id, Msg: "missing name"}
	}

	var nodeType core.NodeType
	switch rn.NodeType {
	case "model":
		nodeType = core.NodeModel
	case "source", "seed":
		nodeType = core.NodeSource
	case "":
		return nil, &core.ManifestError{Path: path, Node: id, Msg: "missing nodeType"}
	default:
		return nil, &core.ManifestError{
			Path: path,
			Node: id,
			Msg:  fmt.Sprintf("unknown nodeType %q", rn.NodeType),
		}
	}

	if nodeType == core.NodeModel && rn.CompiledCode == "" {
		return nil, &core.ManifestError{Path: path, Node: id, Msg: "model missing compiledCode"}
	}

	return &core.Model{
		ID:        id,
		Name:      rn.Name,
		Database:  rn.Database,
		Schema:    rn.Schema,
		Type:      nodeType,
		SQL:       rn.CompiledCode,
		Location:  rn.Location,
		Columns:   []core.Column(rn.Columns),
		DependsOn: rn.DependsOn,
	}, nil
}
