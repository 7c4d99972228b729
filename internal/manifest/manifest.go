// Package manifest loads the transformation tool's manifest artifact into
// core Models with resolved upstream dependencies.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lineforge/lineforge/pkg/core"
)

// Edge is an explicit column-level lineage edge declared in the manifest.
// A SourceColumn of "*" means the producer could not name the column; the
// inference engine resolves it from the compiled SQL.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceColumn string `json:"sourceColumn"`
	TargetColumn string `json:"targetColumn"`
}

// Manifest is the parsed input artifact: all nodes plus any explicit
// column-level edges the producer emitted.
type Manifest struct {
	Path   string
	Models map[string]*core.Model
	Edges  []Edge
}

// ModelIDs returns the node ids of all model-type nodes, sorted for
// deterministic iteration.
func (m *Manifest) ModelIDs() []string {
	ids := make([]string, 0, len(m.Models))
	for id, node := range m.Models {
		if node.Type == core.NodeModel {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Node returns the node with the given id.
func (m *Manifest) Node(id string) (*core.Model, bool) {
	node, ok := m.Models[id]
	return node, ok
}

// Upstreams returns the resolved upstream nodes of the given model, in the
// order they are declared.
func (m *Manifest) Upstreams(model *core.Model) []*core.Model {
	ups := make([]*core.Model, 0, len(model.DependsOn))
	for _, dep := range model.DependsOn {
		if up, ok := m.Models[dep]; ok {
			ups = append(ups, up)
		}
	}
	return ups
}

// rawManifest mirrors the JSON structure of the artifact.
type rawManifest struct {
	Nodes   map[string]rawNode `json:"nodes"`
	Lineage struct {
		Edges []Edge `json:"edges"`
	} `json:"lineage"`
}

type rawNode struct {
	Name         string         `json:"name"`
	Database     string         `json:"database"`
	Schema       string         `json:"schema"`
	NodeType     string         `json:"nodeType"`
	CompiledCode string         `json:"compiledCode"`
	Location     string         `json:"location"`
	Columns      orderedColumns `json:"columns"`
	DependsOn    []string       `json:"dependsOn"`
}

// orderedColumns decodes the manifest's columns object while preserving
// declaration order, which encoding/json's map decoding would lose.
type orderedColumns []core.Column

type rawColumn struct {
	DataType    string `json:"dataType"`
	Description string `json:"description"`
}

func (c *orderedColumns) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("columns: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("columns: expected key, got %v", keyTok)
		}

		var rc rawColumn
		if err := dec.Decode(&rc); err != nil {
			return fmt.Errorf("columns: column %q: %w", name, err)
		}
		*c = append(*c, core.Column{
			Name:        name,
			DataType:    rc.DataType,
			Description: rc.Description,
		})
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
