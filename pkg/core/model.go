package core

import "strings"

// NodeType distinguishes transformed models from external source tables.
type NodeType string

const (
	// NodeModel is a transformed table with compiled SQL.
	NodeModel NodeType = "model"
	// NodeSource is an external table referenced by models but not built here.
	NodeSource NodeType = "source"
)

// Column is a declared output column of a Model.
type Column struct {
	Name        string
	DataType    string
	Description string
}

// Model is one node of the manifest: a transformed table or an external
// source. Immutable once loaded for a run.
type Model struct {
	// ID is the manifest node id, e.g. "model.analytics.customers".
	ID       string
	Name     string
	Database string
	Schema   string
	Type     NodeType

	// SQL is the compiled SELECT statement for model nodes; empty for sources.
	SQL string

	// Location is the physical storage path when the manifest provides one,
	// e.g. "s3://warehouse/analytics/customers".
	Location string

	// Columns are the declared output columns, in declaration order.
	Columns []Column

	// DependsOn lists the node ids of resolved upstream dependencies.
	DependsOn []string
}

// QualifiedName returns the database.schema.name identity of the model's
// table. Empty parts are skipped.
func (m *Model) QualifiedName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.Database, m.Schema, m.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// Column returns the declared column with the given name, if any. The lookup
// is case-insensitive to match SQL identifier semantics.
func (m *Model) Column(name string) (*Column, bool) {
	for i := range m.Columns {
		if strings.EqualFold(m.Columns[i].Name, name) {
			return &m.Columns[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether the model declares a column with the given name.
func (m *Model) HasColumn(name string) bool {
	_, ok := m.Column(name)
	return ok
}

// SourceColumn locates an upstream column: the qualified table it lives in
// plus the column name. Table may name a Model's table or an external source.
type SourceColumn struct {
	Table  string
	Column string
}

// ColumnEdge is one resolved column-level lineage edge. Uniqueness invariant:
// no two edges share the same (Source, TargetModel, TargetColumn) triple.
type ColumnEdge struct {
	Source       SourceColumn
	TargetModel  string // manifest node id
	TargetColumn string
	Transform    TransformType
}
