package openlineage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lineforge/lineforge/internal/lineage"
	"github.com/lineforge/lineforge/internal/manifest"
	"github.com/lineforge/lineforge/pkg/core"
)

// Config identifies this producer and the namespace datasets live under.
type Config struct {
	// Producer is the producer id stamped on every event and facet.
	Producer string
	// RootNamespace is the dataset namespace for nodes without an explicit
	// storage location, e.g. "s3://warehouse-landing-zone".
	RootNamespace string
}

// Emitter builds one lineage event per model from resolved lineage.
type Emitter struct {
	cfg     Config
	byTable map[string]*core.Model // qualified table name -> node
}

// NewEmitter creates an emitter over the manifest's nodes.
func NewEmitter(cfg Config, m *manifest.Manifest) *Emitter {
	byTable := make(map[string]*core.Model, len(m.Models))
	for _, node := range m.Models {
		byTable[node.QualifiedName()] = node
	}
	return &Emitter{cfg: cfg, byTable: byTable}
}

// DatasetID computes the deterministic dataset identity of a node: the
// namespace is the physical storage root, the name the remaining path.
func (e *Emitter) DatasetID(node *core.Model) core.DatasetID {
	if node.Location != "" {
		return core.SplitLocation(node.Location, e.cfg.RootNamespace)
	}
	return core.DatasetID{Namespace: e.cfg.RootNamespace, Name: node.QualifiedName()}
}

// tableDatasetID resolves a qualified table name to a dataset identity,
// falling back to the root namespace for tables outside the manifest.
func (e *Emitter) tableDatasetID(table string) core.DatasetID {
	if node, ok := e.byTable[table]; ok {
		return e.DatasetID(node)
	}
	return core.DatasetID{Namespace: e.cfg.RootNamespace, Name: table}
}

// Emit serializes one model's lineage into an event. Re-running over
// unchanged input yields a byte-identical payload except for the run id and
// event time.
func (e *Emitter) Emit(ml *lineage.ModelLineage, runID string, eventTime time.Time) *Event {
	model := ml.Model
	outID := e.DatasetID(model)

	// Group consumed columns by source table.
	consumed := make(map[string]map[string]bool)
	for _, edge := range ml.Edges {
		cols := consumed[edge.Source.Table]
		if cols == nil {
			cols = make(map[string]bool)
			consumed[edge.Source.Table] = cols
		}
		cols[edge.Source.Column] = true
	}
	// Table-level-only upstreams stay in the inputs with an empty field
	// list: the linkage survives even when no column could be resolved.
	for _, table := range ml.TableOnly {
		if consumed[table] == nil {
			consumed[table] = make(map[string]bool)
		}
	}

	// Inputs: the deduplicated upstream datasets actually referenced by any
	// edge, sorted by name, each restricted to the fields consumed.
	tables := make([]string, 0, len(consumed))
	for table := range consumed {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	inputs := make([]Dataset, 0, len(tables))
	for _, table := range tables {
		id := e.tableDatasetID(table)

		cols := make([]string, 0, len(consumed[table]))
		for col := range consumed[table] {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		fields := make([]SchemaField, 0, len(cols))
		for _, col := range cols {
			f := SchemaField{Name: col}
			if node, ok := e.byTable[table]; ok {
				if decl, ok := node.Column(col); ok {
					f.Type = decl.DataType
					f.Description = decl.Description
				}
			}
			fields = append(fields, f)
		}

		inputs = append(inputs, Dataset{
			Namespace: id.Namespace,
			Name:      id.Name,
			Facets: DatasetFacets{
				Schema: e.schemaFacet(fields),
			},
		})
	}

	// Output schema facet: all declared columns, in declaration order.
	outFields := make([]SchemaField, 0, len(model.Columns))
	for _, col := range model.Columns {
		outFields = append(outFields, SchemaField{
			Name:        col.Name,
			Type:        col.DataType,
			Description: col.Description,
		})
	}

	colFacet := e.columnLineageFacet(ml)

	// The job carries the same facet under its own schema URL.
	var jobFacet *ColumnLineageFacet
	if colFacet != nil {
		jf := *colFacet
		jf.SchemaURL = columnLineageJobURL
		jobFacet = &jf
	}

	event := &Event{
		EventType: EventTypeComplete,
		EventTime: eventTime.UTC().Format(time.RFC3339),
		Run:       Run{RunID: runID},
		Job: Job{
			Namespace: e.cfg.RootNamespace,
			Name:      model.Name,
			Facets:    JobFacets{ColumnLineage: jobFacet},
		},
		Inputs: inputs,
		Outputs: []Dataset{{
			Namespace: outID.Namespace,
			Name:      outID.Name,
			Facets: DatasetFacets{
				Schema:        e.schemaFacet(outFields),
				ColumnLineage: colFacet,
			},
		}},
		Producer: e.cfg.Producer,
	}
	return event
}

func (e *Emitter) schemaFacet(fields []SchemaField) *SchemaFacet {
	return &SchemaFacet{
		Producer:  e.cfg.Producer,
		SchemaURL: schemaFacetURL,
		Fields:    fields,
	}
}

// columnLineageFacet maps each output field with known provenance to its
// contributing input fields. Columns with unknown provenance are omitted.
func (e *Emitter) columnLineageFacet(ml *lineage.ModelLineage) *ColumnLineageFacet {
	byColumn := make(map[string][]core.ColumnEdge)
	for _, edge := range ml.Edges {
		byColumn[edge.TargetColumn] = append(byColumn[edge.TargetColumn], edge)
	}
	if len(byColumn) == 0 {
		return nil
	}

	fields := make(map[string]ColumnLineageField, len(byColumn))
	for col, edges := range byColumn {
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Source.Table != edges[j].Source.Table {
				return edges[i].Source.Table < edges[j].Source.Table
			}
			return edges[i].Source.Column < edges[j].Source.Column
		})

		transform := core.TransformIdentity
		inputs := make([]InputField, 0, len(edges))
		descParts := make([]string, 0, len(edges))
		for _, edge := range edges {
			id := e.tableDatasetID(edge.Source.Table)
			inputs = append(inputs, InputField{
				Namespace: id.Namespace,
				Name:      id.Name,
				Field:     edge.Source.Column,
			})
			descParts = append(descParts, edge.Source.Table+"."+edge.Source.Column)
			transform = core.Stronger(transform, edge.Transform)
		}

		fields[col] = ColumnLineageField{
			InputFields:        inputs,
			TransformationType: string(transform),
			TransformationDescription: fmt.Sprintf("%s of %s",
				strings.ToLower(string(transform)), strings.Join(descParts, ", ")),
		}
	}

	return &ColumnLineageFacet{
		Producer:  e.cfg.Producer,
		SchemaURL: columnLineageDatasetURL,
		Fields:    fields,
	}
}
