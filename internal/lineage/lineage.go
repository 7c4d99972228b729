package lineage

import (
	"log/slog"
	"strings"

	"github.com/lineforge/lineforge/internal/dag"
	"github.com/lineforge/lineforge/internal/inference"
	"github.com/lineforge/lineforge/internal/manifest"
	"github.com/lineforge/lineforge/pkg/core"
)

// ModelLineage is the resolved column lineage of one model.
type ModelLineage struct {
	Model *core.Model
	// Edges are the resolved column edges, unique per
	// (source, target model, target column).
	Edges []core.ColumnEdge
	// Unresolved lists columns degraded to table-level lineage because a
	// discovered source name was not declared by any upstream.
	Unresolved []*core.UnresolvedSourceError
	// TableOnly lists upstream tables retained at table level: a manifest
	// edge names them but no column could be resolved against them, so they
	// appear as event inputs without a column-lineage entry.
	TableOnly []string
}

// Graph is the complete cross-table lineage graph for one run.
type Graph struct {
	// Models maps model node id to its resolved lineage, model nodes only.
	Models map[string]*ModelLineage
	// Deps is the table-level dependency graph over all manifest nodes.
	Deps *dag.Graph
}

// Model finds a resolved model by node id or bare model name.
func (g *Graph) Model(name string) *ModelLineage {
	if ml, ok := g.Models[name]; ok {
		return ml
	}
	for _, ml := range g.Models {
		if ml.Model.Name == name {
			return ml
		}
	}
	return nil
}

// Builder resolves column lineage for every model in a manifest.
type Builder struct {
	manifest *manifest.Manifest
	analyzer *inference.Analyzer
	logger   *slog.Logger
}

// NewBuilder creates a builder over the given manifest.
func NewBuilder(m *manifest.Manifest, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		manifest: m,
		analyzer: inference.NewAnalyzer(logger),
		logger:   logger,
	}
}

// Build resolves the full graph. The table-level dependency list must be
// complete before any column can be disambiguated, so this runs strictly
// after manifest loading and never concurrently.
func (b *Builder) Build() (*Graph, error) {
	deps, err := dag.FromManifest(b.manifest.Models)
	if err != nil {
		return nil, &core.ManifestError{Path: b.manifest.Path, Msg: "invalid dependency graph", Err: err}
	}

	g := &Graph{
		Models: make(map[string]*ModelLineage),
		Deps:   deps,
	}
	for _, id := range b.manifest.ModelIDs() {
		model, _ := b.manifest.Node(id)
		g.Models[id] = b.buildModel(model)
	}
	return g, nil
}

// BuildModel resolves column lineage for a single model by name.
func (b *Builder) BuildModel(name string) (*ModelLineage, bool) {
	for _, id := range b.manifest.ModelIDs() {
		model, _ := b.manifest.Node(id)
		if model.Name == name || id == name {
			return b.buildModel(model), true
		}
	}
	return nil, false
}

func (b *Builder) buildModel(model *core.Model) *ModelLineage {
	ml := &ModelLineage{Model: model}
	upstreams := b.manifest.Upstreams(model)

	// edgeSet enforces the uniqueness invariant.
	edgeSet := make(map[string]bool)
	addEdge := func(e core.ColumnEdge) {
		key := e.Source.Table + "\x00" + e.Source.Column + "\x00" + e.TargetColumn
		if !edgeSet[key] {
			edgeSet[key] = true
			ml.Edges = append(ml.Edges, e)
		}
	}

	// covered tracks target columns that received at least one edge.
	covered := make(map[string]bool)
	tableOnly := make(map[string]bool)

	// Explicit edges from the manifest come first; inference fills the gaps.
	for _, e := range b.manifest.Edges {
		if e.Target != model.ID || e.TargetColumn == "" {
			continue
		}
		src, ok := b.manifest.Node(e.Source)
		if !ok {
			continue
		}

		sourceColumn := e.SourceColumn
		transform := core.TransformIdentity
		if res, ok := b.analyzer.AnalyzeColumn(model, e.TargetColumn); ok {
			transform = res.Transform
		}

		// A wildcard source column means the producer could not name it;
		// fall back to inference against this specific upstream.
		if sourceColumn == "*" {
			inferred, ok := b.inferAgainst(model, e.TargetColumn, src)
			if !ok {
				// The upstream stays linked at table level and the run
				// summary carries the warning.
				ml.Unresolved = append(ml.Unresolved, &core.UnresolvedSourceError{
					Model:  model.ID,
					Column: e.TargetColumn,
					Source: src.QualifiedName() + ".*",
				})
				if !tableOnly[src.QualifiedName()] {
					tableOnly[src.QualifiedName()] = true
					ml.TableOnly = append(ml.TableOnly, src.QualifiedName())
				}
				b.logger.Warn("degrading wildcard edge to table-level lineage",
					slog.String("model", model.ID),
					slog.String("column", e.TargetColumn),
					slog.String("source", src.QualifiedName()))
				continue
			}
			sourceColumn = inferred
		}

		addEdge(core.ColumnEdge{
			Source:       core.SourceColumn{Table: src.QualifiedName(), Column: sourceColumn},
			TargetModel:  model.ID,
			TargetColumn: e.TargetColumn,
			Transform:    transform,
		})
		covered[lower(e.TargetColumn)] = true
	}

	for _, col := range model.Columns {
		if covered[lower(col.Name)] {
			continue
		}

		res, ok := b.analyzer.AnalyzeColumn(model, col.Name)
		if !ok {
			// Same-name fallback: an upstream declaring an identically named
			// column yields an identity edge. A documented approximation, not
			// a guaranteed-correct inference.
			matched := false
			for _, up := range upstreams {
				if up.HasColumn(col.Name) {
					addEdge(core.ColumnEdge{
						Source:       core.SourceColumn{Table: up.QualifiedName(), Column: col.Name},
						TargetModel:  model.ID,
						TargetColumn: col.Name,
						Transform:    core.TransformIdentity,
					})
					matched = true
				}
			}
			if !matched {
				// Unknown provenance: excluded from the edge set, not an error.
				b.logger.Debug("column provenance unknown",
					slog.String("model", model.ID),
					slog.String("column", col.Name))
			}
			continue
		}

		for _, dep := range res.Columns {
			candidates := eligibleUpstreams(upstreams, dep)
			if len(candidates) == 0 {
				unresolved := &core.UnresolvedSourceError{
					Model:  model.ID,
					Column: col.Name,
					Source: dep,
				}
				ml.Unresolved = append(ml.Unresolved, unresolved)
				b.logger.Warn("degrading to table-level lineage",
					slog.String("model", model.ID),
					slog.String("column", col.Name),
					slog.String("source", dep))
				continue
			}
			// One candidate binds directly; several bind to all of them
			// rather than guessing.
			for _, up := range candidates {
				addEdge(core.ColumnEdge{
					Source:       core.SourceColumn{Table: up.QualifiedName(), Column: dep},
					TargetModel:  model.ID,
					TargetColumn: col.Name,
					Transform:    res.Transform,
				})
			}
		}
	}

	return ml
}

// inferAgainst infers the single source column of target within one specific
// upstream, used for wildcard manifest edges.
func (b *Builder) inferAgainst(model *core.Model, target string, up *core.Model) (string, bool) {
	res, ok := b.analyzer.AnalyzeColumn(model, target)
	if ok {
		for _, dep := range res.Columns {
			if up.HasColumn(dep) {
				return dep, true
			}
		}
	}
	// Same-name fallback against this upstream only.
	if up.HasColumn(target) {
		return target, true
	}
	return "", false
}

// eligibleUpstreams returns the declared upstreams that declare the given
// column. Only nodes in the model's own dependency list are candidates.
func eligibleUpstreams(upstreams []*core.Model, column string) []*core.Model {
	var out []*core.Model
	for _, up := range upstreams {
		if up.HasColumn(column) {
			out = append(out, up)
		}
	}
	return out
}

func lower(s string) string { return strings.ToLower(s) }
