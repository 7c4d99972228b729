package lineage

import (
	"testing"

	"github.com/lineforge/lineforge/internal/manifest"
	"github.com/lineforge/lineforge/internal/testutil"
	"github.com/lineforge/lineforge/pkg/core"
)

func buildManifest(t *testing.T, nodes map[string]*core.Model, edges []manifest.Edge) *manifest.Manifest {
	t.Helper()
	return &manifest.Manifest{
		Path:   "test-manifest.json",
		Models: nodes,
		Edges:  edges,
	}
}

func sourceNode(id, name, schema string, cols ...string) *core.Model {
	m := &core.Model{ID: id, Name: name, Schema: schema, Type: core.NodeSource}
	for _, c := range cols {
		m.Columns = append(m.Columns, core.Column{Name: c})
	}
	return m
}

func findEdges(ml *ModelLineage, target string) []core.ColumnEdge {
	var out []core.ColumnEdge
	for _, e := range ml.Edges {
		if e.TargetColumn == target {
			out = append(out, e)
		}
	}
	return out
}

func TestBuildSimpleModel(t *testing.T) {
	m := buildManifest(t, map[string]*core.Model{
		"source.demo.raw_orders": sourceNode("source.demo.raw_orders", "raw_orders", "raw", "id", "amount", "status"),
		"model.demo.orders": {
			ID:     "model.demo.orders",
			Name:   "orders",
			Schema: "marts",
			Type:   core.NodeModel,
			SQL:    "select id as order_id, amount / 100 as amount, upper(status) as status from raw.raw_orders",
			Columns: []core.Column{
				{Name: "order_id"}, {Name: "amount"}, {Name: "status"},
			},
			DependsOn: []string{"source.demo.raw_orders"},
		},
	}, nil)

	g, err := NewBuilder(m, testutil.NewTestLogger(t)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ml := g.Model("orders")
	if ml == nil {
		t.Fatal("orders lineage missing")
	}
	if len(ml.Unresolved) != 0 {
		t.Errorf("unexpected unresolved sources: %v", ml.Unresolved)
	}

	tests := []struct {
		target    string
		source    string
		transform core.TransformType
	}{
		{"order_id", "id", core.TransformIdentity},
		{"amount", "amount", core.TransformArithmetic},
		{"status", "status", core.TransformFunction},
	}
	for _, tt := range tests {
		edges := findEdges(ml, tt.target)
		if len(edges) != 1 {
			t.Fatalf("%s: got %d edges, want 1", tt.target, len(edges))
		}
		e := edges[0]
		if e.Source.Column != tt.source || e.Source.Table != "raw.raw_orders" {
			t.Errorf("%s: source = %+v", tt.target, e.Source)
		}
		if e.Transform != tt.transform {
			t.Errorf("%s: transform = %s, want %s", tt.target, e.Transform, tt.transform)
		}
	}
}

func TestFanInBindsAllCandidates(t *testing.T) {
	// Both upstreams declare "id": the dependency binds to each rather than
	// guessing one of them.
	m := buildManifest(t, map[string]*core.Model{
		"source.demo.a": sourceNode("source.demo.a", "a", "raw", "id"),
		"source.demo.b": sourceNode("source.demo.b", "b", "raw", "id"),
		"model.demo.joined": {
			ID:        "model.demo.joined",
			Name:      "joined",
			Type:      core.NodeModel,
			SQL:       "select id as pk from raw.a join raw.b using (id)",
			Columns:   []core.Column{{Name: "pk"}},
			DependsOn: []string{"source.demo.a", "source.demo.b"},
		},
	}, nil)

	g, err := NewBuilder(m, testutil.NewTestLogger(t)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	edges := findEdges(g.Model("joined"), "pk")
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want one per candidate upstream", len(edges))
	}
	tables := map[string]bool{}
	for _, e := range edges {
		tables[e.Source.Table] = true
	}
	if !tables["raw.a"] || !tables["raw.b"] {
		t.Errorf("edges should bind both upstreams, got %v", tables)
	}
}

func TestUnresolvedSourceDegrades(t *testing.T) {
	// The inferred dependency "ghost" is declared by no upstream: the column
	// degrades to table-level lineage and is reported, not fatal.
	m := buildManifest(t, map[string]*core.Model{
		"source.demo.a": sourceNode("source.demo.a", "a", "raw", "id"),
		"model.demo.orders": {
			ID:        "model.demo.orders",
			Name:      "orders",
			Type:      core.NodeModel,
			SQL:       "select upper(ghost) as label from raw.a",
			Columns:   []core.Column{{Name: "label"}},
			DependsOn: []string{"source.demo.a"},
		},
	}, nil)

	g, err := NewBuilder(m, testutil.NewTestLogger(t)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ml := g.Model("orders")
	if len(findEdges(ml, "label")) != 0 {
		t.Error("unresolvable dependency should produce no column edge")
	}
	if len(ml.Unresolved) != 1 {
		t.Fatalf("got %d unresolved, want 1", len(ml.Unresolved))
	}
	u := ml.Unresolved[0]
	if u.Column != "label" || u.Source != "ghost" {
		t.Errorf("unresolved = %+v", u)
	}
}

func TestSameNameFallback(t *testing.T) {
	// created_at never appears in the select list the analyzer can attribute,
	// but an upstream declares the same name: identity lineage is assumed.
	m := buildManifest(t, map[string]*core.Model{
		"source.demo.a": sourceNode("source.demo.a", "a", "raw", "id", "created_at"),
		"model.demo.orders": {
			ID:        "model.demo.orders",
			Name:      "orders",
			Type:      core.NodeModel,
			SQL:       "select * from raw.a",
			Columns:   []core.Column{{Name: "created_at"}},
			DependsOn: []string{"source.demo.a"},
		},
	}, nil)

	g, err := NewBuilder(m, testutil.NewTestLogger(t)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	edges := findEdges(g.Model("orders"), "created_at")
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	if edges[0].Transform != core.TransformIdentity {
		t.Errorf("fallback transform = %s, want IDENTITY", edges[0].Transform)
	}
}

func TestExplicitEdgesWin(t *testing.T) {
	m := buildManifest(t, map[string]*core.Model{
		"source.demo.a": sourceNode("source.demo.a", "a", "raw", "id", "legacy_id"),
		"model.demo.orders": {
			ID:        "model.demo.orders",
			Name:      "orders",
			Type:      core.NodeModel,
			SQL:       "select id as order_id from raw.a",
			Columns:   []core.Column{{Name: "order_id"}},
			DependsOn: []string{"source.demo.a"},
		},
	}, []manifest.Edge{
		{Source: "source.demo.a", Target: "model.demo.orders", SourceColumn: "legacy_id", TargetColumn: "order_id"},
	})

	g, err := NewBuilder(m, testutil.NewTestLogger(t)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	edges := findEdges(g.Model("orders"), "order_id")
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1 (explicit edge should cover the column)", len(edges))
	}
	if edges[0].Source.Column != "legacy_id" {
		t.Errorf("source column = %q, want the explicit legacy_id", edges[0].Source.Column)
	}
}

func TestWildcardEdgeResolvedByInference(t *testing.T) {
	m := buildManifest(t, map[string]*core.Model{
		"source.demo.a": sourceNode("source.demo.a", "a", "raw", "id"),
		"model.demo.orders": {
			ID:        "model.demo.orders",
			Name:      "orders",
			Type:      core.NodeModel,
			SQL:       "select id as order_id from raw.a",
			Columns:   []core.Column{{Name: "order_id"}},
			DependsOn: []string{"source.demo.a"},
		},
	}, []manifest.Edge{
		{Source: "source.demo.a", Target: "model.demo.orders", SourceColumn: "*", TargetColumn: "order_id"},
	})

	g, err := NewBuilder(m, testutil.NewTestLogger(t)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	edges := findEdges(g.Model("orders"), "order_id")
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	if edges[0].Source.Column != "id" {
		t.Errorf("wildcard resolved to %q, want id", edges[0].Source.Column)
	}
}

func TestWildcardEdgeDegradesToTableLevel(t *testing.T) {
	// The upstream declares no columns and the SQL offers nothing to infer
	// from: the wildcard edge cannot be narrowed to a column. The upstream
	// must survive at table level and the failure must be reported.
	m := buildManifest(t, map[string]*core.Model{
		"source.demo.a": sourceNode("source.demo.a", "a", "raw"),
		"model.demo.orders": {
			ID:        "model.demo.orders",
			Name:      "orders",
			Type:      core.NodeModel,
			SQL:       "select ghost as label from raw.a",
			DependsOn: []string{"source.demo.a"},
		},
	}, []manifest.Edge{
		{Source: "source.demo.a", Target: "model.demo.orders", SourceColumn: "*", TargetColumn: "label"},
	})

	g, err := NewBuilder(m, testutil.NewTestLogger(t)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ml := g.Model("orders")
	if len(ml.Edges) != 0 {
		t.Errorf("unresolvable wildcard should add no column edge, got %v", ml.Edges)
	}
	if len(ml.Unresolved) != 1 {
		t.Fatalf("got %d unresolved, want 1", len(ml.Unresolved))
	}
	u := ml.Unresolved[0]
	if u.Column != "label" || u.Source != "raw.a.*" {
		t.Errorf("unresolved = %+v", u)
	}
	if len(ml.TableOnly) != 1 || ml.TableOnly[0] != "raw.a" {
		t.Errorf("TableOnly = %v, want the degraded upstream", ml.TableOnly)
	}
}

func TestBuildRejectsCycle(t *testing.T) {
	m := buildManifest(t, map[string]*core.Model{
		"model.demo.a": {
			ID: "model.demo.a", Name: "a", Type: core.NodeModel,
			SQL: "select x from b", DependsOn: []string{"model.demo.b"},
		},
		"model.demo.b": {
			ID: "model.demo.b", Name: "b", Type: core.NodeModel,
			SQL: "select x from a", DependsOn: []string{"model.demo.a"},
		},
	}, nil)

	if _, err := NewBuilder(m, nil).Build(); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestEdgesAreDeduplicated(t *testing.T) {
	// The explicit edge and inference both discover id -> order_id; the edge
	// set must contain it once.
	m := buildManifest(t, map[string]*core.Model{
		"source.demo.a": sourceNode("source.demo.a", "a", "raw", "id"),
		"model.demo.orders": {
			ID:        "model.demo.orders",
			Name:      "orders",
			Type:      core.NodeModel,
			SQL:       "select id as order_id from raw.a",
			Columns:   []core.Column{{Name: "order_id"}},
			DependsOn: []string{"source.demo.a"},
		},
	}, []manifest.Edge{
		{Source: "source.demo.a", Target: "model.demo.orders", SourceColumn: "id", TargetColumn: "order_id"},
	})

	g, err := NewBuilder(m, nil).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if edges := findEdges(g.Model("orders"), "order_id"); len(edges) != 1 {
		t.Errorf("got %d edges, want 1 after deduplication", len(edges))
	}
}
