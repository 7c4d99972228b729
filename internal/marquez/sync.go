package marquez

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lineforge/lineforge/internal/lineage"
	"github.com/lineforge/lineforge/internal/manifest"
	"github.com/lineforge/lineforge/internal/openlineage"
	"github.com/lineforge/lineforge/pkg/core"
)

// SyncConfig controls a synchronization pass.
type SyncConfig struct {
	// Namespace is the job namespace events are reported under.
	Namespace string
	// Owner is recorded when the namespace has to be created.
	Owner string
	// SourceName identifies the data source datasets are registered under.
	SourceName string
	// SourceType is the source's type, e.g. "POSTGRESQL".
	SourceType string
	// SourceConnectionURL is recorded when the source has to be created.
	SourceConnectionURL string
	// RunID, when set, overrides the generated run id for every model.
	// Mainly useful for reproducible test fixtures.
	RunID string
	// Concurrency bounds the number of models synchronized in parallel.
	// Values below 1 mean sequential.
	Concurrency int
	// DryRun skips all writes and collects the events that would be sent.
	DryRun bool
}

// ModelResult records the outcome of synchronizing one model.
type ModelResult struct {
	Model    string             `json:"model"`
	Dataset  string             `json:"dataset"`
	RunID    string             `json:"runId"`
	Edges    int                `json:"edges"`
	Event    *openlineage.Event `json:"event,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Err      error              `json:"-"`
}

// Summary aggregates a synchronization pass. Results are ordered by model
// name regardless of completion order.
type Summary struct {
	Results  []ModelResult
	Synced   int
	Failed   int
	Warnings int
	DryRun   bool
}

// Synchronizer pushes a lineage graph into the store as OpenLineage events.
type Synchronizer struct {
	client  *Client
	emitter *openlineage.Emitter
	cfg     SyncConfig
	logger  *slog.Logger
}

// NewSynchronizer builds a synchronizer. The client may be nil for dry runs.
func NewSynchronizer(client *Client, emitterCfg openlineage.Config, m *manifest.Manifest, cfg SyncConfig, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Synchronizer{
		client:  client,
		emitter: openlineage.NewEmitter(emitterCfg, m),
		cfg:     cfg,
		logger:  logger,
	}
}

// SyncAll synchronizes every model in the lineage graph. Models are
// submitted dependencies-first, so with sequential concurrency an upstream
// is always registered before the models that consume it. They are pushed
// concurrently up to the configured bound; a failing model never blocks the
// others, and the summary reports each outcome.
func (s *Synchronizer) SyncAll(ctx context.Context, graph *lineage.Graph) (*Summary, error) {
	names := syncOrder(graph)

	var (
		mu      sync.Mutex
		results = make([]ModelResult, 0, len(names))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, name := range names {
		ml := graph.Models[name]
		g.Go(func() error {
			res := s.syncModel(gctx, ml)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Model < results[j].Model })
	return s.summarize(results), nil
}

// syncOrder lists the graph's model node ids dependencies-first. Graphs
// without a dependency graph fall back to sorted ids.
func syncOrder(graph *lineage.Graph) []string {
	if graph.Deps != nil {
		if sorted, err := graph.Deps.TopologicalSort(); err == nil {
			ids := make([]string, 0, len(graph.Models))
			for _, node := range sorted {
				if _, ok := graph.Models[node.ID]; ok {
					ids = append(ids, node.ID)
				}
			}
			return ids
		}
	}
	ids := make([]string, 0, len(graph.Models))
	for id := range graph.Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SyncModel synchronizes a single model by name or node id.
func (s *Synchronizer) SyncModel(ctx context.Context, graph *lineage.Graph, name string) (*Summary, error) {
	ml := graph.Model(name)
	if ml == nil {
		return nil, fmt.Errorf("model %q not found in manifest", name)
	}
	res := s.syncModel(ctx, ml)
	return s.summarize([]ModelResult{res}), nil
}

func (s *Synchronizer) summarize(results []ModelResult) *Summary {
	sum := &Summary{Results: results, DryRun: s.cfg.DryRun}
	for _, r := range results {
		if r.Err != nil {
			sum.Failed++
			continue
		}
		sum.Synced++
		sum.Warnings += len(r.Warnings)
	}
	return sum
}

func (s *Synchronizer) syncModel(ctx context.Context, ml *lineage.ModelLineage) ModelResult {
	runID := s.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	event := s.emitter.Emit(ml, runID, time.Now())
	outID := s.emitter.DatasetID(ml.Model)

	res := ModelResult{
		Model:   ml.Model.Name,
		Dataset: outID.Key(),
		RunID:   runID,
		Edges:   len(ml.Edges),
	}
	for _, u := range ml.Unresolved {
		res.Warnings = append(res.Warnings, u.Error())
	}

	if s.cfg.DryRun {
		res.Event = event
		return res
	}

	if err := s.registerDatasets(ctx, ml, event, &res); err != nil {
		res.Err = err
		return res
	}

	if err := s.client.EmitEvent(ctx, event); err != nil {
		res.Err = err
		return res
	}
	s.logger.Info("model synchronized",
		slog.String("model", ml.Model.Name),
		slog.String("run_id", runID),
		slog.Int("edges", len(ml.Edges)))
	return res
}

// registerDatasets ensures namespaces, the source, and the datasets the
// event touches all exist before the event lands. Upstream registration
// failures degrade to warnings so one stale input cannot block the model.
func (s *Synchronizer) registerDatasets(ctx context.Context, ml *lineage.ModelLineage, event *openlineage.Event, res *ModelResult) error {
	namespaces := map[string]struct{}{s.cfg.Namespace: {}}
	for _, in := range event.Inputs {
		namespaces[in.Namespace] = struct{}{}
	}
	for _, out := range event.Outputs {
		namespaces[out.Namespace] = struct{}{}
	}
	for _, ns := range sortedKeys(namespaces) {
		if err := s.client.EnsureNamespace(ctx, ns, s.cfg.Owner, ""); err != nil {
			return err
		}
	}
	if err := s.client.EnsureSource(ctx, s.cfg.SourceName, s.cfg.SourceType, s.cfg.SourceConnectionURL, ""); err != nil {
		return err
	}

	for _, in := range event.Inputs {
		up := s.datasetUpsert(in)
		if len(up.Fields) == 0 {
			// Table-level-only input: an upsert with no fields would wipe
			// whatever schema the store already holds.
			continue
		}
		id := core.DatasetID{Namespace: in.Namespace, Name: in.Name}
		if err := s.client.UpsertDataset(ctx, id, up); err != nil {
			warn := fmt.Sprintf("upstream dataset %s not registered: %v", id.Key(), err)
			res.Warnings = append(res.Warnings, warn)
			s.logger.Warn("upstream dataset registration failed, emitting anyway",
				slog.String("model", ml.Model.Name),
				slog.String("dataset", id.Key()),
				slog.Any("error", err))
		}
	}

	for _, out := range event.Outputs {
		id := core.DatasetID{Namespace: out.Namespace, Name: out.Name}
		if err := s.client.UpsertDataset(ctx, id, s.datasetUpsert(out)); err != nil {
			return err
		}
	}
	return nil
}

// datasetUpsert converts an event dataset into the store's PUT payload.
// The field list replaces whatever the store holds, so re-running a sync
// converges on the manifest's declared schema.
func (s *Synchronizer) datasetUpsert(ds openlineage.Dataset) DatasetUpsert {
	up := DatasetUpsert{
		Type:         "DB_TABLE",
		PhysicalName: ds.Name,
		SourceName:   s.cfg.SourceName,
	}
	if ds.Facets.Schema != nil {
		for _, f := range ds.Facets.Schema.Fields {
			up.Fields = append(up.Fields, DatasetField{
				Name:        f.Name,
				Type:        f.Type,
				Description: f.Description,
			})
		}
	}
	return up
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
