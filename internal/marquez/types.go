// Package marquez talks to a Marquez-compatible lineage store over its HTTP
// API: namespace/source/dataset upserts, lineage event submission, job
// queries, and deletions.
package marquez

import (
	"time"

	"github.com/lineforge/lineforge/pkg/core"
)

// DatasetUpsert is the PUT payload for a dataset. The field list replaces
// whatever the store currently holds; the store is authoritative for the
// current schema, so this is not an accumulating merge.
type DatasetUpsert struct {
	Type         string         `json:"type"`
	PhysicalName string         `json:"physicalName"`
	SourceName   string         `json:"sourceName"`
	Description  string         `json:"description,omitempty"`
	Fields       []DatasetField `json:"fields"`
}

// DatasetField is one field of a dataset upsert payload.
type DatasetField struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// namespaceUpsert is the PUT payload for a namespace.
type namespaceUpsert struct {
	OwnerName   string `json:"ownerName"`
	Description string `json:"description,omitempty"`
}

// sourceUpsert is the PUT payload for a data source.
type sourceUpsert struct {
	Type          string `json:"type"`
	ConnectionURL string `json:"connectionUrl"`
	Description   string `json:"description,omitempty"`
}

// datasetRef is a dataset pointer inside a job record.
type datasetRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// jobsResponse is the paged GET /jobs response.
type jobsResponse struct {
	TotalCount int         `json:"totalCount"`
	Jobs       []jobRecord `json:"jobs"`
}

// jobRecord is one job as returned by the store.
type jobRecord struct {
	Name      string       `json:"name"`
	Namespace string       `json:"namespace"`
	CreatedAt time.Time    `json:"createdAt"`
	Inputs    []datasetRef `json:"inputs"`
	Outputs   []datasetRef `json:"outputs"`
	LatestRun *struct {
		ID        string    `json:"id"`
		State     string    `json:"state"`
		StartedAt time.Time `json:"startedAt"`
		EndedAt   time.Time `json:"endedAt"`
	} `json:"latestRun"`
}

// toJob converts a store job record to the core model.
func (r jobRecord) toJob() core.Job {
	job := core.Job{
		Namespace: r.Namespace,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
	for _, in := range r.Inputs {
		job.Inputs = append(job.Inputs, core.DatasetID{Namespace: in.Namespace, Name: in.Name})
	}
	for _, out := range r.Outputs {
		job.Outputs = append(job.Outputs, core.DatasetID{Namespace: out.Namespace, Name: out.Name})
	}
	if r.LatestRun != nil {
		job.RunID = r.LatestRun.ID
		job.State = core.RunState(r.LatestRun.State)
		job.StartedAt = r.LatestRun.StartedAt
		job.EndedAt = r.LatestRun.EndedAt
	}
	return job
}

// runsResponse is the GET /jobs/{job}/runs response.
type runsResponse struct {
	Runs []runRecord `json:"runs"`
}

// runRecord is one run as returned by the store.
type runRecord struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

func (r runRecord) toRun() core.JobRun {
	return core.JobRun{
		ID:        r.ID,
		State:     core.RunState(r.State),
		CreatedAt: r.CreatedAt,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
}

// GraphNode is one node of a lineage-graph API response.
type GraphNode struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Name       string `json:"name"`
		SimpleName string `json:"simpleName"`
		Fields     []struct {
			Name string `json:"name"`
		} `json:"fields"`
		Inputs  []datasetRef `json:"inputs"`
		Outputs []datasetRef `json:"outputs"`
		LatestRun *struct {
			State string `json:"state"`
		} `json:"latestRun"`
	} `json:"data"`
	InEdges  []GraphEdge `json:"inEdges"`
	OutEdges []GraphEdge `json:"outEdges"`
}

// GraphEdge is a directed edge of the lineage graph.
type GraphEdge struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// GraphResponse is the GET /lineage response.
type GraphResponse struct {
	Graph []GraphNode `json:"graph"`
}
