package marquez

import (
	"sort"
	"strings"
)

// GraphSummary is a compacted view of a lineage graph: flat dataset and job
// lists plus dataset-to-dataset edges, with run noise stripped.
type GraphSummary struct {
	Datasets []SummaryDataset `json:"datasets"`
	Jobs     []SummaryJob     `json:"jobs"`
	Edges    []SummaryEdge    `json:"edges"`
}

// SummaryDataset is one dataset node with its field names.
type SummaryDataset struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Fields []string `json:"fields,omitempty"`
}

// SummaryJob is one job node with the datasets it reads and writes.
type SummaryJob struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	State   string   `json:"state,omitempty"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

// SummaryEdge connects a source dataset to a destination dataset through
// the job that produced the destination.
type SummaryEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Job  string `json:"job,omitempty"`
}

// Summarize collapses a raw lineage graph response into datasets, jobs, and
// dataset-level edges. Dataset-to-dataset edges are derived by joining each
// job's inputs against its outputs, so a graph with N inputs and M outputs
// through one job yields N*M edges.
func Summarize(resp *GraphResponse) *GraphSummary {
	sum := &GraphSummary{}
	if resp == nil {
		return sum
	}

	for i := range resp.Graph {
		node := &resp.Graph[i]
		switch strings.ToUpper(node.Type) {
		case "DATASET":
			ds := SummaryDataset{ID: node.ID, Name: node.Data.Name}
			for _, f := range node.Data.Fields {
				ds.Fields = append(ds.Fields, f.Name)
			}
			sum.Datasets = append(sum.Datasets, ds)
		case "JOB":
			job := SummaryJob{ID: node.ID, Name: node.Data.Name}
			if node.Data.LatestRun != nil {
				job.State = node.Data.LatestRun.State
			}
			for _, in := range node.Data.Inputs {
				job.Inputs = append(job.Inputs, in.Namespace+"::"+in.Name)
			}
			for _, out := range node.Data.Outputs {
				job.Outputs = append(job.Outputs, out.Namespace+"::"+out.Name)
			}
			sort.Strings(job.Inputs)
			sort.Strings(job.Outputs)
			sum.Jobs = append(sum.Jobs, job)
		}
	}

	seen := make(map[string]struct{})
	for _, job := range sum.Jobs {
		for _, in := range job.Inputs {
			for _, out := range job.Outputs {
				key := in + "\x00" + out
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				sum.Edges = append(sum.Edges, SummaryEdge{From: in, To: out, Job: job.Name})
			}
		}
	}

	sort.Slice(sum.Datasets, func(i, j int) bool { return sum.Datasets[i].ID < sum.Datasets[j].ID })
	sort.Slice(sum.Jobs, func(i, j int) bool { return sum.Jobs[i].ID < sum.Jobs[j].ID })
	sort.Slice(sum.Edges, func(i, j int) bool {
		if sum.Edges[i].From != sum.Edges[j].From {
			return sum.Edges[i].From < sum.Edges[j].From
		}
		return sum.Edges[i].To < sum.Edges[j].To
	})
	return sum
}
