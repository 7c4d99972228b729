package core

import (
	"strings"
	"time"
)

// DatasetID identifies a dataset in the lineage store: a namespace derived
// from the physical storage root plus the remaining path as the name.
type DatasetID struct {
	Namespace string
	Name      string
}

// Key returns the canonical "namespace::name" form used for grouping and
// deduplication.
func (d DatasetID) Key() string {
	return d.Namespace + "::" + d.Name
}

// Field is one column of a dataset as known to the lineage store.
type Field struct {
	Name        string
	Type        string
	Description string
}

// Dataset is a named, namespaced data resource with its current field list.
// The store holds the authoritative copy; upserts replace the field list in
// full rather than merging.
type Dataset struct {
	ID     DatasetID
	Fields []Field
}

// SplitLocation derives a DatasetID from a physical storage location.
// The namespace is the storage root (scheme plus bucket or host), the name is
// the remaining path. A location without a scheme becomes a name under the
// given fallback namespace.
func SplitLocation(location, fallback string) DatasetID {
	scheme, rest, ok := strings.Cut(location, "://")
	if !ok {
		return DatasetID{Namespace: fallback, Name: location}
	}
	root, path, ok := strings.Cut(rest, "/")
	if !ok || path == "" {
		return DatasetID{Namespace: scheme + "://" + root, Name: root}
	}
	return DatasetID{Namespace: scheme + "://" + root, Name: path}
}

// RunState is the terminal state of a job run in the lineage store.
type RunState string

const (
	RunCompleted RunState = "COMPLETED"
	RunFailed    RunState = "FAILED"
	RunAborted   RunState = "ABORTED"
)

// Job is one historical job record in the lineage store. Jobs are append-only:
// the engine creates and deletes them but never mutates an existing record.
type Job struct {
	Namespace string
	Name      string
	Inputs    []DatasetID
	Outputs   []DatasetID
	RunID     string
	State     RunState
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

// Key returns the "namespace::name" identity of the job.
func (j Job) Key() string {
	return j.Namespace + "::" + j.Name
}

// RankTime returns the timestamp used to order job records newest-first:
// completion time when present, otherwise start time, otherwise creation time.
func (j Job) RankTime() time.Time {
	if !j.EndedAt.IsZero() {
		return j.EndedAt
	}
	if !j.StartedAt.IsZero() {
		return j.StartedAt
	}
	return j.CreatedAt
}

// JobRun is one run record of a job in the lineage store.
type JobRun struct {
	ID        string
	State     RunState
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

// RankTime orders run records newest-first by creation time, falling back to
// start time for stores that omit createdAt.
func (r JobRun) RankTime() time.Time {
	if !r.CreatedAt.IsZero() {
		return r.CreatedAt
	}
	return r.StartedAt
}
