package core

import (
	"fmt"
	"strings"
)

// ManifestError reports a fatal problem with the input manifest: malformed
// structure, missing required fields, or an unresolvable reference. The run
// aborts before any network call when one is raised.
type ManifestError struct {
	Path string // manifest file path, when known
	Node string // offending node id, when known
	Msg  string
	Err  error
}

func (e *ManifestError) Error() string {
	var b strings.Builder
	b.WriteString("manifest")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Node != "" {
		fmt.Fprintf(&b, " node %s", e.Node)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ManifestError) Unwrap() error { return e.Err }

// UnresolvedSourceError reports that a column's inferred source could not be
// bound to any declared upstream of the consuming model. Non-fatal: the
// column degrades to table-level lineage and the run continues.
type UnresolvedSourceError struct {
	Model  string // consuming model node id
	Column string // target column
	Source string // unresolved source column name
}

func (e *UnresolvedSourceError) Error() string {
	return fmt.Sprintf("column %s.%s: source %q not found in any declared upstream",
		e.Model, e.Column, e.Source)
}
