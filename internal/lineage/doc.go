// Package lineage assembles per-column inference results and explicit
// manifest edges into one resolved, cross-table column lineage graph.
//
// Source column names discovered by inference are unqualified; the builder
// binds each one against the declared upstream dependency list of the
// consuming model. A name present in exactly one upstream binds to it, a name
// present in several binds to all of them (genuine fan-in), and a name
// present in none degrades that column to table-level lineage.
package lineage
