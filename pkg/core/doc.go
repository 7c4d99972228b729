// Package core holds the shared domain types for lineforge: manifest models,
// column lineage edges, dataset and job identities, and the error kinds the
// engine distinguishes.
//
// The Golden Rule: pkg/core imports ONLY the standard library. Every other
// package may depend on core; core depends on nothing of ours.
package core
