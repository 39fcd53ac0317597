// Package types defines the shared domain model for the teamflow core:
// agents, capabilities, tasks, roles, teams, negotiations, shared contexts,
// the schema-less ordered document used for proposals and context content,
// and the structured error type used across all engines.
//
// The package is deliberately dependency-free so that every other package,
// including internal ones, can import it without cycles.
package types
