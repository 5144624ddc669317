// Package memory provides in-memory implementations of the storage ports.
//
// They back tests and the CLI's --memory mode, where nothing outlives the
// process. The vector index evaluates the same filter predicates as the
// Redis index, so permission filtering behaves identically.
package memory
