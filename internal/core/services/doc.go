// Package services implements the driving port interfaces.
// Services hold the retrieval, answering and indexing logic and
// orchestrate calls to driven ports (adapters).
//
// Services are pure Go with no CGO.
package services
