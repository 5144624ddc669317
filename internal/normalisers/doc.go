// Package normalisers turns files on disk into page-structured text.
//
// Each subpackage parses one format and implements driven.Parser. The
// Registry in this package dispatches on file extension and is what the
// indexer is given.
package normalisers
