// Package domain holds the types shared by every layer: documents as stored
// (SourceDocument), parser output (ParsedDocument), retrievable passages
// (TextChunk), the caller's clearance (UserContext) and the answer envelope
// (GeneratedAnswer). It also owns the sentinel errors and access levels.
//
// domain imports only the standard library. Nothing in it performs I/O.
package domain
