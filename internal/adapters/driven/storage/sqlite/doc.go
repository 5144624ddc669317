// Package sqlite stores document metadata and query history in a single
// SQLite file (default ~/.docrag/data/metadata.db) through the pure Go
// modernc.org/sqlite driver.
//
// The database runs in WAL mode, so reads never block. Writers go through
// a one-slot semaphore taken with the caller's context: a cancelled
// request stops waiting instead of spinning on SQLITE_BUSY.
package sqlite
