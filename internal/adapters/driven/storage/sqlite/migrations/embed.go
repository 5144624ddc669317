// Package migrations holds the SQLite schema as NNN_name.up.sql files,
// applied in version order. The .down.sql files are for manual rollback.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
