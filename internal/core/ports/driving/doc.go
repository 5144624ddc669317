// Package driving holds the interfaces the CLI and the MCP server call into.
// internal/core/services implements all of them.
package driving
