package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/adapters/driving/mcp"
)

var (
	mcpAddr       string
	mcpIndexRoots []string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the question answering tools over MCP",
	Long: `Start a Model Context Protocol server exposing the ask, search, index and
feedback tools and the document resources.

By default the server speaks JSON-RPC over stdio, which is what desktop
assistants expect. Use --http to serve the streamable HTTP transport instead.

--index-root confines the index tool to files under the given directories.
Over HTTP the index tool is only offered when at least one root is set.

Examples:
  docrag mcp
  docrag mcp --http localhost:8080 --index-root /srv/handbooks

Assistant configuration:
  {
    "mcpServers": {
      "docrag": {
        "command": "/path/to/docrag",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpAddr, "http", "", "serve HTTP on this address instead of stdio")
	mcpCmd.Flags().StringSliceVar(&mcpIndexRoots, "index-root", nil, "directories the index tool may read from")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	if err := requireServices(); err != nil {
		return err
	}

	server, err := mcp.NewServer(mcpPorts(svc, mcpAddr != "", mcpIndexRoots), mcp.WithVersion(version))
	if err != nil {
		return err
	}

	if mcpAddr != "" {
		cmd.PrintErrf("MCP server listening on http://%s\n", mcpAddr)
		return server.RunHTTP(cmd.Context(), mcpAddr)
	}
	return server.Run(cmd.Context())
}

// mcpPorts maps the wired services onto MCP ports. A network listener with
// no index roots gets no index tool.
func mcpPorts(s *Services, remote bool, roots []string) *mcp.Ports {
	ports := &mcp.Ports{
		Answer:     s.Answer,
		Retrieval:  s.Retrieval,
		Documents:  s.Documents,
		History:    s.History,
		IndexRoots: roots,
	}
	if !remote || len(roots) > 0 {
		ports.Indexing = s.Indexing
	}
	return ports
}
