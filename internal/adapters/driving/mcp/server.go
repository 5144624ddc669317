package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docrag/internal/logger"
)

// DefaultVersion is advertised when no version is given.
const DefaultVersion = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server exposes the question answering ports as MCP tools and resources.
type Server struct {
	ports  *Ports
	server *mcp.Server
	roots  []string
}

// Option configures a Server.
type Option func(*mcp.Implementation)

// WithVersion sets the version reported during the MCP handshake.
func WithVersion(v string) Option {
	return func(impl *mcp.Implementation) {
		if v != "" {
			impl.Version = v
		}
	}
}

// NewServer registers a tool or resource for every non-nil port. Answer is
// required.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	impl := &mcp.Implementation{Name: "docrag", Version: DefaultVersion}
	for _, opt := range opts {
		opt(impl)
	}

	s := &Server{ports: ports, server: mcp.NewServer(impl, nil), roots: resolveRoots(ports.IndexRoots)}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run speaks JSON-RPC on stdin/stdout until ctx ends or the client hangs up.
func (s *Server) Run(ctx context.Context) error {
	logger.Event("info", "mcp.start", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr. Cancelling ctx
// drains open requests for up to five seconds.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr: addr,
		Handler: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return s.server
		}, nil),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Event("info", "mcp.start", "transport", "http", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
