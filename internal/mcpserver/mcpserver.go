package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gaps-closure/vscle/internal/cache"
	"github.com/gaps-closure/vscle/internal/highlight"
	"github.com/gaps-closure/vscle/internal/resolver"
	"github.com/gaps-closure/vscle/internal/scanner"
	"github.com/gaps-closure/vscle/internal/session"
	"github.com/gaps-closure/vscle/internal/workspace"
	"github.com/gaps-closure/vscle/pkg/source"
)

// Server wraps the MCP server and registers the CLE label tools.
type Server struct {
	server    *mcp.Server
	state     *workspace.State
	scanner   *scanner.Scanner
	resolver  *resolver.Resolver
	projector *highlight.Projector
	session   *session.Coordinator
	cache     *cache.Cache
	// docs holds documents opened by the client; lookups and highlights
	// read them in place of the files on disk.
	docs   *source.OverlaySource
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCache lets the highlight tools reuse parsed function lists.
func WithCache(c *cache.Cache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// WithLogger sets the logger. MCP owns stdout, so it must not write there.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new MCP server with all vscle tools registered.
func NewServer(version string, state *workspace.State, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "vscle",
			Version: version,
		},
		nil,
	)

	s := &Server{
		server: server,
		state:  state,
		docs:   source.NewOverlay(source.NewFilesystem()),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg := state.Config()
	s.scanner = scanner.NewScanner(cfg, scanner.WithLogger(s.logger))
	s.resolver = resolver.New(cfg, resolver.WithLogger(s.logger), resolver.WithSource(s.docs))
	projOpts := []highlight.Option{highlight.WithLogger(s.logger), highlight.WithSource(s.docs)}
	if s.cache != nil {
		projOpts = append(projOpts, highlight.WithCache(s.cache))
	}
	s.projector = highlight.New(cfg, projOpts...)
	s.session = session.New(cfg, session.WithLogger(s.logger))

	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools adds the label tools to the server.
func (s *Server) registerTools() {
	// Conflict analysis
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze",
		Description: describeAnalyze(),
	}, s.handleAnalyze)

	// Topology projection
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "highlight",
		Description: describeHighlight(),
	}, s.handleHighlight)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lens",
		Description: describeLens(),
	}, s.handleLens)

	// Label navigation
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "definition",
		Description: describeDefinition(),
	}, s.handleDefinition)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "references",
		Description: describeReferences(),
	}, s.handleReferences)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rename",
		Description: describeRename(),
	}, s.handleRename)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "hover",
		Description: describeHover(),
	}, s.handleHover)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "labels",
		Description: describeLabels(),
	}, s.handleLabels)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "wrap",
		Description: describeWrap(),
	}, s.handleWrap)

	// Open documents
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "open_document",
		Description: describeOpenDocument(),
	}, s.handleOpenDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "close_document",
		Description: describeCloseDocument(),
	}, s.handleCloseDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "source_set",
		Description: describeSourceSet(),
	}, s.handleSourceSet)
}
