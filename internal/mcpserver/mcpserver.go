package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/panbanda/refmine/pkg/config"
	"github.com/panbanda/refmine/pkg/engine"
)

// Server wraps the MCP server and registers the refmine tools.
type Server struct {
	server *mcp.Server
	cfg    *config.Config
	logger *logrus.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the configuration used to build engines.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger handed to engines.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server with all tools and prompts registered.
func NewServer(version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "refmine",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetLevel(logrus.WarnLevel)
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// engine builds an engine from the server configuration. Caching stays off
// so every call reflects the repository as it is now.
func (s *Server) engine(opts ...engine.Option) *engine.Engine {
	all := append(engine.ConfigOptions(s.cfg), engine.WithLogger(s.logger))
	return engine.New(append(all, opts...)...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "commit_metrics",
		Description: describeCommitMetrics(),
	}, s.handleCommitMetrics)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "history_summary",
		Description: describeHistorySummary(),
	}, s.handleHistorySummary)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "temporal_coupling",
		Description: describeTemporalCoupling(),
	}, s.handleTemporalCoupling)
}
