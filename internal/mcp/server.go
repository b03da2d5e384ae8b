// Package mcp exposes the letter engine and rewrite gateway as MCP tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/domain"
	"github.com/endo-report-server/internal/letter"
)

// Server is the endodontic report MCP server
type Server struct {
	mcpServer *mcp.Server
	rewriter  domain.NotesRewriter
	composer  *letter.Composer
	recorder  audit.Recorder
	logger    *logrus.Logger
}

// ServerOption is a functional option for Server
type ServerOption func(*Server)

// WithRecorder sets the audit recorder for render calls
func WithRecorder(r audit.Recorder) ServerOption {
	return func(s *Server) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP server instance with all tools registered
func NewServer(cfg *domain.Config, rewriter domain.NotesRewriter, opts ...ServerOption) *Server {
	name, version := cfg.MCP.ServerName, cfg.MCP.ServerVersion
	if name == "" {
		name = "endo-report"
	}
	if version == "" {
		version = "1.0.0"
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		rewriter:  rewriter,
		composer:  letter.NewComposer(cfg.Letterhead),
		recorder:  audit.NopStore{},
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Connect serves a single session over t
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}
