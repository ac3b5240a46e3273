// Package mcp provides an MCP (Model Context Protocol) server that lets a
// coding agent ask nudge which process reminders apply to its current
// interaction.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/nudge/internal/analyzer"
	"github.com/nvandessel/nudge/internal/assembly"
	"github.com/nvandessel/nudge/internal/constants"
	"github.com/nvandessel/nudge/internal/library"
	"github.com/nvandessel/nudge/internal/logging"
	"github.com/nvandessel/nudge/internal/metrics"
	"github.com/nvandessel/nudge/internal/ratelimit"
	"github.com/nvandessel/nudge/internal/selector"
	"github.com/nvandessel/nudge/internal/session"
)

// Server wraps the MCP SDK server and provides nudge-specific functionality.
type Server struct {
	server   *sdk.Server
	holder   *library.Holder
	selector *selector.Selector
	sessions *session.Registry

	root        string
	environment string
	topK        int
	format      assembly.Format
	maxTokens   int

	logger       *slog.Logger
	decisions    *logging.DecisionLogger
	metrics      *metrics.Metrics
	toolLimiters ratelimit.ToolLimiters
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "nudge")
	Version string // Server version
	Root    string // Project root; absolute file paths under it are made relative

	Holder   *library.Holder    // publishes the current pack; required
	Selector *selector.Selector // required

	TopK        int             // reminders per injection; zero uses constants.DefaultTopK
	Environment string          // environment category; blank detects it
	Format      assembly.Format // rendering of injected text; blank is markdown
	MaxTokens   int             // token budget for injected text; zero is unlimited

	Logger    *slog.Logger            // nil discards
	Decisions *logging.DecisionLogger // nil disables the decision log
	Metrics   *metrics.Metrics        // nil disables metrics
	Limiters  ratelimit.ToolLimiters  // nil uses ratelimit.NewToolLimiters
}

// NewServer creates a new MCP server with the nudge tools and resources.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("mcp: nil config")
	}
	if cfg.Holder == nil || cfg.Holder.Current() == nil {
		return nil, errors.New("mcp: no constraint library loaded")
	}
	if cfg.Selector == nil {
		return nil, errors.New("mcp: nil selector")
	}

	format, err := assembly.ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, fmt.Errorf("mcp: %w", err)
	}

	s := &Server{
		holder:       cfg.Holder,
		selector:     cfg.Selector,
		sessions:     session.NewRegistry(),
		root:         cfg.Root,
		environment:  cfg.Environment,
		topK:         cfg.TopK,
		format:       format,
		maxTokens:    cfg.MaxTokens,
		logger:       cfg.Logger,
		decisions:    cfg.Decisions,
		metrics:      cfg.Metrics,
		toolLimiters: cfg.Limiters,
	}
	if s.topK <= 0 {
		s.topK = constants.DefaultTopK
	}
	if s.environment == "" {
		s.environment = analyzer.DetectEnvironment()
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.toolLimiters == nil {
		s.toolLimiters = ratelimit.NewToolLimiters()
	}
	s.logger = s.logger.With("component", "mcp")

	s.server = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			s.logger.Debug("client initialized")
		},
	})

	s.registerTools()
	s.registerResources()
	s.metrics.SetPackSize(cfg.Holder.Current().Len())

	return s, nil
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Connect serves a single client over t, for in-process use and tests.
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// Sessions returns the session registry.
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}
