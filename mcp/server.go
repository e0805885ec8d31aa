package mcp

import (
	"log/slog"
	"slices"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mhpenta/yahoo-finance-mcp/tools"
)

// Protocol versions the server speaks, newest first.
var supportedProtocolVersions = []string{"2025-06-18", "2025-03-26", "2024-11-05"}

// Server holds what every session shares: identity, the tool registry and
// session settings.
type Server struct {
	name        string
	version     string
	registry    *tools.Registry
	idleTimeout time.Duration
	logger      *slog.Logger
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Name     string
	Version  string
	Registry *tools.Registry
	Logger   *slog.Logger

	// IdleTimeout closes sessions that receive no request for this long.
	// Zero disables it.
	IdleTimeout time.Duration
}

// NewServer creates a new MCP server over the provided registry
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	server := &Server{
		name:        cfg.Name,
		version:     cfg.Version,
		registry:    cfg.Registry,
		idleTimeout: cfg.IdleTimeout,
		logger:      cfg.Logger,
	}

	server.logger.Info("initialized MCP server",
		"name", cfg.Name,
		"version", cfg.Version,
		"tool_count", len(cfg.Registry.List()),
		"idle_timeout", cfg.IdleTimeout)

	return server
}

// Name returns the server name
func (s *Server) Name() string {
	return s.name
}

// Version returns the server version
func (s *Server) Version() string {
	return s.version
}

func (s *Server) initializeResult(requested string) *sdk.InitializeResult {
	return &sdk.InitializeResult{
		ProtocolVersion: negotiateProtocolVersion(requested),
		Capabilities: &sdk.ServerCapabilities{
			Tools: &sdk.ToolCapabilities{},
		},
		ServerInfo: &sdk.Implementation{
			Name:    s.name,
			Version: s.version,
		},
	}
}

// negotiateProtocolVersion echoes the client's version when supported and
// otherwise offers the newest one.
func negotiateProtocolVersion(requested string) string {
	if slices.Contains(supportedProtocolVersions, requested) {
		return requested
	}
	return supportedProtocolVersions[0]
}
