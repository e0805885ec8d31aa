// Command yahoo-finance-mcp serves Yahoo Finance market data as MCP tools over
// stdio or HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhpenta/yahoo-finance-mcp/finance/yahoo"
	"github.com/mhpenta/yahoo-finance-mcp/internal/config"
	"github.com/mhpenta/yahoo-finance-mcp/mcp"
	"github.com/mhpenta/yahoo-finance-mcp/tools"
)

const (
	serviceName    = "yahoo-finance-mcp"
	serviceVersion = "0.2.0"
)

type options struct {
	stdio       bool
	port        int
	production  bool
	logLevel    string
	idleTimeout time.Duration
	upstream    time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Serve Yahoo Finance market data as MCP tools",
		Long:          "Serves stock quotes, historical prices, news and comparisons to MCP clients over the streamable HTTP transport (default) or stdio.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, opts, cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), opts.stdio, cfg)
		},
	}

	// stdout belongs to the protocol in stdio mode
	cmd.SetOut(os.Stderr)
	cmd.SetErr(os.Stderr)

	flags := cmd.Flags()
	flags.BoolVar(&opts.stdio, "stdio", false, "serve a single session over stdin/stdout instead of HTTP")
	flags.IntVarP(&opts.port, "port", "p", config.DefaultPort, "HTTP port (env PORT)")
	flags.BoolVar(&opts.production, "production", false, "production mode: bind all interfaces, JSON logs (env APP_ENV/NODE_ENV)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	flags.DurationVar(&opts.idleTimeout, "session-idle-timeout", config.DefaultSessionIdleTimeout, "close sessions idle this long, 0 disables (env SESSION_IDLE_TIMEOUT)")
	flags.DurationVar(&opts.upstream, "upstream-timeout", config.DefaultUpstreamTimeout, "Yahoo Finance request timeout (env UPSTREAM_TIMEOUT)")
	return cmd
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		level, err := config.ParseLevel(opts.logLevel)
		if err != nil {
			return err
		}
		cfg.SetLogLevel(level)
	}
	if flags.Changed("production") {
		cfg.SetProduction(opts.production)
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("session-idle-timeout") {
		cfg.SessionIdleTimeout = opts.idleTimeout
	}
	if flags.Changed("upstream-timeout") {
		cfg.UpstreamTimeout = opts.upstream
	}
	return cfg.Validate()
}

func run(ctx context.Context, out io.Writer, stdio bool, cfg *config.Config) error {
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	provider := yahoo.New(
		yahoo.WithTimeout(cfg.UpstreamTimeout),
		yahoo.WithLogger(logger),
	)
	registry, err := tools.NewRegistry(provider)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	server := mcp.NewServer(mcp.ServerConfig{
		Name:        serviceName,
		Version:     serviceVersion,
		Registry:    registry,
		Logger:      logger,
		IdleTimeout: cfg.SessionIdleTimeout,
	})

	if stdio {
		logger.Info("serving MCP over stdio")
		return mcp.NewStdioTransport(server, logger).Start(ctx)
	}

	if !cfg.Production {
		printClientConfig(out, cfg.Port)
	}
	return mcp.NewHTTPTransport(server, logger).Start(ctx, cfg.Addr())
}

// printClientConfig shows the snippet an MCP client needs to reach a local
// development server.
func printClientConfig(w io.Writer, port int) {
	snippet := map[string]any{
		"mcpServers": map[string]any{
			"yahoo-finance": map[string]string{
				"url": fmt.Sprintf("http://localhost:%d/mcp", port),
			},
		},
	}
	data, err := json.MarshalIndent(snippet, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(w, "Yahoo Finance MCP Server listening on http://localhost:%d\n", port)
	fmt.Fprintf(w, "Put this in your client config:\n%s\n", data)
	fmt.Fprintln(w, "For backward compatibility, you can also use the /sse endpoint.")
}
