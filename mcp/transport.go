package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mhpenta/yahoo-finance-mcp/safeunmarshal"
	"github.com/mhpenta/yahoo-finance-mcp/tools"
)

// SessionHeader carries the session id on the /mcp route.
const SessionHeader = "Mcp-Session-Id"

const (
	defaultKeepAlive = 15 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// HTTPTransport serves the session route (/mcp), the legacy event-stream
// route (/sse) and the health check (/health). Every other path is 404.
type HTTPTransport struct {
	server    *Server
	sessions  *SessionTable
	router    *http.ServeMux
	logger    *slog.Logger
	keepAlive time.Duration

	// Open legacy event streams by session id. They are reachable only
	// through /sse and never enter the session table.
	streamsMu sync.Mutex
	streams   map[string]*eventStream
}

// NewHTTPTransport creates a new HTTP transport for the MCP server
func NewHTTPTransport(server *Server, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}

	router := http.NewServeMux()
	transport := &HTTPTransport{
		server:    server,
		sessions:  NewSessionTable(),
		router:    router,
		logger:    logger.With("transport", "http"),
		keepAlive: defaultKeepAlive,
		streams:   make(map[string]*eventStream),
	}

	router.HandleFunc("/mcp", transport.handleMCP)
	router.HandleFunc("/sse", transport.handleSSE)
	router.HandleFunc("/health", transport.handleHealth)

	return transport
}

// WithKeepAlive sets the interval of keep-alive comments on event streams.
func (t *HTTPTransport) WithKeepAlive(d time.Duration) *HTTPTransport {
	t.keepAlive = d
	return t
}

// Sessions returns the table of live /mcp sessions.
func (t *HTTPTransport) Sessions() *SessionTable {
	return t.sessions
}

// handleMCP routes by session header: requests naming a session go to it,
// requests without one may only open a session with initialize.
func (t *HTTPTransport) handleMCP(w http.ResponseWriter, r *http.Request) {
	if id := r.Header.Get(SessionHeader); id != "" {
		session, ok := t.sessions.Lookup(id)
		if !ok {
			t.sessionNotFound(w, id)
			return
		}

		switch r.Method {
		case http.MethodPost:
			msgs, batch, ok := t.readFrame(w, r)
			if !ok {
				return
			}
			t.respond(w, r, session, msgs, batch)
		case http.MethodDelete:
			session.Close()
			t.logger.Info("session terminated by client", "session", id)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Allow", "POST, DELETE")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodPost {
		t.writeJSON(w, http.StatusBadRequest,
			newErrorResponse(nil, tools.NewInvalidRequestError("missing "+SessionHeader+" header")))
		return
	}

	msgs, batch, ok := t.readFrame(w, r)
	if !ok {
		return
	}
	if !containsInitialize(msgs) {
		t.writeJSON(w, http.StatusBadRequest,
			newErrorResponse(nil, tools.NewInvalidRequestError("missing "+SessionHeader+" header; send initialize to open a session")))
		return
	}

	session := t.server.NewSession(NewSessionID())
	if err := t.sessions.Register(session); err != nil {
		session.Close()
		t.logger.Error("failed to register session", "session", session.ID(), "error", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	t.logger.Info("session created", "session", session.ID(), "sessions", t.sessions.Len())

	w.Header().Set(SessionHeader, session.ID())
	t.respond(w, r, session, msgs, batch)
}

// readFrame reads and decodes the request body, answering the request itself
// when that fails.
func (t *HTTPTransport) readFrame(w http.ResponseWriter, r *http.Request) ([]Incoming, bool, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, safeunmarshal.DefaultMaxInputSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return nil, false, false
		}
		t.logger.Error("failed to read request body", "error", err)
		http.Error(w, fmt.Sprintf("failed to read request: %v", err), http.StatusBadRequest)
		return nil, false, false
	}

	msgs, batch, err := DecodeFrame(body)
	if err != nil {
		t.logger.Debug("malformed request body", "error", err)
		t.writeJSON(w, http.StatusBadRequest, parseErrorResponse(err))
		return nil, false, false
	}
	return msgs, batch, true
}

func (t *HTTPTransport) respond(w http.ResponseWriter, r *http.Request, session *Session, msgs []Incoming, batch bool) {
	ctx := r.Context()

	if batch {
		responses, err := session.HandleAll(ctx, msgs)
		if errors.Is(err, ErrSessionClosed) {
			t.sessionNotFound(w, session.ID())
			return
		}
		if len(responses) == 0 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		t.writeJSON(w, http.StatusOK, responses)
		return
	}

	resp, err := session.HandleIncoming(ctx, msgs[0])
	if errors.Is(err, ErrSessionClosed) {
		t.sessionNotFound(w, session.ID())
		return
	}
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	t.writeJSON(w, http.StatusOK, resp)
}

func (t *HTTPTransport) sessionNotFound(w http.ResponseWriter, id string) {
	t.logger.Debug("unknown session", "session", id)
	http.Error(w, "session not found", http.StatusNotFound)
}

func (t *HTTPTransport) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.logger.Debug("failed to write response", "error", err)
	}
}

func containsInitialize(msgs []Incoming) bool {
	for _, m := range msgs {
		if m.Err == nil && m.Request != nil && m.Request.Method == MethodInitialize {
			return true
		}
	}
	return false
}

// HealthStatus is the body of the health check.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
}

// handleHealth returns server health status
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	t.writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   t.server.Name(),
		Version:   t.server.Version(),
	})
}

// ServeHTTP implements http.Handler
func (t *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.router.ServeHTTP(w, r)
}

// Start listens on addr and serves until ctx is cancelled. A listen failure
// is returned immediately. On cancellation the server shuts down gracefully
// and every session is closed.
func (t *HTTPTransport) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return t.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (t *HTTPTransport) Serve(ctx context.Context, ln net.Listener) error {
	// Request contexts derive from baseCtx so open event streams end when
	// shutdown begins.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	server := &http.Server{
		Handler:           t,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelBase)

	serverErr := make(chan error, 1)
	go func() {
		t.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		t.sessions.CloseAll()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		t.logger.Info("shutting down MCP server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		t.sessions.CloseAll()
		if err != nil {
			t.logger.Error("error during server shutdown", "error", err)
			return fmt.Errorf("server shutdown error: %w", err)
		}

		t.logger.Info("MCP server stopped gracefully")
		return nil
	}
}
