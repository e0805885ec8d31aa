package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/mhpenta/yahoo-finance-mcp/safeunmarshal"
	"github.com/mhpenta/yahoo-finance-mcp/tools"
)

// maxBatchConcurrency bounds how many elements of one batch run at once.
const maxBatchConcurrency = 8

// ErrSessionClosed is returned for work submitted to a closed session.
var ErrSessionClosed = errors.New("session closed")

// State is the lifecycle phase of a session.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one logical conversation with a client. The first request binds
// a dispatcher; after Close every request is rejected with SessionNotFound.
type Session struct {
	id        string
	createdAt time.Time
	server    *Server
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	dispatcher *tools.Dispatcher
	onClose    []func(*Session)
	idle       *time.Timer
}

// NewSession creates a session in the Uninitialized state.
func (s *Server) NewSession(id string) *Session {
	sess := &Session{
		id:        id,
		createdAt: time.Now(),
		server:    s,
		logger:    s.logger.With("session", id),
	}
	if s.idleTimeout > 0 {
		sess.idle = time.AfterFunc(s.idleTimeout, func() {
			sess.logger.Info("closing idle session", "idle_timeout", s.idleTimeout)
			sess.Close()
		})
	}
	return sess
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnClose registers fn to run once when the session closes. On an already
// closed session fn runs immediately.
func (s *Session) OnClose(fn func(*Session)) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.onClose = append(s.onClose, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn(s)
}

// Close moves the session to Closed and runs the close callbacks. It is safe
// to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.dispatcher = nil
	if s.idle != nil {
		s.idle.Stop()
	}
	callbacks := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	s.logger.Debug("session closed", "age", time.Since(s.createdAt).Round(time.Millisecond))
	for _, fn := range callbacks {
		fn(s)
	}
}

// acquire returns the dispatcher for one request, activating the session on
// first use.
func (s *Session) acquire() (*tools.Dispatcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return nil, ErrSessionClosed
	case StateUninitialized:
		s.dispatcher = tools.NewDispatcher(s.server.registry, s.logger)
		s.state = StateActive
		s.logger.Debug("session active")
	}
	if s.idle != nil {
		s.idle.Reset(s.server.idleTimeout)
	}
	return s.dispatcher, nil
}

// Handle processes one request. It returns nil for notifications. On a
// closed session the response is a SessionNotFound rejection and the error
// is ErrSessionClosed.
func (s *Session) Handle(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error) {
	d, err := s.acquire()
	if err != nil {
		return newErrorResponse(req.ID, tools.NewSessionNotFoundError(s.id)), err
	}

	if req.IsNotification() {
		s.logger.Debug("received notification", "method", req.Method)
		return nil, nil
	}

	result, te := s.route(ctx, d, req)
	if te != nil {
		return newErrorResponse(req.ID, te), nil
	}
	return newResult(req.ID, result), nil
}

func (s *Session) route(ctx context.Context, d *tools.Dispatcher, req *JSONRPCRequest) (any, *tools.Error) {
	switch req.Method {
	case MethodInitialize:
		var params initializeParams
		if len(req.Params) > 0 {
			p, err := safeunmarshal.To[initializeParams](req.Params)
			if err != nil {
				return nil, tools.NewInvalidArgumentError("", "invalid initialize parameters: %v", err)
			}
			params = p
		}
		s.logger.Info("MCP client connected",
			"client", params.ClientInfo.Name,
			"version", params.ClientInfo.Version,
			"protocol_version", params.ProtocolVersion)
		return s.server.initializeResult(params.ProtocolVersion), nil

	case MethodPing:
		return struct{}{}, nil

	case MethodToolsList:
		return &sdk.ListToolsResult{Tools: d.Registry().SDKTools()}, nil

	case MethodToolsCall:
		params, te := req.callParams()
		if te != nil {
			return nil, te
		}
		// A client that goes away mid-call does not cancel the upstream
		// request; the result is simply never delivered.
		result, err := d.Invoke(context.WithoutCancel(ctx), params.Name, params.Arguments)
		if err != nil {
			if te, ok := tools.AsError(err); ok {
				return nil, te
			}
			return nil, tools.NewUpstreamError(err)
		}
		return result, nil
	}

	return nil, tools.NewUnknownOperationError(req.Method)
}

// HandleIncoming answers one decoded frame element, including elements that
// failed to decode.
func (s *Session) HandleIncoming(ctx context.Context, m Incoming) (*JSONRPCResponse, error) {
	if m.Err != nil {
		var id []byte
		if m.Request != nil {
			id = m.Request.ID
		}
		return newErrorResponse(id, m.Err), nil
	}
	return s.Handle(ctx, m.Request)
}

// HandleAll processes a batch concurrently and returns the responses in
// input order, leaving out notifications.
func (s *Session) HandleAll(ctx context.Context, msgs []Incoming) ([]*JSONRPCResponse, error) {
	if s.State() == StateClosed {
		return nil, ErrSessionClosed
	}

	responses := make([]*JSONRPCResponse, len(msgs))
	var g errgroup.Group
	g.SetLimit(maxBatchConcurrency)
	for i, m := range msgs {
		g.Go(func() error {
			resp, _ := s.HandleIncoming(ctx, m)
			responses[i] = resp
			return nil
		})
	}
	_ = g.Wait()

	out := responses[:0]
	for _, r := range responses {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Stream processes msgs concurrently and hands every response to emit as
// soon as it is ready. emit may be called from several goroutines at once.
func (s *Session) Stream(ctx context.Context, msgs []Incoming, emit func(*JSONRPCResponse)) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}

	var g errgroup.Group
	g.SetLimit(maxBatchConcurrency)
	for _, m := range msgs {
		g.Go(func() error {
			if resp, _ := s.HandleIncoming(ctx, m); resp != nil {
				emit(resp)
			}
			return nil
		})
	}
	return g.Wait()
}
