package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// streamQueryParam names the legacy event stream a POST is addressed to.
const streamQueryParam = "sessionId"

var errStreamClosed = errors.New("event stream closed")

// eventStream is the push side of a legacy GET /sse connection. Writes are
// serialized and refused once the GET handler has returned.
type eventStream struct {
	session *Session
	logger  *slog.Logger

	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func (s *eventStream) send(event, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if err := writeEvent(s.w, event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) keepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) emit(resp *JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("error marshaling response", "error", err)
		return
	}
	if err := s.send("message", string(data)); err != nil {
		s.logger.Debug("event stream write failed", "error", err)
	}
}

func (s *eventStream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// handleSSE serves the legacy event-stream route. Sessions opened here are
// anonymous: they never enter the session table and close with the stream.
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		t.serveEventStream(w, r)
	case http.MethodPost:
		if id := r.URL.Query().Get(streamQueryParam); id != "" {
			t.postToEventStream(w, r, id)
			return
		}
		t.serveEventPost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// serveEventStream opens a session, announces the endpoint that reaches it
// and pushes its responses until the client disconnects or the server shuts
// down. Idle periods carry keepalive comments.
func (t *HTTPTransport) serveEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	session := t.server.NewSession(NewSessionID())
	stream := &eventStream{
		session: session,
		logger:  t.logger.With("session", session.ID()),
		w:       w,
		flusher: flusher,
	}

	t.streamsMu.Lock()
	t.streams[session.ID()] = stream
	t.streamsMu.Unlock()
	defer func() {
		t.streamsMu.Lock()
		delete(t.streams, session.ID())
		t.streamsMu.Unlock()
		stream.close()
		session.Close()
	}()

	startEventStream(w)
	endpoint := "/sse?" + url.Values{streamQueryParam: {session.ID()}}.Encode()
	if err := stream.send("endpoint", endpoint); err != nil {
		return
	}
	stream.logger.Debug("event stream opened")

	ticker := time.NewTicker(t.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			stream.logger.Debug("event stream closed")
			return
		case <-ticker.C:
			if err := stream.keepAlive(); err != nil {
				return
			}
		}
	}
}

// postToEventStream accepts a frame for an open event stream. Responses are
// delivered on the stream, not in the POST response.
func (t *HTTPTransport) postToEventStream(w http.ResponseWriter, r *http.Request, id string) {
	t.streamsMu.Lock()
	stream, ok := t.streams[id]
	t.streamsMu.Unlock()
	if !ok {
		t.sessionNotFound(w, id)
		return
	}

	msgs, _, ok := t.readFrame(w, r)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := stream.session.Stream(ctx, msgs, stream.emit); err != nil {
			stream.logger.Debug("frame for closed event stream dropped", "error", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

// serveEventPost handles a POST without a stream id: the frame runs in a
// fresh session and every response is pushed as a message event on the POST
// response itself as soon as it completes.
func (t *HTTPTransport) serveEventPost(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	msgs, _, ok := t.readFrame(w, r)
	if !ok {
		return
	}

	session := t.server.NewSession(NewSessionID())
	defer session.Close()

	startEventStream(w)
	flusher.Flush()

	stream := &eventStream{
		session: session,
		logger:  t.logger.With("session", session.ID()),
		w:       w,
		flusher: flusher,
	}
	defer stream.close()

	if err := session.Stream(r.Context(), msgs, stream.emit); err != nil {
		stream.logger.Error("event stream processing failed", "error", err)
	}
}

func startEventStream(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeEvent(w http.ResponseWriter, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
