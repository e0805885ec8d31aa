package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mhpenta/yahoo-finance-mcp/safeunmarshal"
)

// StdioSessionID identifies the single session of the stream transport.
const StdioSessionID = "stdio"

// StdioTransport serves one session over newline-delimited JSON on a reader
// and writer pair, normally stdin and stdout.
type StdioTransport struct {
	server *Server
	logger *slog.Logger
	reader io.Reader
	writer io.Writer

	// maxLine bounds one frame; longer lines are answered with a parse
	// error and skipped.
	maxLine int

	writeMu sync.Mutex
	stopped bool
}

// NewStdioTransport creates a stdio transport (no auth needed for local process)
func NewStdioTransport(server *Server, logger *slog.Logger) *StdioTransport {
	return NewStdioTransportWithIO(server, logger, os.Stdin, os.Stdout)
}

// NewStdioTransportWithIO creates a stdio transport with custom reader/writer (for testing)
func NewStdioTransportWithIO(server *Server, logger *slog.Logger, reader io.Reader, writer io.Writer) *StdioTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioTransport{
		server:  server,
		logger:  logger.With("transport", "stdio"),
		reader:  reader,
		writer:  writer,
		maxLine: safeunmarshal.DefaultMaxInputSize,
	}
}

// rawLine is one frame read from the input, or a marker for a frame that was
// too long to keep.
type rawLine struct {
	data      []byte
	oversized bool
}

// Start reads frames until end of input, a read error or cancellation of
// ctx. Frames are handled concurrently and each response is written as one
// line. At end of input Start waits for in-flight requests; on cancellation
// it returns at once and late responses are dropped. The session is closed
// in every case. End of input returns nil.
func (t *StdioTransport) Start(ctx context.Context) error {
	t.logger.Info("starting MCP stdio transport")

	session := t.server.NewSession(StdioSessionID)
	defer session.Close()

	reader := bufio.NewReaderSize(t.reader, 64*1024)
	scanChan := make(chan rawLine)
	errChan := make(chan error, 1)

	go func() {
		defer close(scanChan)
		for {
			l, err := readLine(reader, t.maxLine)
			if err != nil {
				if err != io.EOF {
					errChan <- err
				}
				return
			}
			select {
			case scanChan <- l:
			case <-ctx.Done():
				return
			}
		}
	}()

	var inflight sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("stdio transport shutting down")
			t.stop()
			return nil

		case l, ok := <-scanChan:
			if !ok {
				inflight.Wait()
				select {
				case err := <-errChan:
					t.logger.Error("read error", "error", err)
					return err
				default:
					t.logger.Info("stdin closed, stdio transport stopping")
					return nil
				}
			}

			if l.oversized {
				t.logger.Warn("frame exceeds size limit, skipped", "limit", t.maxLine)
				t.write(parseErrorResponse(safeunmarshal.ErrInputTooLarge))
				continue
			}
			if len(bytes.TrimSpace(l.data)) == 0 {
				continue
			}

			inflight.Add(1)
			go func() {
				defer inflight.Done()
				t.handleLine(ctx, session, l.data)
			}()
		}
	}
}

// readLine returns the next newline-terminated frame. A frame longer than
// limit is consumed to its end and reported as oversized. io.EOF is returned
// only once no bytes remain.
func readLine(r *bufio.Reader, limit int) (rawLine, error) {
	var (
		buf       []byte
		oversized bool
		read      bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
			if !oversized {
				buf = append(buf, chunk...)
				if len(bytes.TrimRight(buf, "\r\n")) > limit {
					oversized, buf = true, nil
				}
			}
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && read:
			return rawLine{data: buf, oversized: oversized}, nil
		case err != nil:
			return rawLine{}, err
		}
		return rawLine{data: buf, oversized: oversized}, nil
	}
}

func (t *StdioTransport) handleLine(ctx context.Context, session *Session, line []byte) {
	msgs, batch, err := DecodeFrame(line)
	if err != nil {
		t.logger.Debug("malformed frame", "error", err)
		t.write(parseErrorResponse(err))
		return
	}

	if batch {
		responses, err := session.HandleAll(ctx, msgs)
		if err != nil {
			t.logger.Debug("batch on closed session dropped", "error", err)
			return
		}
		if len(responses) > 0 {
			t.write(responses)
		}
		return
	}

	resp, _ := session.HandleIncoming(ctx, msgs[0])
	if resp != nil {
		t.write(resp)
	}
}

func (t *StdioTransport) write(v any) {
	respBytes, err := json.Marshal(v)
	if err != nil {
		t.logger.Error("error marshaling response", "error", err)
		return
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.stopped {
		return
	}
	if _, err := t.writer.Write(append(respBytes, '\n')); err != nil {
		t.logger.Error("error writing response", "error", err)
	}
}

func (t *StdioTransport) stop() {
	t.writeMu.Lock()
	t.stopped = true
	t.writeMu.Unlock()
}
