package mcp

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/mhpenta/yahoo-finance-mcp/safeunmarshal"
	"github.com/mhpenta/yahoo-finance-mcp/tools"
)

// JSON-RPC 2.0 message structures
// See: https://www.jsonrpc.org/specification

// JSONRPCRequest represents a JSON-RPC 2.0 request. Besides the standard
// fields it accepts the compact call form, where the tool name and its
// arguments sit at the top level:
//
//	{"method":"tools/call","tool":"get_quote","args":{"ticker":"aapl"}}
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // string, number, null or absent
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`

	Tool string          `json:"tool,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *JSONRPCRequest) IsNotification() bool {
	return strings.HasPrefix(r.Method, notificationPrefix)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response. A nil ID is written
// as null.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object
type RPCError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData classifies an error for clients.
type ErrorData struct {
	Kind  tools.Kind `json:"kind"`
	Field string     `json:"field,omitempty"`
}

const jsonrpcVersion = "2.0"

// MCP method names
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"

	notificationPrefix = "notifications/"
)

// toolsCallParams are the parameters of tools/call.
type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// initializeParams are the parts of the initialize request the server reads.
type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

// Incoming is one element of a decoded frame: either a request or the
// reason it could not be turned into one.
type Incoming struct {
	Request *JSONRPCRequest
	Err     *tools.Error
}

// DecodeFrame decodes a frame holding a single request or a batch. The
// returned error is a parse error for the frame as a whole; problems with
// individual elements are reported through Incoming.Err.
func DecodeFrame(data []byte) (msgs []Incoming, batch bool, err error) {
	raw, err := safeunmarshal.To[json.RawMessage](data)
	if err != nil {
		return nil, false, tools.NewParseError(err)
	}

	if safeunmarshal.IsJSONArray(raw) {
		elems, err := safeunmarshal.To[[]json.RawMessage](raw)
		if err != nil {
			return nil, true, tools.NewParseError(err)
		}
		if len(elems) == 0 {
			return []Incoming{{Err: tools.NewInvalidRequestError("empty batch")}}, false, nil
		}
		msgs = make([]Incoming, len(elems))
		for i, elem := range elems {
			msgs[i] = decodeRequest(elem)
		}
		return msgs, true, nil
	}

	return []Incoming{decodeRequest(raw)}, false, nil
}

func decodeRequest(data json.RawMessage) Incoming {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return Incoming{Err: tools.NewInvalidRequestError("request must be a JSON object")}
	}
	req, err := safeunmarshal.To[JSONRPCRequest](data)
	if err != nil {
		return Incoming{Err: tools.NewInvalidRequestError("invalid request object")}
	}
	return validateRequest(&req)
}

func validateRequest(req *JSONRPCRequest) Incoming {
	if req.JSONRPC != "" && req.JSONRPC != jsonrpcVersion {
		return Incoming{Request: req, Err: tools.NewInvalidRequestError("invalid JSON-RPC version")}
	}
	if req.Method == "" && req.Tool != "" {
		req.Method = MethodToolsCall
	}
	if req.Method == "" {
		return Incoming{Request: req, Err: tools.NewInvalidRequestError("missing method")}
	}
	return Incoming{Request: req}
}

// callParams extracts the tool name and arguments from either call form.
// Numbers are decoded as json.Number so integer arguments keep their exact
// value.
func (r *JSONRPCRequest) callParams() (toolsCallParams, *tools.Error) {
	var p toolsCallParams
	if len(r.Params) > 0 && !bytes.Equal(bytes.TrimSpace(r.Params), []byte("null")) {
		decoded, err := safeunmarshal.ToWithOptions[toolsCallParams](r.Params, numberOptions)
		if err != nil {
			return p, tools.NewInvalidArgumentError("", "invalid tools/call parameters: %v", err)
		}
		p = decoded
	}
	if r.Tool != "" {
		p.Name = r.Tool
	}
	if len(r.Args) > 0 && !bytes.Equal(bytes.TrimSpace(r.Args), []byte("null")) {
		args, err := safeunmarshal.ToWithOptions[map[string]any](r.Args, numberOptions)
		if err != nil {
			return p, tools.NewInvalidArgumentError("", "invalid tool arguments: %v", err)
		}
		p.Arguments = args
	}
	if p.Name == "" {
		return p, tools.NewInvalidArgumentError("name", "tools/call requires a tool name")
	}
	return p, nil
}

var numberOptions = func() safeunmarshal.UnmarshalOptions {
	opts := safeunmarshal.DefaultOptions()
	opts.UseNumber = true
	return opts
}()

func newResult(id json.RawMessage, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}

func newErrorResponse(id json.RawMessage, te *tools.Error) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Error: &RPCError{
			Code:    te.Code,
			Message: te.Message,
			Data:    &ErrorData{Kind: te.Kind, Field: te.Field},
		},
	}
}

// parseErrorResponse answers a frame that could not be decoded at all.
func parseErrorResponse(err error) *JSONRPCResponse {
	te, ok := tools.AsError(err)
	if !ok {
		te = tools.NewParseError(err)
	}
	return newErrorResponse(nil, te)
}
