// ABOUTME: POST-only HTTP transport for JSON-RPC: one request in, at most one response out
// ABOUTME: Validates the envelope, dispatches, and maps failures to JSON-RPC error bodies

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync/atomic"
)

// IncludeFSToolsParam is the query parameter that exposes file-system tools.
const IncludeFSToolsParam = "include_fs_tools"

// methodNotAllowedBody is sent verbatim for every non-POST request.
const methodNotAllowedBody = `{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not allowed. This endpoint only supports POST requests."},"id":null}`

// Call is one inbound message plus the per-request capability flag.
type Call struct {
	Message        *Message
	IncludeFSTools bool
}

// Dispatcher handles a validated message. It sends at most one response on
// reply; sending none means the HTTP response is 202 with no body.
type Dispatcher interface {
	Dispatch(ctx context.Context, call Call, reply *Reply) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, call Call, reply *Reply) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, call Call, reply *Reply) error {
	return f(ctx, call, reply)
}

// Transport serves JSON-RPC over HTTP POST. It starts stopped.
type Transport struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	running    atomic.Bool
}

// NewTransport creates a stopped transport.
func NewTransport(dispatcher Dispatcher, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		dispatcher: dispatcher,
		logger:     logger.With("component", "transport"),
	}
}

// Start begins accepting requests.
func (t *Transport) Start() {
	t.logger.Debug("starting HTTP transport (POST only)")
	t.running.Store(true)
}

// Stop rejects further requests with 503.
func (t *Transport) Stop() {
	t.logger.Debug("stopping HTTP transport")
	t.running.Store(false)
}

// Running reports whether the transport is started.
func (t *Transport) Running() bool {
	return t.running.Load()
}

// ServeHTTP implements http.Handler.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = io.WriteString(w, methodNotAllowedBody)
		return
	}

	if !t.Running() {
		t.writeMessage(w, http.StatusServiceUnavailable, NewError(nil, CodeInternalError, "transport is not running"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		t.writeMessage(w, http.StatusBadRequest, NewError(nil, CodeParseError, "Parse error"))
		return
	}
	if len(body) > MaxRequestBodySize {
		t.writeMessage(w, http.StatusBadRequest, NewError(nil, CodeInvalidRequest, "Request body too large"))
		return
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.logger.Debug("invalid JSON in request", "error", err)
		t.writeMessage(w, http.StatusBadRequest, NewError(nil, CodeParseError, "Parse error"))
		return
	}

	var msg Message
	if !validEnvelope(raw) || json.Unmarshal(body, &msg) != nil {
		t.writeMessage(w, http.StatusBadRequest, NewError(nil, CodeInvalidRequest, "Invalid Request"))
		return
	}

	call := Call{
		Message:        &msg,
		IncludeFSTools: r.URL.Query().Get(IncludeFSToolsParam) == "true",
	}
	reply := NewReply()

	if err := t.dispatch(r.Context(), call, reply); err != nil {
		t.logger.Error("error processing message", "method", msg.Method, "error", err)
		t.writeMessage(w, http.StatusInternalServerError, NewError(msg.ID, CodeInternalError, err.Error()))
		return
	}

	resp, ok := reply.Collect()
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	t.writeMessage(w, http.StatusOK, resp)
}

// dispatch runs the dispatcher, converting a panic into an error. The stack
// is logged and never returned.
func (t *Transport) dispatch(ctx context.Context, call Call, reply *Reply) (err error) {
	defer func() {
		if p := recover(); p != nil {
			t.logger.Error("panic while dispatching",
				"method", call.Message.Method,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%v", p)
		}
	}()
	return t.dispatcher.Dispatch(ctx, call, reply)
}

func (t *Transport) writeMessage(w http.ResponseWriter, status int, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		t.logger.Error("failed to encode JSON-RPC response", "error", err)
		status = http.StatusInternalServerError
		data, _ = json.Marshal(NewError(msg.ID, CodeInternalError, "Internal error"))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		t.logger.Warn("failed to write JSON-RPC response", "error", err)
	}
}

// validEnvelope checks the message is an object with jsonrpc "2.0" and at
// least one of method, result or error. A method must be a non-empty string
// and an error must be an object.
func validEnvelope(raw any) bool {
	obj, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	if v, _ := obj["jsonrpc"].(string); v != Version {
		return false
	}
	method, hasMethod := obj["method"]
	if hasMethod {
		if name, _ := method.(string); name == "" {
			return false
		}
	}
	errObj, hasError := obj["error"]
	if hasError {
		if _, ok := errObj.(map[string]any); !ok {
			return false
		}
	}
	_, hasResult := obj["result"]
	return hasMethod || hasResult || hasError
}
