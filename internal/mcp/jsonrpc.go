// ABOUTME: JSON-RPC 2.0 message envelope shared by the transport and the dispatcher
// ABOUTME: One Message type covers requests, notifications, and responses

package mcp

import (
	"bytes"
	"encoding/json"
)

// Version is the only JSON-RPC version accepted.
const Version = "2.0"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Message is a JSON-RPC 2.0 message. It is a request when Method is set, and
// a notification when it is a request without an ID. It is a response when
// Result or Error is set.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	// ID is kept raw so string and number IDs round-trip unchanged. A nil ID
	// encodes as null.
	ID json.RawMessage `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// IsRequest reports whether m carries a method.
func (m *Message) IsRequest() bool {
	return m.Method != ""
}

// IsNotification reports whether m is a request that expects no reply.
func (m *Message) IsNotification() bool {
	return m.IsRequest() && !hasID(m.ID)
}

// NewResult builds a success response to the request with id.
func NewResult(id json.RawMessage, result any) *Message {
	return &Message{JSONRPC: Version, ID: id, Result: result}
}

// NewError builds an error response to the request with id.
func NewError(id json.RawMessage, code int, message string) *Message {
	return &Message{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}

func hasID(id json.RawMessage) bool {
	id = bytes.TrimSpace(id)
	return len(id) > 0 && !bytes.Equal(id, []byte("null"))
}
