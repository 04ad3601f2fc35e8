// ABOUTME: MCP method dispatcher for the tidewave tool catalog
// ABOUTME: Handles initialize, ping, tools/list and tools/call against the resolved tool set

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/tidewave-gateway/internal/tools"
)

// ServerName is reported in the initialize handshake.
const ServerName = "tidewave"

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
	"2025-11-25": true,
}

// LatestProtocolVersion is advertised when the client asks for an unknown version.
const LatestProtocolVersion = "2025-11-25"

// InitializeParams are the params of initialize that the server reads.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      map[string]any `json:"clientInfo,omitempty"`
}

// InitializeResult is the result of initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerCapabilities advertises what the server supports.
type ServerCapabilities struct {
	Tools ToolsCapability `json:"tools"`
}

// ToolsCapability describes tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ServerInfo identifies the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []tools.Descriptor `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the result for tools/call.
type CallToolResult struct {
	Content []Content      `json:"content"`
	IsError bool           `json:"isError,omitempty"`
	Meta    map[string]any `json:"_meta,omitempty"`
}

// Content represents content in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Server dispatches MCP methods. It holds no per-client state.
type Server struct {
	catalog *tools.Catalog
	version string
	logger  *slog.Logger
}

// NewServer creates a dispatcher over catalog. version is reported as the
// server version in initialize.
func NewServer(catalog *tools.Catalog, version string, logger *slog.Logger) (*Server, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		catalog: catalog,
		version: version,
		logger:  logger.With("component", "mcp"),
	}, nil
}

// Dispatch implements Dispatcher.
func (s *Server) Dispatch(ctx context.Context, call Call, reply *Reply) error {
	msg := call.Message

	// Responses to server-initiated requests are accepted and dropped.
	if !msg.IsRequest() {
		s.logger.Debug("ignoring inbound response", "id", string(msg.ID))
		return nil
	}

	if msg.IsNotification() {
		if strings.HasPrefix(msg.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", msg.Method)
		} else {
			s.logger.Warn("received notification for non-notification method", "method", msg.Method)
		}
		return nil
	}

	logger := s.logger.With("request_id", uuid.NewString(), "method", msg.Method)
	logger.Debug("MCP request", "include_fs_tools", call.IncludeFSTools)

	var resp *Message
	switch msg.Method {
	case "initialize":
		resp = s.handleInitialize(msg)
	case "ping":
		resp = NewResult(msg.ID, struct{}{})
	case "tools/list":
		resp = s.handleToolsList(msg, call.IncludeFSTools)
	case "tools/call":
		resp = s.handleToolsCall(ctx, logger, msg, call.IncludeFSTools)
	default:
		resp = NewError(msg.ID, CodeMethodNotFound, "Method not found")
	}

	return reply.Send(resp)
}

func (s *Server) handleInitialize(msg *Message) *Message {
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return NewError(msg.ID, CodeInvalidParams, "Invalid params")
		}
	}

	version := LatestProtocolVersion
	if supportedProtocolVersions[params.ProtocolVersion] {
		version = params.ProtocolVersion
	}

	s.logger.Info("MCP client initialized",
		"protocol_version", version,
		"client", params.ClientInfo["name"],
	)

	return NewResult(msg.ID, InitializeResult{
		ProtocolVersion: version,
		Capabilities:    ServerCapabilities{Tools: ToolsCapability{ListChanged: false}},
		ServerInfo:      ServerInfo{Name: ServerName, Version: s.version},
	})
}

func (s *Server) handleToolsList(msg *Message, includeFS bool) *Message {
	set := s.catalog.Resolve(includeFS)
	return NewResult(msg.ID, ListToolsResult{Tools: set.List()})
}

func (s *Server) handleToolsCall(ctx context.Context, logger *slog.Logger, msg *Message, includeFS bool) *Message {
	var params CallToolParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return NewError(msg.ID, CodeInvalidParams, "Invalid params")
		}
	}
	if params.Name == "" {
		return NewError(msg.ID, CodeInvalidParams, "Tool name is required")
	}

	logger = logger.With("tool_name", params.Name)
	logger.Debug("tools/call")

	result, err := s.catalog.Resolve(includeFS).Call(ctx, params.Name, params.Arguments)
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		return NewError(msg.ID, CodeInvalidParams, fmt.Sprintf("Tool not found: %s", params.Name))
	case errors.Is(err, tools.ErrInvalidArguments):
		logger.Debug("invalid tool arguments", "error", err)
		return NewError(msg.ID, CodeInvalidParams, err.Error())
	case err != nil:
		logger.Warn("tool execution failed", "error", err)
		return NewResult(msg.ID, CallToolResult{
			Content: []Content{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
	}

	logger.Debug("tools/call complete")
	return NewResult(msg.ID, CallToolResult{
		Content: []Content{{Type: "text", Text: result.Text}},
		Meta:    result.Meta,
	})
}
