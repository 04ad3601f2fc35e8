// Package mcp serves the Model Context Protocol over stateless HTTP POST.
//
// # Transport
//
// Transport is an http.Handler that accepts exactly one JSON-RPC 2.0 message
// per POST and writes at most one message back:
//
//   - non-POST requests get 405 with a JSON-RPC -32601 body and Allow: POST
//   - unparsable bodies get 400 with -32700
//   - bodies that are not JSON-RPC 2.0 messages get 400 with -32600
//   - dispatch failures and panics get 500 with -32603
//   - notifications and inbound responses get 202 with an empty body
//
// The transport starts stopped and answers 503 until Start is called.
//
// # Dispatch
//
// A Dispatcher receives each message together with a Reply, a single-slot
// future that it fulfils at most once. Server is the MCP dispatcher:
//
//	{"jsonrpc": "2.0", "method": "tools/call", "id": 2,
//	 "params": {"name": "project_eval", "arguments": {"code": "1 + 1"}}}
//
// The query parameter include_fs_tools=true exposes the file-system tools for
// that request only. Tool failures are returned as results with isError set;
// unknown tools and invalid arguments are JSON-RPC -32602 errors.
//
// # Usage
//
//	server, err := mcp.NewServer(catalog, version, logger)
//	transport := mcp.NewTransport(server, logger)
//	transport.Start()
//	mux.Handle("/mcp", transport)
package mcp
