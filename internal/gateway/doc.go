// Package gateway mounts the tidewave surface in front of a host application.
//
// # Overview
//
// Gateway is an http.Handler for every request the process receives. Paths
// equal to the mount prefix (default /tidewave) or below it are in scope;
// matching is case-sensitive, so /TIDEWAVE passes through. Everything else is
// handed to the downstream application, usually a reverse proxy to
// server.upstream_url, and logged. In-scope requests are not logged.
//
// # Access
//
// In-scope requests are checked before routing. Loopback callers (127.0.0.0/8,
// ::1 and ::ffff:127.0.0.1) are always allowed. Other callers need
// allow_remote_access or a matching allowed_ips entry. When allowed_origins is
// set, a browser Origin header must be one of them. Rejected requests get a
// 403 with a plain-text explanation.
//
// # Routes
//
// Under the prefix:
//
//   - GET / - informational page
//   - GET /config - project metadata as JSON
//   - /mcp - the MCP transport
//   - anything else - the MCP transport
//
// # Framing
//
// Every response, in scope or not, has X-Frame-Options and the
// frame-ancestors CSP directive removed so the application can be embedded.
//
// # Lifecycle
//
// Server runs the gateway on an address, starts the transport, and on context
// cancellation stops it and shuts down with a 5 second grace period.
package gateway
