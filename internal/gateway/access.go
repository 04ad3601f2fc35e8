// ABOUTME: Client address and origin checks for requests under the gateway prefix
// ABOUTME: Loopback callers are always allowed; others need allow_remote_access or an allowed_ips entry

package gateway

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/2389/tidewave-gateway/internal/config"
)

const remoteAccessMessage = `For security reasons, Tidewave does not accept remote connections by default.

If you really want to allow remote connections, set "allow_remote_access: true" in the gateway section of your configuration.
`

const originMessage = `For security reasons, Tidewave only accepts browser requests from configured origins.

Add the origin to "allowed_origins" in the gateway section of your configuration.
`

// accessPolicy decides whether a request may reach the gateway routes.
type accessPolicy struct {
	allowRemote bool
	allowed     []netip.Prefix
	origins     map[string]struct{}
}

func newAccessPolicy(cfg config.GatewayConfig) (*accessPolicy, error) {
	p := &accessPolicy{
		allowRemote: cfg.AllowRemoteAccess,
		origins:     make(map[string]struct{}, len(cfg.AllowedOrigins)),
	}

	for _, entry := range cfg.AllowedIPs {
		prefix, err := parseAllowedIP(entry)
		if err != nil {
			return nil, err
		}
		p.allowed = append(p.allowed, prefix)
	}

	for _, origin := range cfg.AllowedOrigins {
		p.origins[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return p, nil
}

// parseAllowedIP accepts a single address or a CIDR block.
func parseAllowedIP(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid allowed_ips entry %q: %w", entry, err)
		}
		return prefix.Masked(), nil
	}

	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid allowed_ips entry %q: %w", entry, err)
	}
	addr = addr.Unmap().WithZone("")
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// check returns the plain-text reason for rejecting r, or "" when r is allowed.
func (p *accessPolicy) check(r *http.Request) string {
	if !p.allowRemote && !p.allowAddr(r.RemoteAddr) {
		return remoteAccessMessage
	}
	if !p.allowOrigin(r.Header.Get("Origin")) {
		return originMessage
	}
	return ""
}

func (p *accessPolicy) allowAddr(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	// ::ffff:127.0.0.1 is loopback too.
	addr = addr.Unmap().WithZone("")

	if addr.IsLoopback() {
		return true
	}
	for _, prefix := range p.allowed {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// allowOrigin passes requests without an Origin header, and every origin
// when none are configured.
func (p *accessPolicy) allowOrigin(origin string) bool {
	if origin == "" || len(p.origins) == 0 {
		return true
	}
	_, ok := p.origins[strings.TrimRight(origin, "/")]
	return ok
}
