// ABOUTME: AccessGateway that mounts the tidewave surface under a path prefix in front of the app
// ABOUTME: Checks client access, routes with chi, and passes everything else to the upstream app

package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389/tidewave-gateway/internal/config"
)

// Options configures a Gateway.
type Options struct {
	Gateway config.GatewayConfig
	Info    ProjectInfo

	// Transport receives /mcp and every other unrouted path under the prefix.
	Transport http.Handler

	// Downstream serves requests outside the prefix. When nil, UpstreamURL is
	// reverse proxied, and with no UpstreamURL those requests get 404.
	Downstream  http.Handler
	UpstreamURL string

	Logger *slog.Logger
}

// Gateway is the http.Handler for the whole process.
type Gateway struct {
	prefix     string
	access     *accessPolicy
	router     http.Handler
	downstream http.Handler
	info       ProjectInfo
	home       *homePage
	logger     *slog.Logger
}

// New builds a gateway. The path prefix is normalised to a leading slash and
// no trailing slash.
func New(opts Options) (*Gateway, error) {
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefix := "/" + strings.Trim(opts.Gateway.PathPrefix, "/")
	if prefix == "/" {
		prefix = config.DefaultPathPrefix
	}

	access, err := newAccessPolicy(opts.Gateway)
	if err != nil {
		return nil, err
	}

	home, err := loadHomePage()
	if err != nil {
		return nil, err
	}

	info := opts.Info
	if info.Team == nil {
		info.Team = map[string]any{}
	}

	g := &Gateway{
		prefix: prefix,
		access: access,
		info:   info,
		home:   home,
		logger: logger.With("component", "gateway"),
	}

	g.downstream = opts.Downstream
	if g.downstream == nil {
		g.downstream, err = g.newDownstream(opts.UpstreamURL)
		if err != nil {
			return nil, err
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Get("/", g.handleHome)
	r.Get("/config", g.handleConfig)
	r.Handle("/mcp", opts.Transport)
	r.NotFound(opts.Transport.ServeHTTP)
	r.MethodNotAllowed(opts.Transport.ServeHTTP)
	g.router = http.StripPrefix(prefix, r)

	g.logger.Info("gateway mounted",
		"path_prefix", prefix,
		"allow_remote_access", opts.Gateway.AllowRemoteAccess,
		"allowed_ips", len(access.allowed),
		"upstream", opts.UpstreamURL,
	)

	return g, nil
}

// Prefix returns the normalised mount prefix.
func (g *Gateway) Prefix() string {
	return g.prefix
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fw := allowFraming(w)
	w = fw

	if !g.inScope(r.URL.Path) {
		g.serveDownstream(w, r)
		return
	}

	if reason := g.access.check(r); reason != "" {
		g.logger.Warn("rejected request",
			"remote_addr", r.RemoteAddr,
			"origin", r.Header.Get("Origin"),
			"path", r.URL.Path,
		)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(reason))
		return
	}

	g.router.ServeHTTP(w, r)
	fw.finish()
}

// inScope reports whether path is the prefix itself or below it. Matching is
// case-sensitive and per path segment.
func (g *Gateway) inScope(path string) bool {
	return path == g.prefix || strings.HasPrefix(path, g.prefix+"/")
}

// serveDownstream passes the request through and logs it. Requests under the
// prefix are never logged here.
func (g *Gateway) serveDownstream(w http.ResponseWriter, r *http.Request) {
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	start := time.Now()

	g.downstream.ServeHTTP(ww, r)
	if ww.Status() == 0 {
		ww.WriteHeader(http.StatusOK)
	}

	g.logger.Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", ww.Status(),
		"bytes", ww.BytesWritten(),
		"duration", time.Since(start),
	)
}

func (g *Gateway) newDownstream(upstream string) (http.Handler, error) {
	if upstream == "" {
		return http.NotFoundHandler(), nil
	}

	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream url: %w", err)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			g.logger.Error("upstream request failed", "path", r.URL.Path, "error", err)
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}, nil
}
