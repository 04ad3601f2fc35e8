// ABOUTME: Informational page and /config endpoint served under the gateway prefix
// ABOUTME: The page body is Markdown rendered once with goldmark into an html/template layout

package gateway

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
)

//go:embed pages/home.md pages/layout.html
var pageFS embed.FS

// ProjectInfo is served by GET /config.
type ProjectInfo struct {
	ProjectName     string         `json:"project_name"`
	FrameworkType   string         `json:"framework_type"`
	TidewaveVersion string         `json:"tidewave_version"`
	Team            map[string]any `json:"team"`
}

type homePage struct {
	layout *template.Template
	body   template.HTML
}

type homeData struct {
	Body          template.HTML
	ProjectName   string
	FrameworkType string
	Endpoint      string
	Version       string
}

func loadHomePage() (*homePage, error) {
	md, err := pageFS.ReadFile("pages/home.md")
	if err != nil {
		return nil, fmt.Errorf("reading home page: %w", err)
	}

	var body bytes.Buffer
	if err := goldmark.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("rendering home page: %w", err)
	}

	layout, err := template.ParseFS(pageFS, "pages/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page layout: %w", err)
	}

	// Markdown source is embedded, not user input.
	return &homePage{layout: layout, body: template.HTML(body.String())}, nil
}

func (g *Gateway) handleHome(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	data := homeData{
		Body:          g.home.body,
		ProjectName:   g.info.ProjectName,
		FrameworkType: g.info.FrameworkType,
		Endpoint:      fmt.Sprintf("%s://%s%s/mcp", scheme, r.Host, g.prefix),
		Version:       g.info.TidewaveVersion,
	}

	var buf bytes.Buffer
	if err := g.home.layout.Execute(&buf, data); err != nil {
		g.logger.Error("failed to render home page", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (g *Gateway) handleConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(g.info); err != nil {
		g.logger.Warn("failed to encode config response", "error", err)
	}
}
