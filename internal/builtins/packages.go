// ABOUTME: Package index client used by package_search
// ABOUTME: Responses are cached by URL for the configured TTL

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/2389/tidewave-gateway/internal/cache"
	"github.com/2389/tidewave-gateway/internal/tools"
)

const maxPackageResponseSize = 4 << 20

// PackageIndex queries a package search endpoint that accepts query and page parameters.
type PackageIndex struct {
	searchURL string
	client    *http.Client
	cache     *cache.Cache[string]
}

// NewPackageIndex creates an index client. Close releases the cache.
func NewPackageIndex(searchURL string, ttl time.Duration) *PackageIndex {
	return &PackageIndex{
		searchURL: searchURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		cache:     cache.New[string](ttl, 256),
	}
}

// Search returns the raw response body for a query.
func (p *PackageIndex) Search(ctx context.Context, query string, page int) (string, error) {
	u, err := url.Parse(p.searchURL)
	if err != nil {
		return "", fmt.Errorf("parsing search url: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	key := u.String()
	if body, ok := p.cache.Get(key); ok {
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("searching packages: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPackageResponseSize))
	if err != nil {
		return "", fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("package search failed with status %d", resp.StatusCode)
	}

	body := string(data)
	p.cache.Set(key, body)
	return body, nil
}

// Close stops the cache's cleanup goroutine.
func (p *PackageIndex) Close() {
	p.cache.Close()
}

type packageSearchArgs struct {
	Search string `json:"search" jsonschema_description:"The search term"`
	Page   int    `json:"page,omitempty" jsonschema_description:"The page number to fetch. Must be greater than 0. Defaults to 1"`
}

// PackageSearch queries the configured package index.
func (h *diagnosticHandlers) PackageSearch(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[packageSearchArgs](args)
	if err != nil {
		return nil, err
	}
	if h.packages == nil {
		return nil, fmt.Errorf("package search is not configured")
	}

	page := in.Page
	switch {
	case page == 0:
		page = 1
	case page < 0:
		return nil, fmt.Errorf("%w: page must be greater than 0", tools.ErrInvalidArguments)
	}

	body, err := h.packages.Search(ctx, in.Search, page)
	if err != nil {
		return nil, err
	}
	return tools.Text(body), nil
}
