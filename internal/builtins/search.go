// ABOUTME: Project search tools: list_project_files and grep
// ABOUTME: grep prefers ripgrep's JSON output and falls back to an in-process walk

package builtins

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/2389/tidewave-gateway/internal/files"
	"github.com/2389/tidewave-gateway/internal/tools"
)

const defaultGrepResults = 100

type grepArgs struct {
	Pattern       string `json:"pattern" jsonschema_description:"The pattern to search for"`
	Glob          string `json:"glob,omitempty" jsonschema_description:"Glob pattern selecting the files to search, e.g. \"**/*.go\". When a glob is given .gitignore is not consulted"`
	CaseSensitive bool   `json:"case_sensitive,omitempty" jsonschema_description:"Whether the search should be case-sensitive. Defaults to false"`
	MaxResults    int    `json:"max_results,omitempty" jsonschema_description:"Maximum number of results to return. Defaults to 100"`
}

// GrepMatch is one matching line.
type GrepMatch struct {
	Path       string `json:"path"`
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
}

type searchHandlers struct {
	ledger  *files.Ledger
	ripgrep string
}

// SearchTools returns list_project_files and grep.
func SearchTools(d Deps) []tools.Tool {
	h := &searchHandlers{ledger: d.Ledger, ripgrep: d.RipgrepPath}

	grepWith := "a grep variant"
	if h.ripgrep != "" {
		grepWith = "ripgrep"
	}

	return []tools.Tool{
		&tools.Func{
			Def: tools.Descriptor{
				Name:        "list_project_files",
				Description: "Returns a list of all files in the project that are not ignored by .gitignore.",
				InputSchema: tools.EmptySchema,
			},
			Handler: h.ListProjectFiles,
		},
		&tools.Func{
			Def: tools.Descriptor{
				Name:        "grep",
				Description: "Searches for text patterns in files using " + grepWith + ".",
				InputSchema: tools.SchemaFor(&grepArgs{}),
			},
			Handler: h.Grep,
		},
	}
}

// ListProjectFiles returns tracked and untracked-but-not-ignored files as a JSON array.
func (h *searchHandlers) ListProjectFiles(ctx context.Context, _ json.RawMessage) (*tools.Result, error) {
	paths, err := h.ledger.ProjectFiles(ctx)
	if err != nil {
		return nil, err
	}
	if paths == nil {
		paths = []string{}
	}
	return jsonResult(paths)
}

// Grep searches project files and returns matches as a JSON array.
func (h *searchHandlers) Grep(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[grepArgs](args)
	if err != nil {
		return nil, err
	}
	if in.Pattern == "" {
		return nil, fmt.Errorf("%w: pattern is required", tools.ErrInvalidArguments)
	}
	if in.MaxResults <= 0 {
		in.MaxResults = defaultGrepResults
	}
	if err := checkPattern(in.Glob); err != nil {
		return nil, err
	}

	var matches []GrepMatch
	if h.ripgrep != "" {
		matches, err = h.ripgrepSearch(ctx, in)
	} else {
		if in.Glob == "" {
			in.Glob = "**/*"
		}
		matches, err = h.walkSearch(in)
	}
	if err != nil {
		return nil, err
	}

	if len(matches) > in.MaxResults {
		matches = matches[:in.MaxResults]
	}
	if matches == nil {
		matches = []GrepMatch{}
	}
	return jsonResult(matches)
}

type ripgrepEvent struct {
	Type string `json:"type"`
	Data struct {
		Path struct {
			Text string `json:"text"`
		} `json:"path"`
		Lines struct {
			Text string `json:"text"`
		} `json:"lines"`
		LineNumber int `json:"line_number"`
	} `json:"data"`
}

func (h *searchHandlers) ripgrepSearch(ctx context.Context, in grepArgs) ([]GrepMatch, error) {
	argv := []string{"--no-require-git", "--json", "--max-count=" + strconv.Itoa(in.MaxResults)}
	if !in.CaseSensitive {
		argv = append(argv, "--ignore-case")
	}
	if in.Glob != "" {
		argv = append(argv, "--glob="+in.Glob)
	}
	argv = append(argv, "--", in.Pattern, ".")

	cmd := exec.CommandContext(ctx, h.ripgrep, argv...)
	cmd.Dir = h.ledger.Root()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		// rg exits 1 when nothing matched.
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return nil, fmt.Errorf("ripgrep failed: %v: %s", err, strings.TrimSpace(stderr.String()))
		}
	}

	var matches []GrepMatch
	for _, line := range bytes.Split(out, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var ev ripgrepEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parsing ripgrep output: %w", err)
		}
		if ev.Type != "match" {
			continue
		}
		matches = append(matches, GrepMatch{
			Path:       strings.TrimPrefix(ev.Data.Path.Text, "./"),
			LineNumber: ev.Data.LineNumber,
			Content:    strings.TrimSpace(ev.Data.Lines.Text),
		})
	}
	return matches, nil
}

// walkSearch does a literal substring search over the files selected by the glob.
func (h *searchHandlers) walkSearch(in grepArgs) ([]GrepMatch, error) {
	root := h.ledger.Root()
	paths, err := doublestar.Glob(os.DirFS(root), in.Glob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: glob: %v", tools.ErrInvalidArguments, err)
	}

	needle := in.Pattern
	if !in.CaseSensitive {
		needle = strings.ToLower(needle)
	}

	var matches []GrepMatch
	for _, path := range paths {
		if path == ".git" || strings.HasPrefix(path, ".git/") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, path))
		if err != nil || isBinary(data) {
			continue
		}

		perFile := 0
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for lineNo := 1; scanner.Scan(); lineNo++ {
			line := scanner.Text()
			haystack := line
			if !in.CaseSensitive {
				haystack = strings.ToLower(line)
			}
			if !strings.Contains(haystack, needle) {
				continue
			}
			matches = append(matches, GrepMatch{Path: path, LineNumber: lineNo, Content: strings.TrimSpace(line)})
			perFile++
			if perFile >= in.MaxResults || len(matches) >= in.MaxResults {
				break
			}
		}
		if len(matches) >= in.MaxResults {
			break
		}
	}
	return matches, nil
}

func isBinary(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// checkPattern rejects glob patterns that would leave the project root.
func checkPattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	if filepath.IsAbs(pattern) {
		return fmt.Errorf("%w: %s", files.ErrOutsideProject, pattern)
	}
	for _, part := range strings.Split(filepath.ToSlash(pattern), "/") {
		if part == ".." {
			return fmt.Errorf("%w: %s", files.ErrPathTraversal, pattern)
		}
	}
	return nil
}
