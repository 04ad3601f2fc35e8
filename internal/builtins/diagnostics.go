// ABOUTME: Diagnostic tools: get_logs, get_source_location, and package_search
// ABOUTME: Logs are read with nxadm/tail; source locations come from parsing the project's Go files

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nxadm/tail"

	"github.com/2389/tidewave-gateway/internal/files"
	"github.com/2389/tidewave-gateway/internal/tools"
)

type getLogsArgs struct {
	Tail int    `json:"tail" jsonschema_description:"The number of log entries to return from the end of the log"`
	Grep string `json:"grep,omitempty" jsonschema_description:"Filter logs with the given regular expression (case insensitive). E.g. \"error\" when you want to capture errors in particular"`
}

type sourceLocationArgs struct {
	Reference string `json:"reference" jsonschema_description:"The symbol to look up: Name, Type.Method, pkg.Name, or dep:MODULE for the root of a dependency"`
}

type diagnosticHandlers struct {
	ledger   *files.Ledger
	logPath  string
	packages *PackageIndex
}

// DiagnosticTools returns get_logs, get_source_location, and package_search.
func DiagnosticTools(d Deps) []tools.Tool {
	h := &diagnosticHandlers{ledger: d.Ledger, logPath: d.LogPath, packages: d.Packages}

	return []tools.Tool{
		&tools.Func{
			Def: tools.Descriptor{
				Name: "get_logs",
				Description: "Returns the most recent lines of the application log.\n\n" +
					"Use this tool to check for request logs or potentially logged errors.",
				InputSchema: tools.SchemaFor(&getLogsArgs{}),
			},
			Handler: h.GetLogs,
		},
		&tools.Func{
			Def: tools.Descriptor{
				Name: "get_source_location",
				Description: "Returns the source location (path:line) of a function, type, method, variable or constant " +
					"declared in the project, such as `Server`, `Server.Start` or `config.Load`.\n\n" +
					"Prefer this tool over grepping when you know the symbol you are after. " +
					"Use \"dep:MODULE\" to get the directory of a dependency module.",
				InputSchema: tools.SchemaFor(&sourceLocationArgs{}),
			},
			Handler: h.GetSourceLocation,
		},
		&tools.Func{
			Def: tools.Descriptor{
				Name: "package_search",
				Description: "Searches the package index for packages to add to the project.\n\n" +
					"Results are paginated. Use the `page` parameter to fetch a specific page.",
				InputSchema: tools.SchemaFor(&packageSearchArgs{}),
			},
			Handler: h.PackageSearch,
		},
	}
}

// GetLogs returns the last tail lines of the log, optionally filtered.
func (h *diagnosticHandlers) GetLogs(_ context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[getLogsArgs](args)
	if err != nil {
		return nil, err
	}
	if in.Tail <= 0 {
		return nil, fmt.Errorf("%w: tail must be greater than 0", tools.ErrInvalidArguments)
	}

	var filter *regexp.Regexp
	if in.Grep != "" {
		filter, err = regexp.Compile("(?i)" + in.Grep)
		if err != nil {
			return nil, fmt.Errorf("%w: grep: %v", tools.ErrInvalidArguments, err)
		}
	}

	path := h.logPath
	if h.ledger != nil && !filepath.IsAbs(path) {
		path = filepath.Join(h.ledger.Root(), path)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return tools.Text("Log file not found"), nil
	}

	t, err := tail.TailFile(path, tail.Config{MustExist: true, Logger: tail.DiscardingLogger})
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer t.Cleanup()

	lines := make([]string, 0, in.Tail)
	for line := range t.Lines {
		if line.Err != nil {
			return nil, fmt.Errorf("reading log file: %w", line.Err)
		}
		if filter != nil && !filter.MatchString(line.Text) {
			continue
		}
		if len(lines) == in.Tail {
			lines = lines[1:]
		}
		lines = append(lines, line.Text)
	}

	if len(lines) == 0 {
		return tools.Text(""), nil
	}
	return tools.Text(strings.Join(lines, "\n") + "\n"), nil
}

// GetSourceLocation resolves a reference to path:line relative to the project root.
func (h *diagnosticHandlers) GetSourceLocation(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[sourceLocationArgs](args)
	if err != nil {
		return nil, err
	}
	if h.ledger == nil {
		return nil, errors.New("project root is not available")
	}

	if module, ok := strings.CutPrefix(in.Reference, "dep:"); ok {
		dir, err := moduleDir(ctx, h.ledger.Root(), module)
		if err != nil {
			return nil, err
		}
		return tools.Text(dir), nil
	}

	loc, err := findDeclaration(h.ledger.Root(), in.Reference)
	if err != nil {
		return nil, err
	}
	return tools.Text(loc), nil
}

func moduleDir(ctx context.Context, root, module string) (string, error) {
	cmd := exec.CommandContext(ctx, "go", "list", "-m", "-f", "{{.Dir}}", module)
	cmd.Dir = root
	out, err := cmd.Output()
	dir := strings.TrimSpace(string(out))
	if err != nil || dir == "" {
		return "", fmt.Errorf("package %s not found, check go.mod for available modules", module)
	}
	return dir, nil
}

// findDeclaration walks the project's Go files looking for the referenced declaration.
// "A.B" matches a method B on type A first, then a top-level B in package A.
func findDeclaration(root, reference string) (string, error) {
	ref := strings.ReplaceAll(reference, "#", ".")
	qualifier, name := "", ref
	if i := strings.LastIndex(ref, "."); i >= 0 {
		qualifier, name = ref[:i], ref[i+1:]
	}
	if name == "" {
		return "", fmt.Errorf("%w: invalid reference %s", tools.ErrInvalidArguments, reference)
	}
	if i := strings.LastIndex(qualifier, "."); i >= 0 {
		qualifier = qualifier[i+1:]
	}

	var method, topLevel string
	fset := token.NewFileSet()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			base := d.Name()
			if path != root && (strings.HasPrefix(base, ".") || base == "vendor" || base == "testdata" || base == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}

		file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
		if err != nil {
			return nil
		}

		for _, decl := range file.Decls {
			pos, isMethod, ok := matchDecl(decl, qualifier, name, file.Name.Name)
			if !ok {
				continue
			}
			loc := relativeLocation(root, fset.Position(pos))
			if isMethod {
				method = loc
				return filepath.SkipAll
			}
			if topLevel == "" {
				topLevel = loc
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning project sources: %w", err)
	}

	if method != "" {
		return method, nil
	}
	if topLevel != "" {
		return topLevel, nil
	}
	return "", fmt.Errorf("could not find source location for %s", reference)
}

// matchDecl reports whether decl declares name, either as a method on
// qualifier or as a top-level symbol of a package named qualifier.
func matchDecl(decl ast.Decl, qualifier, name, pkg string) (pos token.Pos, isMethod, ok bool) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Name.Name != name {
			return token.NoPos, false, false
		}
		if d.Recv != nil {
			return d.Pos(), true, qualifier != "" && receiverName(d) == qualifier
		}
		if qualifier == "" || qualifier == pkg {
			return d.Pos(), false, true
		}
	case *ast.GenDecl:
		if qualifier != "" && qualifier != pkg {
			return token.NoPos, false, false
		}
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				if s.Name.Name == name {
					return s.Pos(), false, true
				}
			case *ast.ValueSpec:
				for _, n := range s.Names {
					if n.Name == name {
						return n.Pos(), false, true
					}
				}
			}
		}
	}
	return token.NoPos, false, false
}

func receiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	expr := fn.Recv.List[0].Type
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}

func relativeLocation(root string, pos token.Position) string {
	path := pos.Filename
	if rel, err := filepath.Rel(root, path); err == nil {
		path = filepath.ToSlash(rel)
	}
	return fmt.Sprintf("%s:%d", path, pos.Line)
}
