// ABOUTME: Assembles the built-in tools served by the gateway in listing order
// ABOUTME: Deps carries the shared collaborators every handler group draws on

package builtins

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/tidewave-gateway/internal/database"
	"github.com/2389/tidewave-gateway/internal/files"
	"github.com/2389/tidewave-gateway/internal/tools"
)

// Deps are the collaborators shared by the built-in tools.
type Deps struct {
	Ledger *files.Ledger
	// DB may be nil when no database is configured.
	DB *database.DB

	Evaluator   Evaluator
	EvalTimeout time.Duration

	LintCommand     string
	LintOKExitCodes []int

	LogPath string

	Packages *PackageIndex

	// RipgrepPath is the rg executable used by grep. Empty selects the in-process search.
	RipgrepPath string

	Logger *slog.Logger
}

// All returns every built-in tool in the order they are listed to clients.
func All(d Deps) []tools.Tool {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	var all []tools.Tool
	all = append(all, EvalTools(d)...)
	all = append(all, DatabaseTools(d)...)
	all = append(all, DiagnosticTools(d)...)
	all = append(all, CommandTools(d)...)
	all = append(all, SearchTools(d)...)
	all = append(all, FileTools(d)...)
	return all
}

// jsonResult marshals v as the text of a tool result.
func jsonResult(v any) (*tools.Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return tools.Text(string(data)), nil
}
