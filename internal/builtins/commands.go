// ABOUTME: Command tools: shell_eval and run_linter
// ABOUTME: Both run in the project root and report non-zero exits as tool errors

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/2389/tidewave-gateway/internal/files"
	"github.com/2389/tidewave-gateway/internal/tools"
)

// ErrLinterNotConfigured is returned by run_linter when lint.command is empty.
var ErrLinterNotConfigured = errors.New("no linter configured: set lint.command")

type shellEvalArgs struct {
	Command string `json:"command" jsonschema_description:"The shell command to execute. Avoid using this for file operations; use dedicated file system tools instead"`
}

type runLinterArgs struct {
	Path    string `json:"path,omitempty" jsonschema_description:"The file or directory to lint. Defaults to the entire project"`
	Options string `json:"options,omitempty" jsonschema_description:"Additional linter options, e.g. '--fix'"`
}

type commandHandlers struct {
	ledger      *files.Ledger
	lintCommand string
	lintOK      []int
	logger      *slog.Logger
}

// CommandTools returns shell_eval and run_linter.
func CommandTools(d Deps) []tools.Tool {
	h := &commandHandlers{
		ledger:      d.Ledger,
		lintCommand: d.LintCommand,
		lintOK:      d.LintOKExitCodes,
		logger:      d.Logger.With("component", "builtins"),
	}
	if len(h.lintOK) == 0 {
		h.lintOK = []int{0}
	}

	return []tools.Tool{
		&tools.Func{
			Def: tools.Descriptor{
				Name: "shell_eval",
				Description: "Executes a shell command in the project root directory.\n\n" +
					"Avoid using this tool for file operations. Instead, rely on dedicated file system tools, if available. " +
					"Only use this tool if other means are not available.",
				InputSchema: tools.SchemaFor(&shellEvalArgs{}),
			},
			Handler: h.ShellEval,
		},
		&tools.Func{
			Def: tools.Descriptor{
				Name: "run_linter",
				Description: "Runs the project's configured linter, optionally on a single path.\n\n" +
					"Returns the linter output. Offenses are reported in the output; the call fails only when the linter itself fails.",
				InputSchema: tools.SchemaFor(&runLinterArgs{}),
			},
			Handler: h.RunLinter,
		},
	}
}

// ShellEval runs the command with sh -c and returns its combined output.
func (h *commandHandlers) ShellEval(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[shellEvalArgs](args)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Command) == "" {
		return nil, fmt.Errorf("%w: command is required", tools.ErrInvalidArguments)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", in.Command)
	cmd.Dir = h.dir()

	h.logger.Debug("running shell command", "command", in.Command)
	out, code, err := combinedOutput(cmd)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("command failed with status %d:\n\n%s", code, out)
	}
	return tools.Text(strings.TrimSpace(out)), nil
}

// RunLinter runs lint.command with the options and path appended.
func (h *commandHandlers) RunLinter(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[runLinterArgs](args)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(h.lintCommand) == "" {
		return nil, ErrLinterNotConfigured
	}

	argv, err := shellwords.Parse(h.lintCommand)
	if err != nil {
		return nil, fmt.Errorf("parsing lint command: %w", err)
	}
	if in.Options != "" {
		opts, err := shellwords.Parse(in.Options)
		if err != nil {
			return nil, fmt.Errorf("%w: options: %v", tools.ErrInvalidArguments, err)
		}
		argv = append(argv, opts...)
	}
	if in.Path != "" {
		if h.ledger != nil {
			if err := h.ledger.ValidateAccess(in.Path, true); err != nil {
				return nil, err
			}
		}
		argv = append(argv, in.Path)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = h.dir()

	h.logger.Debug("running linter", "argv", argv)
	out, code, err := combinedOutput(cmd)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(h.lintOK, code) {
		return nil, fmt.Errorf("linter failed with status %d:\n\n%s", code, out)
	}
	return tools.Text(strings.TrimSpace(out)), nil
}

func (h *commandHandlers) dir() string {
	if h.ledger == nil {
		return ""
	}
	return h.ledger.Root()
}

// combinedOutput runs cmd and returns its output and exit code. Failing to
// start the command is an error; a non-zero exit is not.
func combinedOutput(cmd *exec.Cmd) (string, int, error) {
	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), exitErr.ExitCode(), nil
	}
	return "", -1, fmt.Errorf("running %s: %w", cmd.Path, err)
}
