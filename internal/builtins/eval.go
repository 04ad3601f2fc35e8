// ABOUTME: project_eval runs code through the project's interpreter under a wall-clock timeout
// ABOUTME: The interpreter command is configured; code is passed as its last argument

package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/2389/tidewave-gateway/internal/tools"
)

// ErrEvalNotConfigured is returned when no interpreter command is set.
var ErrEvalNotConfigured = errors.New("project_eval is not configured: set eval.command")

// EvalOutput is what an evaluation produced. For a command interpreter the
// result is everything it wrote to stdout.
type EvalOutput struct {
	Result  string `json:"result"`
	Success bool   `json:"success"`
	Stderr  string `json:"stderr"`
}

// Evaluator runs code in the context of the project. Implementations must
// stop when ctx is cancelled.
type Evaluator interface {
	Eval(ctx context.Context, code string, arguments []any) (*EvalOutput, error)
}

// CommandEvaluator evaluates code by running an interpreter command with the
// code appended as the final argument. Arguments are passed as JSON in the
// TIDEWAVE_ARGUMENTS environment variable.
type CommandEvaluator struct {
	argv []string
	dir  string
}

// NewCommandEvaluator parses command with shell quoting rules. An empty
// command yields an evaluator that always fails with ErrEvalNotConfigured.
func NewCommandEvaluator(command, dir string) (*CommandEvaluator, error) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parsing eval command: %w", err)
	}
	return &CommandEvaluator{argv: argv, dir: dir}, nil
}

// Eval implements Evaluator. The interpreter's stdout is the result; a
// non-zero exit marks the evaluation unsuccessful.
func (e *CommandEvaluator) Eval(ctx context.Context, code string, arguments []any) (*EvalOutput, error) {
	if len(e.argv) == 0 {
		return nil, ErrEvalNotConfigured
	}

	if arguments == nil {
		arguments = []any{}
	}
	argsJSON, err := json.Marshal(arguments)
	if err != nil {
		return nil, fmt.Errorf("encoding arguments: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.argv[0], append(e.argv[1:], code)...)
	cmd.Dir = e.dir
	cmd.Env = append(os.Environ(), "TIDEWAVE_ARGUMENTS="+string(argsJSON))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	out := &EvalOutput{
		Result:  strings.TrimRight(stdout.String(), "\n"),
		Success: err == nil,
		Stderr:  stderr.String(),
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("running eval command: %w", err)
	}
	return out, nil
}

type evalArgs struct {
	Code      string `json:"code" jsonschema_description:"The code to evaluate"`
	Arguments []any  `json:"arguments,omitempty" jsonschema_description:"Values made available to the code as JSON in the TIDEWAVE_ARGUMENTS environment variable"`
	Timeout   int    `json:"timeout,omitempty" jsonschema_description:"Timeout in milliseconds. Defaults to the configured eval timeout"`
	JSON      bool   `json:"json,omitempty" jsonschema_description:"Return the result, success flag and stderr as a JSON object"`
}

type evalHandlers struct {
	evaluator Evaluator
	timeout   time.Duration
}

// EvalTools returns project_eval.
func EvalTools(d Deps) []tools.Tool {
	h := &evalHandlers{evaluator: d.Evaluator, timeout: d.EvalTimeout}
	if h.timeout <= 0 {
		h.timeout = 30 * time.Second
	}

	return []tools.Tool{
		&tools.Func{
			Def: tools.Descriptor{
				Name: "project_eval",
				Description: "Evaluates code in the context of the project using the project's interpreter.\n\n" +
					"Use this tool every time you need to evaluate code, for example to test the behaviour " +
					"of a function or to debug something. Anything written to standard output is returned. " +
					"Prefer this tool over shell_eval for evaluating code.",
				InputSchema: tools.SchemaFor(&evalArgs{}),
			},
			Handler: h.ProjectEval,
		},
	}
}

// ProjectEval evaluates the code, abandoning it once the timeout elapses.
func (h *evalHandlers) ProjectEval(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[evalArgs](args)
	if err != nil {
		return nil, err
	}
	if h.evaluator == nil {
		return nil, ErrEvalNotConfigured
	}

	timeout := h.timeout
	if in.Timeout > 0 {
		timeout = time.Duration(in.Timeout) * time.Millisecond
	}

	evalCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		out *EvalOutput
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := h.evaluator.Eval(evalCtx, in.Code, in.Arguments)
		done <- outcome{out, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res outcome
	select {
	case res = <-done:
	case <-timer.C:
		cancel()
		return nil, fmt.Errorf("evaluation timed out after %d milliseconds", timeout.Milliseconds())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	out := res.out
	if in.JSON {
		return jsonResult(out)
	}
	if !out.Success {
		return nil, fmt.Errorf("evaluation failed:\n\n%s", formatEvalOutput(out))
	}
	if out.Stderr == "" {
		return tools.Text(out.Result), nil
	}
	return tools.Text(formatEvalOutput(out)), nil
}

func formatEvalOutput(out *EvalOutput) string {
	return fmt.Sprintf("STDERR:\n\n%s\n\nResult:\n\n%s\n", out.Stderr, out.Result)
}
