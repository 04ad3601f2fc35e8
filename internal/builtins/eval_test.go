// ABOUTME: Tests for project_eval and the command evaluator
// ABOUTME: Covers output formatting, JSON output, failures, and the timeout

package builtins

import (
	"context"
	"encoding/json"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	out   *EvalOutput
	err   error
	block bool
	code  string
	args  []any
}

func (f *fakeEvaluator) Eval(ctx context.Context, code string, arguments []any) (*EvalOutput, error) {
	f.code = code
	f.args = arguments
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.out, f.err
}

func evalTool(t *testing.T, ev Evaluator, timeout time.Duration) func(string) (string, error) {
	d := newTestDeps(t)
	d.Evaluator = ev
	d.EvalTimeout = timeout
	tool := findTool(t, EvalTools(d), "project_eval")
	return func(args string) (string, error) {
		res, err := invoke(t, tool, args)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	}
}

func TestProjectEval_ResultOnly(t *testing.T) {
	ev := &fakeEvaluator{out: &EvalOutput{Result: "3", Success: true}}
	call := evalTool(t, ev, time.Second)

	text, err := call(`{"code":"1 + 2","arguments":[1,"two"]}`)
	require.NoError(t, err)
	assert.Equal(t, "3", text)
	assert.Equal(t, "1 + 2", ev.code)
	assert.Equal(t, []any{float64(1), "two"}, ev.args)
}

func TestProjectEval_WithStderr(t *testing.T) {
	ev := &fakeEvaluator{out: &EvalOutput{Result: "ok", Success: true, Stderr: "warning"}}
	call := evalTool(t, ev, time.Second)

	text, err := call(`{"code":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "STDERR:\n\nwarning\n\nResult:\n\nok\n", text)
}

func TestProjectEval_JSON(t *testing.T) {
	ev := &fakeEvaluator{out: &EvalOutput{Result: "", Success: false, Stderr: "boom"}}
	call := evalTool(t, ev, time.Second)

	text, err := call(`{"code":"raise","json":true}`)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, map[string]any{"result": "", "success": false, "stderr": "boom"}, out)
}

func TestProjectEval_Failure(t *testing.T) {
	ev := &fakeEvaluator{out: &EvalOutput{Success: false, Stderr: "undefined method"}}
	call := evalTool(t, ev, time.Second)

	_, err := call(`{"code":"nope"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined method")
}

func TestProjectEval_Timeout(t *testing.T) {
	ev := &fakeEvaluator{block: true}
	call := evalTool(t, ev, 30*time.Second)

	start := time.Now()
	_, err := call(`{"code":"sleep","timeout":100}`)
	require.Error(t, err)
	assert.Equal(t, "evaluation timed out after 100 milliseconds", err.Error())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProjectEval_NotConfigured(t *testing.T) {
	call := evalTool(t, nil, time.Second)

	_, err := call(`{"code":"1"}`)
	assert.ErrorIs(t, err, ErrEvalNotConfigured)
}

func TestCommandEvaluator(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ev, err := NewCommandEvaluator("sh -c", t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("stdout and stderr", func(t *testing.T) {
		out, err := ev.Eval(ctx, "echo hi; echo oops >&2", nil)
		require.NoError(t, err)
		assert.Equal(t, "hi", out.Result)
		assert.Equal(t, "oops\n", out.Stderr)
		assert.True(t, out.Success)
	})

	t.Run("arguments in environment", func(t *testing.T) {
		out, err := ev.Eval(ctx, `printf %s "$TIDEWAVE_ARGUMENTS"`, []any{1, "a"})
		require.NoError(t, err)
		assert.Equal(t, `[1,"a"]`, out.Result)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		out, err := ev.Eval(ctx, "exit 3", nil)
		require.NoError(t, err)
		assert.False(t, out.Success)
	})

	t.Run("cancelled", func(t *testing.T) {
		d := newTestDeps(t)
		d.Evaluator = ev
		tool := findTool(t, EvalTools(d), "project_eval")

		start := time.Now()
		_, err := invoke(t, tool, `{"code":"sleep 5","timeout":100}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
		assert.Less(t, time.Since(start), 4*time.Second)
	})
}

func TestCommandEvaluator_Empty(t *testing.T) {
	ev, err := NewCommandEvaluator("", "")
	require.NoError(t, err)

	_, err = ev.Eval(context.Background(), "1", nil)
	assert.ErrorIs(t, err, ErrEvalNotConfigured)
}
