// ABOUTME: Tests for list_project_files and grep
// ABOUTME: grep is exercised through the in-process search and, when installed, ripgrep

package builtins

import (
	"encoding/json"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grepFixture(t *testing.T) Deps {
	d := newTestDeps(t)
	writeProjectFile(t, d, "app/models/user.rb", "class User\n  def name\n    'User'\n  end\nend\n")
	writeProjectFile(t, d, "app/models/post.rb", "class Post\nend\n")
	writeProjectFile(t, d, "README.md", "# Users guide\n")
	writeProjectFile(t, d, "bin/blob", "user\x00binary")
	return d
}

func grepMatches(t *testing.T, d Deps, args string) []GrepMatch {
	t.Helper()
	res, err := invoke(t, findTool(t, SearchTools(d), "grep"), args)
	require.NoError(t, err)
	var matches []GrepMatch
	require.NoError(t, json.Unmarshal([]byte(res.Text), &matches))
	return matches
}

func TestGrep_Walk(t *testing.T) {
	d := grepFixture(t)

	t.Run("case insensitive by default", func(t *testing.T) {
		matches := grepMatches(t, d, `{"pattern":"user"}`)
		assert.ElementsMatch(t, []GrepMatch{
			{Path: "README.md", LineNumber: 1, Content: "# Users guide"},
			{Path: "app/models/user.rb", LineNumber: 1, Content: "class User"},
			{Path: "app/models/user.rb", LineNumber: 3, Content: "'User'"},
		}, matches)
	})

	t.Run("case sensitive", func(t *testing.T) {
		matches := grepMatches(t, d, `{"pattern":"user","case_sensitive":true}`)
		assert.Empty(t, matches)
	})

	t.Run("glob filter", func(t *testing.T) {
		matches := grepMatches(t, d, `{"pattern":"class","glob":"app/**/*.rb"}`)
		assert.Len(t, matches, 2)
	})

	t.Run("max results", func(t *testing.T) {
		matches := grepMatches(t, d, `{"pattern":"user","max_results":1}`)
		assert.Len(t, matches, 1)
	})

	t.Run("no matches encode as empty array", func(t *testing.T) {
		res, err := invoke(t, findTool(t, SearchTools(d), "grep"), `{"pattern":"zzz"}`)
		require.NoError(t, err)
		assert.Equal(t, "[]", res.Text)
	})
}

func TestGrep_Ripgrep(t *testing.T) {
	rg, err := exec.LookPath("rg")
	if err != nil {
		t.Skip("ripgrep not installed")
	}
	d := grepFixture(t)
	d.RipgrepPath = rg

	matches := grepMatches(t, d, `{"pattern":"class","glob":"*.rb"}`)
	var paths []string
	for _, m := range matches {
		paths = append(paths, m.Path)
	}
	assert.ElementsMatch(t, []string{"app/models/user.rb", "app/models/post.rb"}, paths)

	assert.Empty(t, grepMatches(t, d, `{"pattern":"nothing-here"}`))
}

func TestGrep_Description(t *testing.T) {
	d := newTestDeps(t)
	assert.Contains(t, findTool(t, SearchTools(d), "grep").Descriptor().Description, "a grep variant")

	d.RipgrepPath = "/usr/bin/rg"
	assert.Contains(t, findTool(t, SearchTools(d), "grep").Descriptor().Description, "ripgrep")
}

func TestListProjectFiles(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	d := newTestDeps(t)
	cmd := exec.Command("git", "init", "-q")
	cmd.Dir = d.Ledger.Root()
	require.NoError(t, cmd.Run())
	writeProjectFile(t, d, "main.go", "package main\n")

	res, err := invoke(t, findTool(t, SearchTools(d), "list_project_files"), `{}`)
	require.NoError(t, err)

	var paths []string
	require.NoError(t, json.Unmarshal([]byte(res.Text), &paths))
	assert.Equal(t, []string{"main.go"}, paths)
}
