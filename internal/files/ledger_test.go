// ABOUTME: Tests for the file access ledger
// ABOUTME: Covers containment, symlink escapes, read records, and the atime staleness gate

package files

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(t.TempDir())
	require.NoError(t, err)
	return l
}

func writeFile(t *testing.T, l *Ledger, rel, content string) {
	t.Helper()
	full := filepath.Join(l.Root(), rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func TestNewLedger_RejectsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := NewLedger(path)
	require.Error(t, err)
}

func TestValidateAccess(t *testing.T) {
	l := newTestLedger(t)
	writeFile(t, l, "app/models/user.rb", "class User; end\n")

	tests := []struct {
		name      string
		path      string
		mustExist bool
		wantErr   error
	}{
		{name: "existing relative file", path: "app/models/user.rb", mustExist: true},
		{name: "missing file allowed", path: "app/new.rb", mustExist: false},
		{name: "missing file required", path: "app/new.rb", mustExist: true, wantErr: ErrNotFound},
		{name: "leading dot-dot", path: "../etc/passwd", wantErr: ErrPathTraversal},
		{name: "inner dot-dot", path: "app/../../secret", wantErr: ErrPathTraversal},
		{name: "dot-dot on missing file", path: "app/../x", mustExist: true, wantErr: ErrPathTraversal},
		{name: "absolute outside root", path: "/etc/passwd", wantErr: ErrOutsideProject},
		{name: "absolute inside root", path: filepath.Join(l.Root(), "app/models/user.rb"), mustExist: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.ValidateAccess(tt.path, tt.mustExist)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateAccess_SymlinkEscape(t *testing.T) {
	l := newTestLedger(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(l.Root(), "escape")))

	err := l.ValidateAccess("escape/secret.txt", true)
	assert.ErrorIs(t, err, ErrOutsideProject)

	err = l.ValidateAccess("escape/new.txt", false)
	assert.ErrorIs(t, err, ErrOutsideProject)
}

func TestValidateAccess_SymlinkInsideRoot(t *testing.T) {
	l := newTestLedger(t)
	writeFile(t, l, "real/file.txt", "ok")
	require.NoError(t, os.Symlink(filepath.Join(l.Root(), "real"), filepath.Join(l.Root(), "alias")))

	assert.NoError(t, l.ValidateAccess("alias/file.txt", true))
}

func TestValidateAccess_NoSideEffects(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.ValidateAccess("lib/new/file.rb", false))

	_, err := os.Stat(filepath.Join(l.Root(), "lib"))
	assert.True(t, os.IsNotExist(err))
	assert.False(t, l.WasRead("lib/new/file.rb"))
}

func TestRead(t *testing.T) {
	l := newTestLedger(t)
	writeFile(t, l, "README.md", "hello")

	mtime, content, err := l.Read("README.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	info, err := os.Stat(filepath.Join(l.Root(), "README.md"))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime().Unix(), mtime)

	assert.True(t, l.WasRead("README.md"))
	assert.True(t, l.WasRead("./README.md"))
	at, ok := l.LastReadAt("README.md")
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), at, 5*time.Second)
}

func TestRead_AbsolutePathSharesRecord(t *testing.T) {
	l := newTestLedger(t)
	writeFile(t, l, "app/models/user.rb", "class User; end")

	_, _, err := l.Read(filepath.Join(l.Root(), "app", "models", "user.rb"))
	require.NoError(t, err)

	assert.True(t, l.WasRead("app/models/user.rb"))
	assert.True(t, l.WasRead("./app/models/user.rb"))
	l.mu.RLock()
	assert.Len(t, l.reads, 1)
	l.mu.RUnlock()
}

func TestWrite_ReadContentIsIdempotent(t *testing.T) {
	l := newTestLedger(t)
	writeFile(t, l, "config/settings.yml", "name: shop\nmode: dev\n")

	_, before, err := l.Read("config/settings.yml")
	require.NoError(t, err)

	_, err = l.Write("config/settings.yml", before)
	require.NoError(t, err)

	_, after, err := l.Read("config/settings.yml")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRead_Errors(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, os.Mkdir(filepath.Join(l.Root(), "dir"), 0755))

	_, _, err := l.Read("missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = l.Read("../outside.txt")
	assert.ErrorIs(t, err, ErrPathTraversal)

	_, _, err = l.Read("dir")
	assert.Error(t, err)
	assert.False(t, l.WasRead("missing.txt"))
}

func TestWrite_CreatesParents(t *testing.T) {
	l := newTestLedger(t)

	mtime, err := l.Write("deep/nested/file.txt", []byte("content"))
	require.NoError(t, err)
	assert.Positive(t, mtime)

	data, err := os.ReadFile(filepath.Join(l.Root(), "deep/nested/file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	assert.True(t, l.WasRead("deep/nested/file.txt"))
}

func TestWrite_Traversal(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Write("../evil.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestValidateEditable_Staleness(t *testing.T) {
	l := newTestLedger(t)
	writeFile(t, l, "a.txt", "v1")

	mtime, _, err := l.Read("a.txt")
	require.NoError(t, err)

	t.Run("matching token", func(t *testing.T) {
		assert.NoError(t, l.ValidateEditable("a.txt", &mtime))
	})

	t.Run("no token skips the check", func(t *testing.T) {
		assert.NoError(t, l.ValidateEditable("a.txt", nil))
	})

	t.Run("newer file on disk", func(t *testing.T) {
		future := time.Unix(mtime+10, 0)
		require.NoError(t, os.Chtimes(filepath.Join(l.Root(), "a.txt"), future, future))

		err := l.ValidateEditable("a.txt", &mtime)
		assert.ErrorIs(t, err, ErrStaleRead)
	})

	t.Run("token newer than file", func(t *testing.T) {
		later := mtime + 100
		assert.NoError(t, l.ValidateEditable("a.txt", &later))
	})

	t.Run("missing file", func(t *testing.T) {
		err := l.ValidateEditable("gone.txt", &mtime)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestValidateWritable(t *testing.T) {
	l := newTestLedger(t)
	token := int64(1)

	assert.NoError(t, l.ValidateWritable("new.txt", &token))

	writeFile(t, l, "existing.txt", "x")
	assert.ErrorIs(t, l.ValidateWritable("existing.txt", &token), ErrStaleRead)
	assert.ErrorIs(t, l.ValidateWritable("../x.txt", nil), ErrPathTraversal)
}

func TestReset(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Write("a.txt", []byte("a"))
	require.NoError(t, err)

	l.Reset()
	assert.False(t, l.WasRead("a.txt"))
}

func TestLedger_ConcurrentAccess(t *testing.T) {
	l := newTestLedger(t)
	writeFile(t, l, "shared.txt", "data")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := l.Read("shared.txt")
			assert.NoError(t, err)
			l.WasRead("shared.txt")
		}()
	}
	wg.Wait()
}

func TestProjectFiles(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	l := newTestLedger(t)
	git := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = l.Root()
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	git("init", "-q")
	writeFile(t, l, "tracked.go", "package main\n")
	writeFile(t, l, "untracked.go", "package main\n")
	writeFile(t, l, "ignored.log", "noise\n")
	writeFile(t, l, ".gitignore", "*.log\n")
	git("add", "tracked.go")

	files, err := l.ProjectFiles(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tracked.go", files[0])
	assert.Contains(t, files, "untracked.go")
	assert.Contains(t, files, ".gitignore")
	assert.NotContains(t, files, "ignored.log")
}

func TestResolveRoot_OutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	_, err := ResolveRoot(context.Background())
	assert.Error(t, err)
}
