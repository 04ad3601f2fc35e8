// ABOUTME: Ledger confines file tool access to the project root and records reads
// ABOUTME: Applies an mtime check against the caller's atime token before edits and writes

package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/sync/errgroup"
)

// Sentinel errors for file access.
var (
	ErrPathTraversal  = errors.New("file path must not contain '..'")
	ErrOutsideProject = errors.New("file path must be within the project directory")
	ErrNotFound       = errors.New("file not found")
	ErrStaleRead      = errors.New("file has been modified since last read")
)

// Ledger tracks which project files have been read and guards every path
// against escaping the project root.
type Ledger struct {
	root string

	mu    sync.RWMutex
	reads map[string]time.Time
}

// ResolveRoot discovers the project root from git. NewLedger evaluates its symlinks.
func ResolveRoot(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("resolving git root: %w", err)
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", fmt.Errorf("resolving git root: empty output")
	}
	return root, nil
}

// NewLedger creates a ledger rooted at root. The root must be an existing directory.
func NewLedger(root string) (*Ledger, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", resolved)
	}

	return &Ledger{
		root:  resolved,
		reads: make(map[string]time.Time),
	}, nil
}

// Root returns the absolute project root.
func (l *Ledger) Root() string {
	return l.root
}

// FullPath joins a project-relative path onto the root. Absolute paths are returned cleaned.
func (l *Ledger) FullPath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(l.root, path)
}

// ValidateAccess checks that path stays inside the project. With mustExist
// the file must also be present. It has no side effects.
func (l *Ledger) ValidateAccess(path string, mustExist bool) error {
	if hasDotDot(path) {
		return fmt.Errorf("%w: %s", ErrPathTraversal, path)
	}

	full := l.FullPath(path)
	rel, ok := l.relative(full)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutsideProject, path)
	}

	if err := l.checkSymlinks(full, rel); err != nil {
		return fmt.Errorf("%w: %s", err, path)
	}

	if mustExist {
		if _, err := os.Stat(full); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	return nil
}

// Read returns the file's mtime in unix seconds and its content, and records the read.
// The mtime is taken from the open handle before reading, so a concurrent
// write after the stat produces a newer mtime than the one returned.
func (l *Ledger) Read(path string) (int64, []byte, error) {
	if err := l.ValidateAccess(path, true); err != nil {
		return 0, nil, err
	}

	f, err := os.Open(l.FullPath(path))
	if err != nil {
		return 0, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, nil, fmt.Errorf("%s is a directory", path)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return 0, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	l.recordRead(path)
	return info.ModTime().Unix(), content, nil
}

// Write creates or replaces the file, creating parent directories, and records it as read.
// It returns the new mtime in unix seconds.
func (l *Ledger) Write(path string, content []byte) (int64, error) {
	if err := l.ValidateAccess(path, false); err != nil {
		return 0, err
	}

	full := l.FullPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return 0, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, content, 0644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}

	info, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	l.recordRead(path)
	return info.ModTime().Unix(), nil
}

// ValidateEditable checks an existing file may be edited. A non-nil atime
// must be at least the file's current mtime.
func (l *Ledger) ValidateEditable(path string, atime *int64) error {
	if err := l.ValidateAccess(path, true); err != nil {
		return err
	}
	return l.checkStale(path, atime)
}

// ValidateWritable is ValidateEditable for files that may not exist yet.
func (l *Ledger) ValidateWritable(path string, atime *int64) error {
	if err := l.ValidateAccess(path, false); err != nil {
		return err
	}
	return l.checkStale(path, atime)
}

// LastReadAt returns when path was last read or written through the ledger.
func (l *Ledger) LastReadAt(path string) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.reads[l.recordKey(path)]
	return at, ok
}

// WasRead reports whether path has been read or written through the ledger.
func (l *Ledger) WasRead(path string) bool {
	_, ok := l.LastReadAt(path)
	return ok
}

// Reset forgets every read record.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads = make(map[string]time.Time)
}

// ProjectFiles lists tracked files followed by untracked files that git does not ignore.
func (l *Ledger) ProjectFiles(ctx context.Context) ([]string, error) {
	var tracked, untracked []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tracked, err = l.gitLsFiles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		untracked, err = l.gitLsFiles(gctx, "--others", "--exclude-standard")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return append(tracked, untracked...), nil
}

func (l *Ledger) gitLsFiles(ctx context.Context, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"ls-files"}, args...)...)
	cmd.Dir = l.root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range bytes.Split(out, []byte("\n")) {
		if len(line) > 0 {
			paths = append(paths, string(line))
		}
	}
	return paths, nil
}

func (l *Ledger) checkStale(path string, atime *int64) error {
	if atime == nil {
		return nil
	}

	info, err := os.Stat(l.FullPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if info.ModTime().Unix() > *atime {
		return fmt.Errorf("%w: %s, please read it again", ErrStaleRead, path)
	}
	return nil
}

func (l *Ledger) recordRead(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads[l.recordKey(path)] = time.Now()
}

// relative returns full relative to the root, or false when it lies outside.
func (l *Ledger) relative(full string) (string, bool) {
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// checkSymlinks resolves the deepest existing ancestor of full two ways:
// following links freely, and with links scoped to the root. When the two
// disagree the freely resolved path must still land inside the root.
func (l *Ledger) checkSymlinks(full, rel string) error {
	existing, existingRel := full, rel
	for {
		if _, err := os.Stat(existing); err == nil {
			break
		}
		if existing == l.root {
			return nil
		}
		existing = filepath.Dir(existing)
		existingRel = filepath.Dir(existingRel)
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}
	scoped, err := securejoin.SecureJoin(l.root, existingRel)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}

	if resolved == filepath.Clean(scoped) {
		return nil
	}
	if _, ok := l.relative(resolved); !ok {
		return ErrOutsideProject
	}
	return nil
}

func hasDotDot(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

// recordKey is the project-relative form of path, so absolute and relative
// spellings of one file share a record.
func (l *Ledger) recordKey(path string) string {
	if rel, ok := l.relative(l.FullPath(path)); ok {
		return filepath.ToSlash(rel)
	}
	return filepath.Clean(path)
}
