// ABOUTME: File-system tools: read, write, edit, and glob within the project
// ABOUTME: Writes and edits pass the caller's atime token through the ledger's staleness check

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/2389/tidewave-gateway/internal/files"
	"github.com/2389/tidewave-gateway/internal/tools"
)

// Edit failures.
var (
	ErrOldStringNotFound  = errors.New("old_string is not found")
	ErrOldStringNotUnique = errors.New("old_string is not unique")
)

type readFileArgs struct {
	Path string `json:"path" jsonschema_description:"The path to the file to read. It is relative to the project root"`
}

type writeFileArgs struct {
	Path    string `json:"path" jsonschema_description:"The path to the file to write. It is relative to the project root"`
	Content string `json:"content" jsonschema_description:"The content to write to the file"`
	Atime   *int64 `json:"atime,omitempty" jsonschema_description:"The mtime returned by the last read_project_file call for this path. The write is refused if the file changed since"`
}

type editFileArgs struct {
	Path      string `json:"path" jsonschema_description:"The path to the file to edit. It is relative to the project root"`
	OldString string `json:"old_string" jsonschema_description:"The string to search for"`
	NewString string `json:"new_string" jsonschema_description:"The string to replace the old_string with"`
	Atime     *int64 `json:"atime,omitempty" jsonschema_description:"The mtime returned by the last read_project_file call for this path. The edit is refused if the file changed since"`
}

type globArgs struct {
	Pattern string `json:"pattern" jsonschema_description:"The glob pattern to match files against, e.g. \"**/*.go\""`
}

type fileHandlers struct {
	ledger *files.Ledger
}

// FileTools returns the tools that touch project files directly. All of them
// are tagged so clients only see them when they ask for file-system tools.
func FileTools(d Deps) []tools.Tool {
	h := &fileHandlers{ledger: d.Ledger}
	fsTags := []tools.Tag{tools.TagFileSystem}

	return []tools.Tool{
		&tools.Func{
			Def: tools.Descriptor{
				Name: "read_project_file",
				Description: "Returns the contents of the given file.\n\n" +
					"The file's modification time is returned in _meta.mtime. Pass it as atime " +
					"to write_project_file or edit_project_file.",
				InputSchema: tools.SchemaFor(&readFileArgs{}),
				Tags:        fsTags,
			},
			Handler: h.ReadProjectFile,
		},
		&tools.Func{
			Def: tools.Descriptor{
				Name: "write_project_file",
				Description: "Writes a file to the file system. If the file already exists, it will be overwritten.\n\n" +
					"Read existing files with read_project_file first and pass the returned mtime as atime.",
				InputSchema: tools.SchemaFor(&writeFileArgs{}),
				Tags:        fsTags,
			},
			Handler: h.WriteProjectFile,
		},
		&tools.Func{
			Def: tools.Descriptor{
				Name: "edit_project_file",
				Description: "Replaces a unique occurrence of old_string with new_string inside a file.\n\n" +
					"If old_string appears more than once the edit fails; include surrounding lines to make it unique. " +
					"All whitespace must be preserved as in the original file. For large edits, overwrite the file " +
					"with write_project_file instead. Read the file with read_project_file before editing.",
				InputSchema: tools.SchemaFor(&editFileArgs{}),
				Tags:        fsTags,
			},
			Handler: h.EditProjectFile,
		},
		&tools.Func{
			Def: tools.Descriptor{
				Name:        "glob_project_files",
				Description: "Searches for files matching the given glob pattern, relative to the project root.",
				InputSchema: tools.SchemaFor(&globArgs{}),
				Tags:        fsTags,
			},
			Handler: h.GlobProjectFiles,
		},
	}
}

// ReadProjectFile returns the file content with its mtime in _meta.
func (h *fileHandlers) ReadProjectFile(_ context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[readFileArgs](args)
	if err != nil {
		return nil, err
	}

	mtime, content, err := h.ledger.Read(in.Path)
	if err != nil {
		return nil, err
	}
	return &tools.Result{Text: string(content), Meta: map[string]any{"mtime": mtime}}, nil
}

// WriteProjectFile replaces or creates the file.
func (h *fileHandlers) WriteProjectFile(_ context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[writeFileArgs](args)
	if err != nil {
		return nil, err
	}

	if err := h.ledger.ValidateWritable(in.Path, in.Atime); err != nil {
		return nil, err
	}
	mtime, err := h.ledger.Write(in.Path, []byte(in.Content))
	if err != nil {
		return nil, err
	}
	return &tools.Result{
		Text: fmt.Sprintf("Wrote %d bytes to %s", len(in.Content), in.Path),
		Meta: map[string]any{"mtime": mtime},
	}, nil
}

// EditProjectFile replaces exactly one occurrence of old_string.
func (h *fileHandlers) EditProjectFile(_ context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[editFileArgs](args)
	if err != nil {
		return nil, err
	}
	if in.OldString == "" {
		return nil, fmt.Errorf("%w: old_string must not be empty", tools.ErrInvalidArguments)
	}

	if err := h.ledger.ValidateEditable(in.Path, in.Atime); err != nil {
		return nil, err
	}
	_, content, err := h.ledger.Read(in.Path)
	if err != nil {
		return nil, err
	}

	switch strings.Count(string(content), in.OldString) {
	case 0:
		return nil, ErrOldStringNotFound
	case 1:
	default:
		return nil, ErrOldStringNotUnique
	}

	updated := strings.Replace(string(content), in.OldString, in.NewString, 1)
	mtime, err := h.ledger.Write(in.Path, []byte(updated))
	if err != nil {
		return nil, err
	}
	return &tools.Result{
		Text: "Success!",
		Meta: map[string]any{"mtime": mtime},
	}, nil
}

// GlobProjectFiles returns matching paths relative to the root as a JSON array.
func (h *fileHandlers) GlobProjectFiles(_ context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[globArgs](args)
	if err != nil {
		return nil, err
	}
	if err := checkPattern(in.Pattern); err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(h.ledger.Root()), in.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern: %v", tools.ErrInvalidArguments, err)
	}
	if matches == nil {
		matches = []string{}
	}
	return jsonResult(matches)
}
