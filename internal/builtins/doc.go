// Package builtins provides the tools the gateway serves to agents.
//
// # Overview
//
// Every tool runs in the gateway process against the project it fronts.
// [All] returns them in listing order:
//
//   - project_eval: evaluate code with the configured interpreter, under a timeout
//   - execute_sql_query: run SQL against the application database (50 rows max)
//   - get_models: list database tables and columns
//   - get_logs: tail the application log, optionally filtered
//   - get_source_location: find where a Go symbol is declared, or a module's directory
//   - package_search: query the package index (cached)
//   - shell_eval: run a shell command in the project root
//   - run_linter: run the configured linter
//   - list_project_files: files tracked by git plus untracked, unignored files
//   - grep: search file contents with ripgrep or an in-process fallback
//
// File-system tools, tagged [tools.TagFileSystem] and only listed when the
// client passes include_fs_tools=true:
//
//   - read_project_file: read a file; returns its mtime in _meta
//   - write_project_file: create or overwrite a file
//   - edit_project_file: replace one unique occurrence of a string
//   - glob_project_files: match files against a ** glob
//
// # Staleness
//
// write_project_file and edit_project_file accept the mtime returned by a
// previous read as atime. When it is present and the file on disk is newer,
// the change is refused with files.ErrStaleRead and the agent must read the
// file again.
//
// # Tool Implementation
//
// Tools are grouped into handler structs that hold only the collaborators
// they need from [Deps]. Each handler has the signature:
//
//	func(ctx context.Context, args json.RawMessage) (*tools.Result, error)
//
// Arguments have been validated against the tool's schema before the handler runs.
package builtins
