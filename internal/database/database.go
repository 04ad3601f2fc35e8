// ABOUTME: SQL access for the query and model tools, backed by the sqlite drivers
// ABOUTME: Caps result rows and introspects tables through sqlite_master and PRAGMA table_info

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"
)

// ResultLimit is the maximum number of rows returned from one query.
const ResultLimit = 50

// ErrNotConfigured is returned when no DSN was configured.
var ErrNotConfigured = errors.New("database is not configured")

// DB wraps a database handle for the tools.
type DB struct {
	db     *sql.DB
	driver string
	dsn    string
	logger *slog.Logger
}

// QueryResult is the shape returned by execute_sql_query.
type QueryResult struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
	Adapter  string   `json:"adapter"`
	Database string   `json:"database"`
}

// Table describes one table and its columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column describes one table column.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

// Open opens the database with driver ("sqlite" or "sqlite3") and verifies the connection.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "database")

	if dsn == "" {
		return nil, ErrNotConfigured
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	logger.Info("database opened", "driver", driver, "dsn", dsn)
	return &DB{db: db, driver: driver, dsn: dsn, logger: logger}, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Adapter names the database engine.
func (d *DB) Adapter() string {
	return "SQLite"
}

// Query runs query with positional args. Row-returning statements are capped
// at ResultLimit rows; other statements report the affected row count.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	if !returnsRows(query) {
		res, err := d.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("executing query: %w", err)
		}
		affected, _ := res.RowsAffected()
		return &QueryResult{
			Columns:  []string{},
			Rows:     [][]any{},
			RowCount: int(affected),
			Adapter:  d.Adapter(),
			Database: d.dsn,
		}, nil
	}

	rows, err := d.db.QueryContext(ctx, EnsureRowLimit(query), args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := &QueryResult{
		Columns:  columns,
		Rows:     [][]any{},
		Adapter:  d.Adapter(),
		Database: d.dsn,
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		result.RowCount++
		if len(result.Rows) < ResultLimit {
			result.Rows = append(result.Rows, values)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return result, nil
}

// Tables lists user tables with their columns, optionally only the named one.
func (d *DB) Tables(ctx context.Context, only string) ([]Table, error) {
	query := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'"
	var args []any
	if only != "" {
		query += " AND name = ?"
		args = append(args, only)
	}
	query += " ORDER BY name"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := d.columns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func (d *DB) columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := d.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid     int
			col     Column
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		col.NotNull = notNull != 0
		col.PrimaryKey = pk != 0
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// quoteIdent quotes name as an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var rowStatement = regexp.MustCompile(`(?i)^\s*(select|with|pragma|values|explain)\b`)

func returnsRows(query string) bool {
	return rowStatement.MatchString(query)
}

// EnsureRowLimit appends LIMIT 50 unless the query already has a LIMIT clause
// or is a PRAGMA. A trailing semicolon is kept at the end.
func EnsureRowLimit(query string) string {
	upper := strings.ToUpper(query)
	if strings.Contains(upper, "LIMIT ") || strings.HasPrefix(strings.TrimSpace(upper), "PRAGMA") {
		return query
	}

	trimmed := strings.TrimSpace(query)
	limit := fmt.Sprintf(" LIMIT %d", ResultLimit)
	if strings.HasSuffix(trimmed, ";") {
		return strings.TrimSuffix(trimmed, ";") + limit + ";"
	}
	return trimmed + limit
}
