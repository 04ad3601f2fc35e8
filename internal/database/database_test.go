// ABOUTME: Tests for the tool database handle
// ABOUTME: Uses the pure-Go sqlite driver against a temp file

package database

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "app.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Query(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, bio BLOB)`)
	require.NoError(t, err)
	_, err = db.Query(ctx, `CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), title TEXT)`)
	require.NoError(t, err)
	return db
}

func TestOpen_NotConfigured(t *testing.T) {
	_, err := Open(context.Background(), "sqlite", "", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestQuery_SelectWithArguments(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	res, err := db.Query(ctx, "INSERT INTO users (email, bio) VALUES (?, ?)", "a@example.com", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowCount)

	res, err = db.Query(ctx, "SELECT id, email, bio FROM users WHERE email = ?", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email", "bio"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "a@example.com", res.Rows[0][1])
	assert.Equal(t, "hi", res.Rows[0][2])
	assert.Equal(t, 1, res.RowCount)
	assert.Equal(t, "SQLite", res.Adapter)
}

func TestQuery_CapsRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_, err := db.Query(ctx, "INSERT INTO users (email) VALUES (?)", fmt.Sprintf("u%d@example.com", i))
		require.NoError(t, err)
	}

	res, err := db.Query(ctx, "SELECT email FROM users;")
	require.NoError(t, err)
	assert.Len(t, res.Rows, ResultLimit)

	res, err = db.Query(ctx, "SELECT email FROM users LIMIT 5 OFFSET 55")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
}

func TestQuery_Error(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Query(context.Background(), "SELECT * FROM nope")
	assert.Error(t, err)
}

func TestTables(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tables, err := db.Tables(ctx, "")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "posts", tables[0].Name)
	assert.Equal(t, "users", tables[1].Name)

	users := tables[1]
	require.Len(t, users.Columns, 3)
	assert.Equal(t, Column{Name: "id", Type: "INTEGER", PrimaryKey: true}, users.Columns[0])
	assert.Equal(t, Column{Name: "email", Type: "TEXT", NotNull: true}, users.Columns[1])

	only, err := db.Tables(ctx, "posts")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "posts", only[0].Name)
}

func TestTables_QuotedName(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Query(ctx, `CREATE TABLE "odd""name" (id INTEGER PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)

	tables, err := db.Tables(ctx, `odd"name`)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, `odd"name`, tables[0].Name)
	require.Len(t, tables[0].Columns, 2)
	assert.Equal(t, "label", tables[0].Columns[1].Name)
}

func TestEnsureRowLimit(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT * FROM users", "SELECT * FROM users LIMIT 50"},
		{"SELECT * FROM users;", "SELECT * FROM users LIMIT 50;"},
		{"  SELECT 1  ", "SELECT 1 LIMIT 50"},
		{"SELECT * FROM users LIMIT 10", "SELECT * FROM users LIMIT 10"},
		{"select * from users limit 10", "select * from users limit 10"},
		{"PRAGMA table_info(users)", "PRAGMA table_info(users)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EnsureRowLimit(tt.in))
		})
	}
}
