// ABOUTME: Database tools: execute_sql_query and get_models
// ABOUTME: Both report database.ErrNotConfigured when no DSN was set

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/tidewave-gateway/internal/database"
	"github.com/2389/tidewave-gateway/internal/tools"
)

type sqlQueryArgs struct {
	Query     string `json:"query" jsonschema_description:"The SQL query to execute. Use ? placeholders for arguments"`
	Arguments []any  `json:"arguments,omitempty" jsonschema_description:"Values bound to the query's placeholders, in order"`
}

type getModelsArgs struct {
	Table string `json:"table,omitempty" jsonschema_description:"Only describe this table"`
}

type databaseHandlers struct {
	db *database.DB
}

// DatabaseTools returns execute_sql_query and get_models.
func DatabaseTools(d Deps) []tools.Tool {
	h := &databaseHandlers{db: d.DB}

	return []tools.Tool{
		&tools.Func{
			Def: tools.Descriptor{
				Name: "execute_sql_query",
				Description: "Executes the given SQL query against the application database and returns " +
					"columns, rows, row_count, adapter and database as JSON.\n\n" +
					"Output is limited to 50 rows per call. Use LIMIT and OFFSET to page through larger results, " +
					"and select only the columns you need.",
				InputSchema: tools.SchemaFor(&sqlQueryArgs{}),
			},
			Handler: h.ExecuteSQLQuery,
		},
		&tools.Func{
			Def: tools.Descriptor{
				Name:        "get_models",
				Description: "Returns the database tables of the application with their columns.",
				InputSchema: tools.SchemaFor(&getModelsArgs{}),
			},
			Handler: h.GetModels,
		},
	}
}

// ExecuteSQLQuery runs a query with positional arguments.
func (h *databaseHandlers) ExecuteSQLQuery(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[sqlQueryArgs](args)
	if err != nil {
		return nil, err
	}
	if h.db == nil {
		return nil, database.ErrNotConfigured
	}

	res, err := h.db.Query(ctx, in.Query, in.Arguments...)
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}

// GetModels lists tables as a bullet list, one line per table.
func (h *databaseHandlers) GetModels(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	in, err := tools.Decode[getModelsArgs](args)
	if err != nil {
		return nil, err
	}
	if h.db == nil {
		return nil, database.ErrNotConfigured
	}

	tables, err := h.db.Tables(ctx, in.Table)
	if err != nil {
		return nil, err
	}
	if in.Table != "" && len(tables) == 0 {
		return nil, fmt.Errorf("table %s not found", in.Table)
	}

	var b strings.Builder
	for _, t := range tables {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			col := c.Name + " " + c.Type
			if c.PrimaryKey {
				col += " PRIMARY KEY"
			} else if c.NotNull {
				col += " NOT NULL"
			}
			cols = append(cols, strings.TrimSpace(col))
		}
		fmt.Fprintf(&b, "* %s (%s)\n", t.Name, strings.Join(cols, ", "))
	}
	return tools.Text(strings.TrimRight(b.String(), "\n")), nil
}
