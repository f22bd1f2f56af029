package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/ltm-go/pkg/core"
)

// DefaultSQLiteQuery reads the table kept by the legacy long-term memory extension.
const DefaultSQLiteQuery = "SELECT name, message, timestamp FROM long_term_memory"

// SQLiteRows reads turns from a legacy SQLite database, in row order.
//
// query must return three columns: speaker, text and a timestamp. The
// timestamp is read but not kept; the engine stamps records at storage time.
// An empty query uses DefaultSQLiteQuery. The database is opened read-only.
func SQLiteRows(ctx context.Context, dbPath, query string) ([]core.Turn, error) {
	if query == "" {
		query = DefaultSQLiteQuery
	}

	dsn := (&url.URL{Scheme: "file", Opaque: dbPath, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", dbPath, err)
	}
	defer func() { _ = rows.Close() }()

	var turns []core.Turn
	for rows.Next() {
		var (
			name, message sql.NullString
			timestamp     any
		)
		if err := rows.Scan(&name, &message, &timestamp); err != nil {
			return nil, fmt.Errorf("scan %s: %w", dbPath, err)
		}
		turns = append(turns, core.Turn{Speaker: name.String, Text: message.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", dbPath, err)
	}
	return turns, nil
}
