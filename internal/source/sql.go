package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers "sqlite"

	"orderdash/internal/engine"
)

// DefaultQuery reads the whole orders table.
const DefaultQuery = "SELECT * FROM orders"

// OpenSQL connects with one of the registered drivers ("sqlite", "pgx").
func OpenSQL(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return db, nil
}

// QuerySQL runs query and loads every result column into a store. SQL NULL
// becomes a null cell; column names are taken from the result set.
func QuerySQL(ctx context.Context, db *sqlx.DB, query string) (*engine.ColumnStore, error) {
	if query == "" {
		query = DefaultQuery
	}
	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	b := engine.NewBuilder(columns...)
	values := make([]string, len(columns))
	for rows.Next() {
		cells, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		for i, cell := range cells {
			values[i] = cellString(cell)
		}
		b.Append(values...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	return b.Build(), nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
