package base

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-mysqldump/pkg/core/literal"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// Querier - *sql.DB, *sql.Conn или *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SelectQuery строит SELECT по колонкам таблицы в порядке каталога.
// where добавляется как есть.
func SelectQuery(table *schema.Table, where string) string {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = schema.QuoteIdent(c.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ","), schema.QuoteIdent(table.Name))
	if where = strings.TrimSpace(where); where != "" {
		query += " WHERE " + where
	}
	return query
}

// StreamRows выполняет запрос и передает каждую строку в emit в виде кортежа.
// Строки не накапливаются: следующая читается после возврата emit.
// Отмена контекста проверяется между строками.
func StreamRows(ctx context.Context, q Querier, table *schema.Table, query string,
	hook literal.Hook, emit func(tuple string) error) (int64, error) {
	if len(table.Columns) == 0 {
		return 0, fmt.Errorf("table %s has no columns loaded", table.Name)
	}

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return 0, dumperr.Connection("select "+table.Name, err)
	}
	defer rows.Close()

	n := len(table.Columns)
	fields := make([]Field, n)
	dest := make([]any, n)
	values := make([]literal.Field, n)
	for i := range fields {
		dest[i] = &fields[i]
		values[i] = &fields[i]
	}

	var (
		count int64
		b     strings.Builder
	)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		if err := rows.Scan(dest...); err != nil {
			return count, fmt.Errorf("failed to scan row %d of %s: %w", count+1, table.Name, err)
		}

		b.Reset()
		if err := literal.BuildTuple(&b, table, values, hook); err != nil {
			return count, err
		}

		if err := emit(b.String()); err != nil {
			return count, err
		}
		count++
	}

	if err := rows.Err(); err != nil {
		return count, dumperr.Connection("read "+table.Name, err)
	}

	return count, nil
}
