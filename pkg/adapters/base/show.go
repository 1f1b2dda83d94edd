package base

import (
	"context"
	"database/sql"
	"fmt"
)

// Row - строка результата с доступом по имени колонки
type Row map[string]string

// ScanNamed выполняет запрос и возвращает строки как Row.
// NULL читается как пустая строка.
func ScanNamed(ctx context.Context, q Querier, query string, args ...any) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %q: %w", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	var result []Row
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = values[i].String
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// Pick возвращает первое непустое значение из перечисленных колонок
func (r Row) Pick(cols ...string) string {
	for _, c := range cols {
		if v := r[c]; v != "" {
			return v
		}
	}
	return ""
}
