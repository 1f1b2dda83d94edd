package mysql

import (
	"context"
	"fmt"

	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters/base"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// ListTables возвращает все таблицы и представления текущей БД
func (a *Adapter) ListTables(ctx context.Context) ([]schema.Table, error) {
	rows, err := a.db.QueryContext(ctx, "SHOW FULL TABLES")
	if err != nil {
		return nil, dumperr.Connection("show tables", err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, schema.Table{
			Name:   name,
			IsView: kind == "VIEW",
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

// LoadColumns читает колонки таблицы из information_schema
func (a *Adapter) LoadColumns(ctx context.Context, table *schema.Table) error {
	query := `
		SELECT
			column_name,
			column_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := a.db.QueryContext(ctx, query, table.Name)
	if err != nil {
		return dumperr.Connection("query columns of "+table.Name, err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			name       string
			columnType string
			isNullable string
			position   int
		)
		if err := rows.Scan(&name, &columnType, &isNullable, &position); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}

		col, err := schema.NewColumn(name, columnType, isNullable == "YES", position)
		if err != nil {
			return fmt.Errorf("table %s: %w", table.Name, err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(columns) == 0 {
		return fmt.Errorf("table %s not found or has no columns", table.Name)
	}

	table.Columns = columns
	return nil
}

// ShowCreate возвращает CREATE TABLE или CREATE VIEW
func (a *Adapter) ShowCreate(ctx context.Context, table *schema.Table) (string, error) {
	query := fmt.Sprintf("SHOW CREATE %s %s", table.Kind(), schema.QuoteIdent(table.Name))

	rows, err := base.ScanNamed(ctx, a.db, query)
	if err != nil {
		return "", dumperr.Connection("show create "+table.Name, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no DDL returned for %s", table.Name)
	}

	return rows[0].Pick("Create Table", "Create View"), nil
}

// ListTriggers возвращает триггеры текущей БД
func (a *Adapter) ListTriggers(ctx context.Context) ([]adapters.Routine, error) {
	list, err := base.ScanNamed(ctx, a.db, "SHOW TRIGGERS")
	if err != nil {
		return nil, dumperr.Connection("show triggers", err)
	}

	routines := make([]adapters.Routine, 0, len(list))
	for _, r := range list {
		name := r["Trigger"]
		ddl, err := base.ScanNamed(ctx, a.db, "SHOW CREATE TRIGGER "+schema.QuoteIdent(name))
		if err != nil {
			return nil, dumperr.Connection("show create trigger "+name, err)
		}
		if len(ddl) == 0 {
			continue
		}
		routines = append(routines, adapters.Routine{
			Name:  name,
			Table: r["Table"],
			DDL:   ddl[0]["SQL Original Statement"],
		})
	}
	return routines, nil
}

// ListProcedures возвращает хранимые процедуры текущей БД.
// Процедуры без доступного тела (нет привилегий) пропускаются.
func (a *Adapter) ListProcedures(ctx context.Context) ([]adapters.Routine, error) {
	list, err := base.ScanNamed(ctx, a.db, "SHOW PROCEDURE STATUS WHERE Db = DATABASE()")
	if err != nil {
		return nil, dumperr.Connection("show procedure status", err)
	}

	routines := make([]adapters.Routine, 0, len(list))
	for _, r := range list {
		name := r["Name"]
		ddl, err := base.ScanNamed(ctx, a.db, "SHOW CREATE PROCEDURE "+schema.QuoteIdent(name))
		if err != nil {
			return nil, dumperr.Connection("show create procedure "+name, err)
		}
		if len(ddl) == 0 || ddl[0]["Create Procedure"] == "" {
			continue
		}
		routines = append(routines, adapters.Routine{
			Name: name,
			DDL:  ddl[0]["Create Procedure"],
		})
	}
	return routines, nil
}
