package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters/base"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/literal"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

const driverSqlite = "sqlite"

// AdapterType идентификатор SQLite адаптера
const AdapterType = "sqlite"

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter представляет адаптер для работы с SQLite.
// Объявленные типы колонок должны входить в каталог типов MySQL.
type Adapter struct {
	db *sql.DB
}

// Connect устанавливает подключение к SQLite
// Реализует интерфейс adapters.Adapter
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := sql.Open(driverSqlite, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем подключение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dumperr.Connection("ping sqlite", err)
	}

	a.db = db
	return nil
}

// Close закрывает соединение с БД
// Реализует интерфейс adapters.Adapter
func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping проверяет доступность БД
// Реализует интерфейс adapters.Adapter
func (a *Adapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.db.PingContext(ctx)
}

// GetDatabaseType возвращает тип СУБД
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion возвращает версию SQLite
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	err := a.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return "SQLite " + version, nil
}

// DB возвращает *sql.DB для прямого доступа (helper метод)
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// ListTables возвращает таблицы и представления из sqlite_master
func (a *Adapter) ListTables(ctx context.Context) ([]schema.Table, error) {
	query := `
		SELECT name, type
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dumperr.Connection("list tables", err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, schema.Table{Name: name, IsView: kind == "view"})
	}

	return tables, rows.Err()
}

// LoadColumns читает колонки через PRAGMA table_info
func (a *Adapter) LoadColumns(ctx context.Context, table *schema.Table) error {
	rows, err := a.db.QueryContext(ctx, "PRAGMA table_info("+schema.QuoteIdent(table.Name)+")")
	if err != nil {
		return dumperr.Connection("table_info "+table.Name, err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}

		col, err := schema.NewColumn(name, declType, notNull == 0, cid+1)
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

// ShowCreate возвращает DDL из sqlite_master
func (a *Adapter) ShowCreate(ctx context.Context, table *schema.Table) (string, error) {
	var ddl string
	err := a.db.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE name = ?", table.Name).Scan(&ddl)
	if err != nil {
		return "", dumperr.Connection("show create "+table.Name, err)
	}
	return ddl, nil
}

// ListTriggers возвращает триггеры из sqlite_master
func (a *Adapter) ListTriggers(ctx context.Context) ([]adapters.Routine, error) {
	rows, err := base.ScanNamed(ctx, a.db,
		"SELECT name, tbl_name, sql FROM sqlite_master WHERE type = 'trigger' ORDER BY name")
	if err != nil {
		return nil, dumperr.Connection("list triggers", err)
	}

	routines := make([]adapters.Routine, 0, len(rows))
	for _, r := range rows {
		routines = append(routines, adapters.Routine{
			Name:  r["name"],
			Table: r["tbl_name"],
			DDL:   r["sql"],
		})
	}
	return routines, nil
}

// ListProcedures - в SQLite хранимых процедур нет
func (a *Adapter) ListProcedures(ctx context.Context) ([]adapters.Routine, error) {
	return nil, nil
}

// dataConn - выделенное соединение выгрузки данных.
// Lock открывает транзакцию чтения, Unlock ее завершает.
type dataConn struct {
	conn *sql.Conn
	hook literal.Hook
	inTx bool
}

// OpenData берет отдельное соединение и переводит его в режим только чтения
func (a *Adapter) OpenData(ctx context.Context, hook literal.Hook) (adapters.DataConn, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, dumperr.Connection("open data connection", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = 1"); err != nil {
		conn.Close()
		return nil, dumperr.Connection("set query_only", err)
	}
	return &dataConn{conn: conn, hook: hook}, nil
}

func (c *dataConn) Stream(ctx context.Context, table *schema.Table, where string, emit func(string) error) (int64, error) {
	return base.StreamRows(ctx, c.conn, table, base.SelectQuery(table, where), c.hook, emit)
}

func (c *dataConn) Lock(ctx context.Context, table *schema.Table) error {
	if c.inTx {
		return nil
	}
	if _, err := c.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return dumperr.Connection("lock "+table.Name, err)
	}
	c.inTx = true
	return nil
}

func (c *dataConn) Unlock(ctx context.Context) error {
	if !c.inTx {
		return nil
	}
	c.inTx = false
	if _, err := c.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return dumperr.Connection("unlock", err)
	}
	return nil
}

func (c *dataConn) Close() error {
	// Соединение возвращается в пул: снимаем режим только чтения
	c.conn.ExecContext(context.Background(), "PRAGMA query_only = 0")
	return c.conn.Close()
}
