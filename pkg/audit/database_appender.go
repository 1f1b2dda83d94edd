package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// columns - порядок колонок для вставки и чтения
const columns = `id, ts, dump_id, operation, status, actor, database_name, source, target,
	object, rows_count, bytes_count, duration_ms, error_class, error, metadata`

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DatabaseAppenderConfig - настройки журнала в SQL базе
type DatabaseAppenderConfig struct {
	// DB - открытое подключение; appender его не закрывает
	DB *sql.DB

	// TableName - таблица журнала (по умолчанию audit_log)
	TableName string

	Level Level

	// BatchSize > 0 копит записи и пишет их одной транзакцией
	BatchSize int

	// AutoCreateTable создает таблицу и индексы
	AutoCreateTable bool
}

// DatabaseAppender пишет журнал в таблицу и позволяет его запрашивать.
// Время хранится в наносекундах Unix, чтобы сравнение не зависело от драйвера.
type DatabaseAppender struct {
	db    *sql.DB
	table string
	level Level
	batch int

	mu      sync.Mutex
	pending []*Entry
	insert  *sql.Stmt
}

// NewDatabaseAppender проверяет имя таблицы, создает ее при необходимости
// и готовит INSERT
func NewDatabaseAppender(cfg DatabaseAppenderConfig) (*DatabaseAppender, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if cfg.TableName == "" {
		cfg.TableName = "audit_log"
	}
	if !tableNameRe.MatchString(cfg.TableName) {
		return nil, fmt.Errorf("invalid audit table name %q", cfg.TableName)
	}

	da := &DatabaseAppender{
		db:    cfg.DB,
		table: cfg.TableName,
		level: cfg.Level,
		batch: cfg.BatchSize,
	}

	if cfg.AutoCreateTable {
		if err := da.createTable(); err != nil {
			return nil, fmt.Errorf("failed to create audit table: %w", err)
		}
	}

	stmt, err := da.db.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", da.table, columns))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare audit insert: %w", err)
	}
	da.insert = stmt
	return da, nil
}

func (da *DatabaseAppender) createTable() error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		ts BIGINT NOT NULL,
		dump_id VARCHAR(64),
		operation VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		actor VARCHAR(255),
		database_name VARCHAR(255),
		source VARCHAR(255),
		target VARCHAR(1024),
		object VARCHAR(255),
		rows_count BIGINT DEFAULT 0,
		bytes_count BIGINT DEFAULT 0,
		duration_ms BIGINT DEFAULT 0,
		error_class VARCHAR(32),
		error TEXT,
		metadata TEXT
	)`, da.table)
	if _, err := da.db.Exec(ddl); err != nil {
		return err
	}

	for _, col := range []string{"ts", "dump_id", "operation", "error_class"} {
		q := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", da.table, col, da.table, col)
		if _, err := da.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Append пишет запись сразу или копит до BatchSize
func (da *DatabaseAppender) Append(ctx context.Context, entry *Entry) error {
	e := entry.Redact(da.level)

	da.mu.Lock()
	defer da.mu.Unlock()

	if da.batch <= 0 {
		_, err := da.insert.ExecContext(ctx, args(e)...)
		return err
	}

	da.pending = append(da.pending, e)
	if len(da.pending) < da.batch {
		return nil
	}
	return da.flushLocked(ctx)
}

func args(e *Entry) []any {
	meta := ""
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = string(b)
		}
	}
	return []any{
		e.ID, e.Timestamp.UnixNano(), e.DumpID, string(e.Operation), string(e.Status),
		e.Actor, e.Database, e.Source, e.Target, e.Object,
		e.Rows, e.Bytes, e.Duration.Milliseconds(), e.ErrorClass, e.Error, meta,
	}
}

func (da *DatabaseAppender) flushLocked(ctx context.Context) error {
	if len(da.pending) == 0 {
		return nil
	}

	tx, err := da.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit batch: %w", err)
	}
	stmt := tx.StmtContext(ctx, da.insert)
	for _, e := range da.pending {
		if _, err := stmt.ExecContext(ctx, args(e)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert audit entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit batch: %w", err)
	}
	da.pending = da.pending[:0]
	return nil
}

// Flush пишет накопленные записи
func (da *DatabaseAppender) Flush() error {
	da.mu.Lock()
	defer da.mu.Unlock()
	return da.flushLocked(context.Background())
}

// Close пишет остаток и закрывает подготовленный INSERT
func (da *DatabaseAppender) Close() error {
	if err := da.Flush(); err != nil {
		return err
	}
	da.mu.Lock()
	defer da.mu.Unlock()
	if da.insert == nil {
		return nil
	}
	err := da.insert.Close()
	da.insert = nil
	return err
}

// QueryFilter - условия выборки журнала. Пустые поля не фильтруют.
type QueryFilter struct {
	DumpID     string
	Operation  Operation
	Status     Status
	Object     string
	ErrorClass string
	Since      time.Time
	Until      time.Time
	Limit      int
}

func (f QueryFilter) where() (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	add := func(cond string, v any) {
		b.WriteString(" AND " + cond)
		args = append(args, v)
	}

	if f.DumpID != "" {
		add("dump_id = ?", f.DumpID)
	}
	if f.Operation != "" {
		add("operation = ?", string(f.Operation))
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.Object != "" {
		add("object = ?", f.Object)
	}
	if f.ErrorClass != "" {
		add("error_class = ?", f.ErrorClass)
	}
	if !f.Since.IsZero() {
		add("ts >= ?", f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		add("ts <= ?", f.Until.UnixNano())
	}
	return b.String(), args
}

// Query возвращает записи, новые первыми
func (da *DatabaseAppender) Query(ctx context.Context, f QueryFilter) ([]*Entry, error) {
	where, params := f.where()
	q := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s ORDER BY ts DESC", columns, da.table, where)
	if f.Limit > 0 {
		q += " LIMIT ?"
		params = append(params, f.Limit)
	}

	rows, err := da.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e                 Entry
			ts, durMs         int64
			op, status, meta  string
			dumpID, actor, db sql.NullString
			src, tgt, obj     sql.NullString
			class, msg        sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &dumpID, &op, &status, &actor, &db, &src, &tgt, &obj,
			&e.Rows, &e.Bytes, &durMs, &class, &msg, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		e.Timestamp = time.Unix(0, ts)
		e.Operation, e.Status = Operation(op), Status(status)
		e.DumpID, e.Actor, e.Database = dumpID.String, actor.String, db.String
		e.Source, e.Target, e.Object = src.String, tgt.String, obj.String
		e.ErrorClass, e.Error = class.String, msg.String
		e.Duration = time.Duration(durMs) * time.Millisecond
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &e.Metadata)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, nil
}

// Count - число записей по фильтру (Limit не учитывается)
func (da *DatabaseAppender) Count(ctx context.Context, f QueryFilter) (int64, error) {
	where, params := f.where()
	var n int64
	err := da.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", da.table, where), params...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return n, nil
}

// DeleteOlderThan удаляет записи старше before и возвращает их число
func (da *DatabaseAppender) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := da.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE ts < ?", da.table), before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}
	return res.RowsAffected()
}
