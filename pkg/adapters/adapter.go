package adapters

import (
	"context"
	"time"

	"github.com/ruslano69/tdtp-mysqldump/pkg/core/literal"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// Значения подключения по умолчанию
const (
	DefaultHost    = "localhost"
	DefaultPort    = 3306
	DefaultCharset = "utf8mb4"
)

// Config - конфигурация подключения к БД
type Config struct {
	// Type - тип СУБД: "mysql", "sqlite"
	Type string

	Host     string
	Port     int
	Database string
	User     string
	Password string

	// Charset - кодировка соединения (MySQL)
	Charset string

	// TLS - режим TLS драйвера MySQL: "", "true", "skip-verify", "preferred"
	TLS string

	// DSN - готовая строка подключения. Если задана, остальные поля
	// используются только для справки (имя БД в логах).
	// Примеры:
	//   MySQL:  "user:pass@tcp(localhost:3306)/shop"
	//   SQLite: "file:app.db"
	DSN string

	// Timeout - таймаут установки соединения
	Timeout time.Duration
}

// WithDefaults заполняет незаданные поля значениями по умолчанию
func (c Config) WithDefaults() Config {
	if c.Type == "" {
		c.Type = "mysql"
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Charset == "" {
		c.Charset = DefaultCharset
	}
	return c
}

// Validate проверяет обязательные параметры подключения.
// Пустой пароль допустим.
func (c Config) Validate() error {
	if c.DSN != "" {
		return nil
	}
	if c.Type == "sqlite" {
		return dumperr.ErrMissingConnectionConfig
	}
	if c.Host == "" {
		return dumperr.ErrMissingConnectionHost
	}
	if c.User == "" {
		return dumperr.ErrMissingConnectionUser
	}
	if c.Database == "" {
		return dumperr.ErrMissingConnectionDatabase
	}
	return nil
}

// Adapter - интерфейс интроспекции схемы и выгрузки данных.
// Реализуется каждым адаптером СУБД (MySQL, SQLite).
// Соединения принадлежат вызывающему: Close освобождает все.
type Adapter interface {
	// ========== Lifecycle ==========

	// Connect устанавливает подключение к БД
	Connect(ctx context.Context, cfg Config) error

	// Close закрывает подключение к БД
	Close(ctx context.Context) error

	// Ping проверяет доступность БД
	Ping(ctx context.Context) error

	// ========== Schema ==========

	// ListTables возвращает все таблицы и представления БД (без колонок)
	ListTables(ctx context.Context) ([]schema.Table, error)

	// LoadColumns заполняет колонки таблицы в порядке ordinal position
	LoadColumns(ctx context.Context, table *schema.Table) error

	// ShowCreate возвращает DDL таблицы или представления
	ShowCreate(ctx context.Context, table *schema.Table) (string, error)

	// ListTriggers возвращает триггеры с их DDL
	ListTriggers(ctx context.Context) ([]Routine, error)

	// ListProcedures возвращает хранимые процедуры с их DDL
	ListProcedures(ctx context.Context) ([]Routine, error)

	// ========== Data ==========

	// OpenData открывает отдельное соединение выгрузки данных
	// с установленным обработчиком полей
	OpenData(ctx context.Context, hook literal.Hook) (DataConn, error)

	// ========== Metadata ==========

	// GetDatabaseVersion возвращает версию СУБД
	GetDatabaseVersion(ctx context.Context) (string, error)

	// GetDatabaseType возвращает тип СУБД: "mysql", "sqlite"
	GetDatabaseType() string
}

// DataConn - соединение выгрузки данных.
// Используется только последовательно: одна таблица за раз.
type DataConn interface {
	// Stream выполняет SELECT по колонкам таблицы и передает каждую строку
	// в emit в виде кортежа "(v1,...,vn)". Следующая строка читается только
	// после возврата emit. Возвращает число переданных строк.
	Stream(ctx context.Context, table *schema.Table, where string, emit func(tuple string) error) (int64, error)

	// Lock блокирует таблицу на чтение до Unlock
	Lock(ctx context.Context, table *schema.Table) error

	// Unlock снимает блокировки
	Unlock(ctx context.Context) error

	// Close возвращает соединение
	Close() error
}

// Routine - триггер или хранимая процедура
type Routine struct {
	Name  string
	Table string // Таблица триггера. Пусто для процедур.
	DDL   string // CREATE ... как его вернула СУБД
}
