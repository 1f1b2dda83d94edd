package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// AdapterType идентификатор MySQL адаптера
const AdapterType = "mysql"

var _ adapters.Adapter = (*Adapter)(nil)

// Adapter реализует adapters.Adapter для MySQL
type Adapter struct {
	db     *sql.DB
	config adapters.Config
}

func init() {
	// Регистрируем MySQL адаптер в фабрике
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// BuildDSN строит строку подключения.
// parseTime всегда выключен: значения DATETIME должны приходить текстом сервера.
func BuildDSN(cfg adapters.Config) (string, error) {
	if cfg.DSN != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("%w: invalid mysql dsn: %v", dumperr.ErrConfig, err)
		}
		parsed.ParseTime = false
		return parsed.FormatDSN(), nil
	}

	cfg = cfg.WithDefaults()

	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Database
	c.ParseTime = false
	c.TLSConfig = cfg.TLS
	c.Params = map[string]string{"charset": cfg.Charset}
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}

	return c.FormatDSN(), nil
}

// Connect подключается к MySQL базе данных
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dsn, err := BuildDSN(cfg)
	if err != nil {
		return err
	}

	// Открываем соединение с MySQL
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dumperr.Connection("ping mysql", err)
	}

	a.db = db
	a.config = cfg

	return nil
}

// Close закрывает соединение с базой данных
func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping проверяет соединение с базой данных
func (a *Adapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("adapter not connected")
	}
	if err := a.db.PingContext(ctx); err != nil {
		return dumperr.Connection("ping mysql", err)
	}
	return nil
}

// GetDatabaseType возвращает тип адаптера
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion возвращает версию MySQL
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	err := a.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}
