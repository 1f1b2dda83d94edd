package mysql

import (
	"context"
	"database/sql"

	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters/base"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/literal"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// dataConn - выделенное соединение пула для выгрузки данных.
// LOCK TABLES действует в пределах сессии, поэтому все запросы идут через conn.
type dataConn struct {
	conn *sql.Conn
	hook literal.Hook
}

// OpenData берет из пула отдельное соединение для данных
func (a *Adapter) OpenData(ctx context.Context, hook literal.Hook) (adapters.DataConn, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, dumperr.Connection("open data connection", err)
	}
	return &dataConn{conn: conn, hook: hook}, nil
}

func (c *dataConn) Stream(ctx context.Context, table *schema.Table, where string, emit func(string) error) (int64, error) {
	return base.StreamRows(ctx, c.conn, table, base.SelectQuery(table, where), c.hook, emit)
}

func (c *dataConn) Lock(ctx context.Context, table *schema.Table) error {
	if _, err := c.conn.ExecContext(ctx, "LOCK TABLES "+schema.QuoteIdent(table.Name)+" READ"); err != nil {
		return dumperr.Connection("lock "+table.Name, err)
	}
	return nil
}

func (c *dataConn) Unlock(ctx context.Context) error {
	if _, err := c.conn.ExecContext(ctx, "UNLOCK TABLES"); err != nil {
		return dumperr.Connection("unlock tables", err)
	}
	return nil
}

func (c *dataConn) Close() error {
	return c.conn.Close()
}
