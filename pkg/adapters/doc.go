/*
Package adapters предоставляет интерфейс интроспекции схемы и выгрузки данных
для различных СУБД.

# Архитектура двухуровневого адаптера

	┌─────────────────────────────────────────┐
	│    Dump engine (pkg/dump)               │
	│  - schema.Table / schema.Column         │
	│  - literal.Hook                         │
	│  - batch.Batcher                        │
	└─────────────────┬───────────────────────┘
	                  │
	┌─────────────────▼───────────────────────┐
	│  Level 1: Adapter / DataConn            │  ← pkg/adapters/adapter.go
	│                                         │
	│  ListTables, LoadColumns, ShowCreate    │
	│  ListTriggers, ListProcedures           │
	│  OpenData(ctx, hook) → DataConn         │
	└─────────────────┬───────────────────────┘
	                  │
	        ┌─────────┴─────────┐
	        │                   │
	┌───────▼────┐        ┌─────▼──────┐
	│ MySQL      │        │ SQLite     │     ← Level 2: Specific
	│ Adapter    │        │ Adapter    │        Implementations
	└────────────┘        └────────────┘

# Соединения

Адаптер держит пул схемы. Выгрузка данных идет через отдельное соединение
(DataConn), на котором установлен обработчик полей literal.Hook: каждое поле
строки попадает в обработчик до любого преобразования драйвером.
DataConn используется строго последовательно, одна таблица за раз.

# Использование

	import (
	    "github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	    _ "github.com/ruslano69/tdtp-mysqldump/pkg/adapters/mysql"
	)

	adapter, err := adapters.New(ctx, adapters.Config{
	    Type:     "mysql",
	    User:     "root",
	    Password: "secret",
	    Database: "shop",
	})
	if err != nil {
	    return err
	}
	defer adapter.Close(ctx)

	tables, err := adapter.ListTables(ctx)

# Ошибки

Ошибки соединения оборачиваются в dumperr.ErrConnection и могут повторяться.
Тип колонки вне каталога дает dumperr.ErrCatalogDrift при LoadColumns.
*/
package adapters
