// Package batch собирает сериализованные строки таблицы в многострочные INSERT.
//
// Состояния: накопление -> (очередь полна) -> сброс -> накопление ->
// ... -> (строки закончились) -> финальный сброс -> готово.
package batch

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
)

// EmitFunc принимает готовый оператор INSERT.
// Возврат из EmitFunc означает, что приемник принял текст.
type EmitFunc func(stmt string) error

// Batcher накапливает кортежи одной таблицы.
// Не потокобезопасен: принадлежит выгрузке одной таблицы.
type Batcher struct {
	prefix     string // INSERT INTO `t` (`a`,`b`) VALUES
	maxRows    int
	pending    []string
	emit       EmitFunc
	rows       int64
	statements int
	closed     bool
}

// New создает Batcher для таблицы.
// maxRows <= 0 трактуется как 1 (оператор на строку), а не как "без ограничения".
func New(table *schema.Table, maxRows int, emit EmitFunc) *Batcher {
	if maxRows < 1 {
		maxRows = 1
	}

	return &Batcher{
		prefix:  InsertPrefix(table),
		maxRows: maxRows,
		pending: make([]string, 0, maxRows),
		emit:    emit,
	}
}

// InsertPrefix строит начало оператора с полным упорядоченным списком колонок
func InsertPrefix(table *schema.Table) string {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = schema.QuoteIdent(c.Name)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES ", schema.QuoteIdent(table.Name), strings.Join(cols, ","))
}

// Add добавляет кортеж "(v1,...,vn)" и сбрасывает очередь, если она заполнена
func (b *Batcher) Add(tuple string) error {
	if b.closed {
		return fmt.Errorf("batcher is closed")
	}

	b.pending = append(b.pending, tuple)
	b.rows++

	if len(b.pending) >= b.maxRows {
		return b.flush()
	}
	return nil
}

// Close выполняет финальный сброс. Пустая очередь не порождает оператора.
func (b *Batcher) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.flush()
}

func (b *Batcher) flush() error {
	if len(b.pending) == 0 {
		return nil
	}

	stmt := b.prefix + strings.Join(b.pending, ",") + ";"

	// Очередь переиспользуется, уже сброшенные строки не удерживаются
	for i := range b.pending {
		b.pending[i] = ""
	}
	b.pending = b.pending[:0]

	if err := b.emit(stmt); err != nil {
		return err
	}
	b.statements++
	return nil
}

// Rows возвращает число принятых строк
func (b *Batcher) Rows() int64 {
	return b.rows
}

// Statements возвращает число сброшенных операторов
func (b *Batcher) Statements() int {
	return b.statements
}

// Pending возвращает размер текущей очереди
func (b *Batcher) Pending() int {
	return len(b.pending)
}
