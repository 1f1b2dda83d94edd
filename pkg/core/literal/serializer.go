// Package literal превращает сырые значения драйвера в литералы SQL.
//
// Serializer вызывается драйверным слоем для каждого поля строки до того,
// как драйвер выполнит собственное преобразование значения. Категория
// колонки уже вычислена при интроспекции и здесь не пересчитывается.
package literal

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/wkb"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// Null - литерал NULL
const Null = "NULL"

// Field - доступ к сырому значению поля во время декодирования строки
type Field interface {
	// IsNull сообщает, что драйвер вернул NULL
	IsNull() bool
	// String возвращает текстовое представление значения без потерь
	String() string
	// Bytes возвращает сырые байты значения
	Bytes() []byte
}

// Hook - обработчик поля, устанавливаемый на соединение выгрузки данных
type Hook func(col *schema.Column, f Field) (string, error)

// Serializer формирует литералы SQL по категории колонки
type Serializer struct {
	// Wrap оборачивает BIT, HEX и GEOMETRY в маркер NOFORMAT_WRAP,
	// чтобы внешний форматтер не испортил их синтаксис
	Wrap bool
}

// NewSerializer создает сериализатор
func NewSerializer(wrap bool) *Serializer {
	return &Serializer{Wrap: wrap}
}

// Hook возвращает метод Value как обработчик поля
func (s *Serializer) Hook() Hook {
	return s.Value
}

// Value сериализует одно поле.
// NULL проверяется до выбора категории.
func (s *Serializer) Value(col *schema.Column, f Field) (string, error) {
	if f.IsNull() {
		return Null, nil
	}

	switch col.Category {
	case schema.CategoryNumber:
		return f.String(), nil

	case schema.CategoryString:
		return Escape(f.String()), nil

	case schema.CategoryBit:
		return s.wrap(Bit(f.Bytes(), col.Length)), nil

	case schema.CategoryHex:
		return s.wrap(Hex(f.Bytes())), nil

	case schema.CategoryGeometry:
		geom, err := wkb.Decode(f.Bytes())
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		return s.wrap(geom), nil

	default:
		return "", fmt.Errorf("%w: column %s has unknown category %s",
			dumperr.ErrCatalogDrift, col.Name, col.Category)
	}
}

// Tuple сериализует строку таблицы в "(v1,v2,...)".
// fields идут в порядке колонок таблицы.
func (s *Serializer) Tuple(table *schema.Table, fields []Field) (string, error) {
	var b strings.Builder
	if err := BuildTuple(&b, table, fields, s.Value); err != nil {
		return "", err
	}
	return b.String(), nil
}

// BuildTuple пишет в b кортеж строки, пропуская каждое поле через hook
func BuildTuple(b *strings.Builder, table *schema.Table, fields []Field, hook Hook) error {
	if len(fields) != len(table.Columns) {
		return fmt.Errorf("%w: table %s has %d columns, row has %d values",
			dumperr.ErrCatalogDrift, table.Name, len(table.Columns), len(fields))
	}

	b.WriteByte('(')
	for i := range table.Columns {
		v, err := hook(&table.Columns[i], fields[i])
		if err != nil {
			return fmt.Errorf("table %s: %w", table.Name, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(v)
	}
	b.WriteByte(')')
	return nil
}

func (s *Serializer) wrap(v string) string {
	if s.Wrap {
		return Wrap(v)
	}
	return v
}

// Bit формирует литерал b'...': каждый байт как 8 двоичных цифр,
// из результата берутся правые length цифр.
func Bit(raw []byte, length int) string {
	var b strings.Builder
	b.Grow(len(raw) * 8)
	for _, v := range raw {
		bits := strconv.FormatUint(uint64(v), 2)
		b.WriteString(strings.Repeat("0", 8-len(bits)))
		b.WriteString(bits)
	}

	digits := b.String()
	if length > 0 && length < len(digits) {
		digits = digits[len(digits)-length:]
	}
	return "b'" + digits + "'"
}

// Hex формирует литерал X'...' из байтов в нижнем регистре
func Hex(raw []byte) string {
	return "X'" + hex.EncodeToString(raw) + "'"
}

// RawField - значение, уже прочитанное драйвером в байты.
// nil означает NULL.
type RawField []byte

// IsNull реализует Field
func (r RawField) IsNull() bool { return r == nil }

// String реализует Field
func (r RawField) String() string { return string(r) }

// Bytes реализует Field
func (r RawField) Bytes() []byte { return r }
