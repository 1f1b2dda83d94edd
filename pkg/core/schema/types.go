package schema

import (
	"fmt"
	"strings"
)

// Category - категория сериализации значения колонки
type Category int

// Категории сериализации. Набор закрыт: каждая колонка относится ровно к одной.
const (
	CategoryNumber Category = iota + 1
	CategoryString
	CategoryHex
	CategoryBit
	CategoryGeometry
)

// String возвращает имя категории
func (c Category) String() string {
	switch c {
	case CategoryNumber:
		return "NUMBER"
	case CategoryString:
		return "STRING"
	case CategoryHex:
		return "HEX"
	case CategoryBit:
		return "BIT"
	case CategoryGeometry:
		return "GEOMETRY"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Column описывает колонку таблицы
type Column struct {
	Name     string   // Имя колонки
	RawType  string   // Тип как его вернул каталог БД, например "int(10) unsigned"
	Type     string   // Нормализованный тип, например "int"
	Category Category // Категория сериализации, вычисляется один раз при интроспекции
	Nullable bool
	Position int // Порядковый номер в каталоге (с 1)
	Length   int // Объявленная длина (для bit - число бит)
}

// Table описывает таблицу или представление.
// После интроспекции структура не изменяется.
type Table struct {
	Name    string
	IsView  bool
	Columns []Column
}

// ColumnNames возвращает имена колонок в порядке каталога
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column возвращает колонку по имени
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Kind возвращает "VIEW" или "TABLE"
func (t *Table) Kind() string {
	if t.IsView {
		return "VIEW"
	}
	return "TABLE"
}

// QuoteIdent заключает идентификатор в обратные кавычки MySQL
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
