package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// catalog - закрытый каталог типов MySQL.
// Классификация - проверка принадлежности, а не сопоставление по шаблону.
var catalog = map[string]Category{
	// NUMBER
	"integer":   CategoryNumber,
	"int":       CategoryNumber,
	"smallint":  CategoryNumber,
	"tinyint":   CategoryNumber,
	"mediumint": CategoryNumber,
	"bigint":    CategoryNumber,
	"decimal":   CategoryNumber,
	"numeric":   CategoryNumber,
	"float":     CategoryNumber,
	"double":    CategoryNumber,
	"real":      CategoryNumber,

	// STRING
	"date":       CategoryString,
	"datetime":   CategoryString,
	"timestamp":  CategoryString,
	"time":       CategoryString,
	"year":       CategoryString,
	"char":       CategoryString,
	"varchar":    CategoryString,
	"text":       CategoryString,
	"tinytext":   CategoryString,
	"mediumtext": CategoryString,
	"longtext":   CategoryString,
	"set":        CategoryString,
	"enum":       CategoryString,
	"json":       CategoryString,

	// HEX
	"blob":       CategoryHex,
	"tinyblob":   CategoryHex,
	"mediumblob": CategoryHex,
	"longblob":   CategoryHex,
	"binary":     CategoryHex,
	"varbinary":  CategoryHex,

	// BIT
	"bit": CategoryBit,

	// GEOMETRY
	"point":              CategoryGeometry,
	"linestring":         CategoryGeometry,
	"polygon":            CategoryGeometry,
	"multipoint":         CategoryGeometry,
	"multilinestring":    CategoryGeometry,
	"multipolygon":       CategoryGeometry,
	"geometrycollection": CategoryGeometry,
}

// typePattern разбирает "varchar(255)", "decimal(10,2)", "bit(6)"
var typePattern = regexp.MustCompile(`^(\w+)(?:\(([^)]+)\))?`)

// NormalizeType приводит тип каталога к ключу классификации:
// первое слово, без скобок с длиной, в нижнем регистре.
//
//	"INT(10) UNSIGNED" -> "int"
//	"enum('a','b')"    -> "enum"
func NormalizeType(raw string) string {
	t := strings.TrimSpace(raw)
	if i := strings.IndexByte(t, ' '); i >= 0 {
		t = t[:i]
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(t)
}

// Resolve возвращает категорию сериализации нормализованного типа.
// Тип вне каталога - фатальная ошибка ErrCatalogDrift: молча выбранная
// категория испортила бы сгенерированный SQL.
func Resolve(normalized string) (Category, error) {
	if c, ok := catalog[normalized]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: unknown column type %q", dumperr.ErrCatalogDrift, normalized)
}

// KnownTypes возвращает все типы каталога указанной категории
func KnownTypes(c Category) []string {
	var types []string
	for t, cat := range catalog {
		if cat == c {
			types = append(types, t)
		}
	}
	return types
}

// ParseLength извлекает объявленную длину из типа каталога.
// Для bit без длины MySQL подразумевает bit(1).
func ParseLength(raw string) int {
	m := typePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil || m[2] == "" {
		if NormalizeType(raw) == "bit" {
			return 1
		}
		return 0
	}

	// decimal(10,2) - берем точность
	lengthStr := m[2]
	if i := strings.IndexByte(lengthStr, ','); i >= 0 {
		lengthStr = lengthStr[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(lengthStr))
	if err != nil {
		return 0
	}
	return n
}

// NewColumn строит колонку из данных каталога, классифицируя ее тип
func NewColumn(name, rawType string, nullable bool, position int) (Column, error) {
	normalized := NormalizeType(rawType)
	category, err := Resolve(normalized)
	if err != nil {
		return Column{}, fmt.Errorf("column %s: %w", name, err)
	}

	return Column{
		Name:     name,
		RawType:  rawType,
		Type:     normalized,
		Category: category,
		Nullable: nullable,
		Position: position,
		Length:   ParseLength(rawType),
	}, nil
}
