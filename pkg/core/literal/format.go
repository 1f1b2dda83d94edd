package literal

import (
	"regexp"
	"strings"
)

const (
	wrapPrefix = `NOFORMAT_WRAP("##`
	wrapSuffix = `##")`
)

var wrapPattern = regexp.MustCompile(`NOFORMAT_WRAP\("##(.+?)##"\)`)

// Formatter - внешний форматтер SQL, применяемый к готовому оператору
type Formatter func(sql string) string

// Wrap прячет литерал от форматтера в маркер
func Wrap(v string) string {
	return wrapPrefix + v + wrapSuffix
}

// Unwrap убирает все маркеры Wrap из текста
func Unwrap(sql string) string {
	if !strings.Contains(sql, wrapPrefix) {
		return sql
	}
	return wrapPattern.ReplaceAllString(sql, "$1")
}

// Apply форматирует оператор и сразу снимает маркеры.
// Без форматтера текст возвращается как есть.
func Apply(f Formatter, sql string) string {
	if f == nil {
		return sql
	}
	return Unwrap(f(sql))
}

// FormatInsert - встроенный форматтер операторов INSERT:
//
//	INSERT INTO
//	  `t` (`a`, `b`)
//	VALUES
//	  (1, 'x'),
//	  (2, 'y');
//
// Кавычки и обратные кавычки учитываются: текст внутри них не меняется.
func FormatInsert(sql string) string {
	const head = "INSERT INTO "
	if !strings.HasPrefix(sql, head) {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) + len(sql)/4)
	b.WriteString("INSERT INTO\n  ")

	var (
		quote  byte // текущая кавычка: ' " ` или 0
		depth  int
		values bool
	)

	rest := sql[len(head):]
	for i := 0; i < len(rest); i++ {
		c := rest[i]

		if quote != 0 {
			b.WriteByte(c)
			switch {
			case c == '\\' && quote != '`' && i+1 < len(rest):
				i++
				b.WriteByte(rest[i])
			case c == quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"', '`':
			quote = c
			b.WriteByte(c)

		case '(':
			depth++
			b.WriteByte(c)

		case ')':
			depth--
			b.WriteByte(c)

		case ',':
			switch {
			case depth == 0 && values:
				b.WriteString(",\n  ")
			case depth > 0:
				b.WriteString(", ")
			default:
				b.WriteByte(c)
			}

		case ' ':
			if depth == 0 && !values && strings.HasPrefix(rest[i:], " VALUES ") {
				b.WriteString("\nVALUES\n  ")
				i += len(" VALUES ") - 1
				values = true
				continue
			}
			b.WriteByte(c)

		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
