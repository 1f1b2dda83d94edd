// Package security проверяет условия выборки, пришедшие извне, и права процесса.
package security

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// MaxConditionLength - предельная длина условия
const MaxConditionLength = 1024

// forbidden - слова, которых не может быть в условии WHERE.
// Условие подставляется в SELECT как есть, поэтому запрещено все,
// что меняет данные, читает файлы или задерживает сервер.
var forbidden = map[string]bool{
	// DML
	"INSERT": true, "UPDATE": true, "DELETE": true, "TRUNCATE": true,
	// DDL
	"DROP": true, "CREATE": true, "ALTER": true, "RENAME": true,
	// DCL
	"GRANT": true, "REVOKE": true,
	// Подзапросы и объединения за пределы таблицы
	"SELECT": true, "UNION": true, "INTO": true,
	// Процедуры и сессия
	"CALL": true, "EXECUTE": true, "PREPARE": true, "SET": true, "LOCK": true, "UNLOCK": true,
	// Файлы и задержки
	"OUTFILE": true, "DUMPFILE": true, "LOAD_FILE": true, "SLEEP": true, "BENCHMARK": true,
}

// ConditionValidator проверяет условия WHERE из недоверенных источников
// (параметры HTTP-запроса режима serve).
//
// Разрешены сравнения, логические операторы и обычные функции.
// Запрещены:
//   - несколько операторов (;)
//   - комментарии (--, #, /* */)
//   - ключевые слова из списка forbidden
//   - незакрытые кавычки и скобки
type ConditionValidator struct {
	maxLength int
}

// NewConditionValidator создает валидатор. maxLength <= 0 - MaxConditionLength.
func NewConditionValidator(maxLength int) *ConditionValidator {
	if maxLength <= 0 {
		maxLength = MaxConditionLength
	}
	return &ConditionValidator{maxLength: maxLength}
}

// Validate проверяет условие. Ошибка имеет класс конфигурации.
func (v *ConditionValidator) Validate(cond string) error {
	if strings.TrimSpace(cond) == "" {
		return fmt.Errorf("%w: empty condition", dumperr.ErrConfig)
	}
	if len(cond) > v.maxLength {
		return fmt.Errorf("%w: condition longer than %d bytes", dumperr.ErrConfig, v.maxLength)
	}

	outside, err := stripLiterals(cond)
	if err != nil {
		return err
	}

	if err := checkMultipleStatements(outside); err != nil {
		return err
	}
	if err := checkComments(outside); err != nil {
		return err
	}
	if err := checkParens(outside); err != nil {
		return err
	}
	return checkForbiddenKeywords(outside)
}

// stripLiterals заменяет содержимое строк и `идентификаторов` пробелами,
// чтобы проверки видели только код условия
func stripLiterals(cond string) (string, error) {
	var b strings.Builder
	b.Grow(len(cond))

	var quote rune
	escaped := false
	for _, r := range cond {
		switch {
		case quote == 0 && (r == '\'' || r == '"' || r == '`'):
			quote = r
			b.WriteRune(' ')
		case quote == 0:
			b.WriteRune(r)
		case escaped:
			escaped = false
			b.WriteRune(' ')
		case r == '\\' && quote != '`':
			escaped = true
			b.WriteRune(' ')
		case r == quote:
			quote = 0
			b.WriteRune(' ')
		default:
			b.WriteRune(' ')
		}
	}
	if quote != 0 {
		return "", fmt.Errorf("%w: unterminated %c quote in condition", dumperr.ErrConfig, quote)
	}
	return b.String(), nil
}

func checkMultipleStatements(code string) error {
	if strings.Contains(code, ";") {
		return fmt.Errorf("%w: multiple statements not allowed in condition", dumperr.ErrConfig)
	}
	return nil
}

func checkComments(code string) error {
	if strings.Contains(code, "--") || strings.Contains(code, "#") {
		return fmt.Errorf("%w: SQL comments not allowed in condition", dumperr.ErrConfig)
	}
	if strings.Contains(code, "/*") || strings.Contains(code, "*/") {
		return fmt.Errorf("%w: SQL comments (/* */) not allowed in condition", dumperr.ErrConfig)
	}
	return nil
}

func checkParens(code string) error {
	depth := 0
	for _, r := range code {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unbalanced parentheses in condition", dumperr.ErrConfig)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unbalanced parentheses in condition", dumperr.ErrConfig)
	}
	return nil
}

// checkForbiddenKeywords ищет запрещенные слова целиком,
// так что колонки вида deleted_at или created_by проходят
func checkForbiddenKeywords(code string) error {
	words := strings.FieldsFunc(code, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	for _, w := range words {
		if upper := strings.ToUpper(w); forbidden[upper] {
			return fmt.Errorf("%w: forbidden keyword '%s' in condition", dumperr.ErrConfig, upper)
		}
	}
	return nil
}
