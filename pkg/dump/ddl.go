package dump

import (
	"regexp"
	"strings"

	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
)

var (
	reAutoIncrement = regexp.MustCompile(`AUTO_INCREMENT\s*=\s*\d+ `)
	reEngine        = regexp.MustCompile(`ENGINE\s*=\s*\w+ `)
	reCharset       = regexp.MustCompile(`\s*DEFAULT CHARSET\s*=\s*\w+(\s+COLLATE\s*=\s*\w+)?`)
	reCreateTable   = regexp.MustCompile(`^CREATE TABLE`)
	reCreate        = regexp.MustCompile(`^CREATE`)
	reAlgorithm     = regexp.MustCompile(`ALGORITHM\s*=\s*\w+\s+`)
	reDefiner       = regexp.MustCompile(`DEFINER\s*=\s*(` + "`[^`]*`" + `|'[^']*'|[^\s@]+)@(` + "`[^`]*`" + `|'[^']*'|\S+)\s+`)
	reSQLSecurity   = regexp.MustCompile(`SQL SECURITY \w+\s+`)
)

// RewriteTable применяет параметры схемы к CREATE TABLE
func RewriteTable(name, ddl string, opts *SchemaOptions) string {
	if !opts.AutoIncrement {
		ddl = reAutoIncrement.ReplaceAllString(ddl, "")
	}
	if !opts.Engine {
		ddl = replaceFirst(reEngine, ddl, "")
	}
	if !opts.Table.Charset {
		ddl = reCharset.ReplaceAllString(ddl, "")
	}

	switch {
	case opts.Table.DropIfExist:
		ddl = replaceFirst(reCreateTable, ddl,
			"DROP TABLE IF EXISTS "+schema.QuoteIdent(name)+";\nCREATE TABLE")
	case opts.Table.IfNotExist:
		ddl = replaceFirst(reCreateTable, ddl, "CREATE TABLE IF NOT EXISTS")
	}
	return ddl
}

// RewriteView применяет параметры схемы к CREATE VIEW
func RewriteView(ddl string, opts *SchemaOptions) string {
	if !opts.View.Algorithm {
		ddl = replaceFirst(reAlgorithm, ddl, "")
	}
	if !opts.View.Definer {
		ddl = replaceFirst(reDefiner, ddl, "")
	}
	if !opts.View.SQLSecurity {
		ddl = replaceFirst(reSQLSecurity, ddl, "")
	}
	if opts.View.CreateOrReplace {
		ddl = replaceFirst(reCreate, ddl, "CREATE OR REPLACE")
	}
	return ddl
}

// RewriteRoutine готовит DDL триггера или процедуры.
// kind - "TRIGGER" или "PROCEDURE".
func RewriteRoutine(kind string, r adapters.Routine, opts *RoutineOptions) string {
	ddl := strings.TrimSpace(r.DDL)
	if !opts.Definer {
		ddl = replaceFirst(reDefiner, ddl, "")
	}

	var b strings.Builder
	if opts.DropIfExist {
		b.WriteString("DROP " + kind + " IF EXISTS " + schema.QuoteIdent(r.Name) + ";\n")
	}

	if opts.Delimiter == "" {
		b.WriteString(ddl + ";\n")
		return b.String()
	}

	b.WriteString("DELIMITER " + opts.Delimiter + "\n")
	b.WriteString(ddl + opts.Delimiter + "\n")
	b.WriteString("DELIMITER ;\n")
	return b.String()
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}
