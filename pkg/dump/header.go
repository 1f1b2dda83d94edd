package dump

import "strings"

const rule = "# ------------------------------------------------------------"

// HeaderVariables открывает файл дампа: сохраняет и отключает проверки сессии
const HeaderVariables = `/*!40101 SET @OLD_CHARACTER_SET_CLIENT=@@CHARACTER_SET_CLIENT */;
/*!40101 SET @OLD_CHARACTER_SET_RESULTS=@@CHARACTER_SET_RESULTS */;
/*!40101 SET @OLD_COLLATION_CONNECTION=@@COLLATION_CONNECTION */;
/*!40101 SET NAMES utf8mb4 */;
/*!40014 SET @OLD_FOREIGN_KEY_CHECKS=@@FOREIGN_KEY_CHECKS, FOREIGN_KEY_CHECKS=0 */;
/*!40101 SET @OLD_SQL_MODE=@@SQL_MODE, SQL_MODE='NO_AUTO_VALUE_ON_ZERO' */;
/*!40111 SET @OLD_SQL_NOTES=@@SQL_NOTES, SQL_NOTES=0 */;

`

// FooterVariables восстанавливает переменные сессии
const FooterVariables = `
/*!40111 SET SQL_NOTES=@OLD_SQL_NOTES */;
/*!40101 SET SQL_MODE=@OLD_SQL_MODE */;
/*!40014 SET FOREIGN_KEY_CHECKS=@OLD_FOREIGN_KEY_CHECKS */;
/*!40101 SET CHARACTER_SET_CLIENT=@OLD_CHARACTER_SET_CLIENT */;
/*!40101 SET CHARACTER_SET_RESULTS=@OLD_CHARACTER_SET_RESULTS */;
/*!40101 SET COLLATION_CONNECTION=@OLD_COLLATION_CONNECTION */;
`

// banner - заголовок блока
//
//	# ------------------------------------------------------------
//	# SCHEMA DUMP FOR TABLE: users
//	# ------------------------------------------------------------
func banner(title string) string {
	return strings.Join([]string{rule, "# " + title, rule, "", ""}, "\n")
}

// SchemaBlock - DDL таблицы с заголовком
func SchemaBlock(name, ddl string) string {
	return banner("SCHEMA DUMP FOR TABLE: "+name) + ddl + ";\n\n\n"
}

// DataHeader - заголовок данных таблицы
func DataHeader(name string, locked bool) string {
	title := "DATA DUMP FOR TABLE: " + name
	if locked {
		title += " (locked)"
	}
	return banner(title)
}

// RoutineHeader - заголовок триггера или процедуры
func RoutineHeader(kind, name string) string {
	return banner("DUMP OF " + kind + ": " + name)
}
