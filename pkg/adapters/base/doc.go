// Package base предоставляет общие хелперы для адаптеров БД.
//
// # Основные компоненты
//
// Field - приемник sql.Scanner, получающий значение драйвера до какого-либо
// преобразования. Реализует literal.Field.
//
// StreamRows - цикл выгрузки строк таблицы:
//   - SELECT по колонкам в порядке каталога (SelectQuery)
//   - сканирование строки в Field
//   - вызов обработчика полей (literal.Hook) для каждой колонки
//   - передача кортежа в emit до чтения следующей строки
//
// ScanNamed - чтение результатов SHOW-запросов, у которых набор колонок
// зависит от версии сервера.
//
// # Использование
//
//	func (c *dataConn) Stream(ctx context.Context, t *schema.Table, where string,
//	    emit func(string) error) (int64, error) {
//	    return base.StreamRows(ctx, c.conn, t, base.SelectQuery(t, where), c.hook, emit)
//	}
package base
