package schema

import "sort"

// Filter применяет список таблиц к полному листингу каталога.
// exclude=false - белый список (остаются только перечисленные),
// exclude=true - черный список (перечисленные удаляются).
// Пустой список при белом режиме означает "все таблицы".
func Filter(tables []Table, names []string, exclude bool) []Table {
	if len(names) == 0 {
		return tables
	}

	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	result := make([]Table, 0, len(tables))
	for _, t := range tables {
		_, listed := set[t.Name]
		if listed != exclude {
			result = append(result, t)
		}
	}
	return result
}

// SortByName упорядочивает таблицы по имени
func SortByName(tables []Table) {
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].Name < tables[j].Name
	})
}

// SortForDDL упорядочивает таблицы для вывода DDL:
// сначала базовые таблицы, затем представления, внутри групп по имени.
// Так определения представлений идут после таблиц, от которых зависят.
func SortForDDL(tables []Table) {
	sort.SliceStable(tables, func(i, j int) bool {
		if tables[i].IsView != tables[j].IsView {
			return !tables[i].IsView
		}
		return tables[i].Name < tables[j].Name
	})
}
