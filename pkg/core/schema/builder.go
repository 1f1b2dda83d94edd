package schema

// Builder помогает строить описание таблицы.
// Ошибка классификации запоминается и возвращается из Build.
type Builder struct {
	table Table
	err   error
}

// NewBuilder создает builder для таблицы
func NewBuilder(name string) *Builder {
	return &Builder{table: Table{Name: name}}
}

// View помечает таблицу как представление
func (b *Builder) View() *Builder {
	b.table.IsView = true
	return b
}

// Add добавляет колонку с типом каталога
func (b *Builder) Add(name, rawType string, nullable bool) *Builder {
	if b.err != nil {
		return b
	}

	col, err := NewColumn(name, rawType, nullable, len(b.table.Columns)+1)
	if err != nil {
		b.err = err
		return b
	}
	b.table.Columns = append(b.table.Columns, col)
	return b
}

// Build возвращает таблицу или первую ошибку классификации
func (b *Builder) Build() (Table, error) {
	if b.err != nil {
		return Table{}, b.err
	}
	return b.table, nil
}

// MustBuild возвращает таблицу или паникует.
// Использовать только в тестах.
func (b *Builder) MustBuild() Table {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
