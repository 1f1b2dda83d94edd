package dump

import (
	"fmt"
	"io"

	"github.com/ruslano69/tdtp-mysqldump/pkg/core/literal"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
	"github.com/ruslano69/tdtp-mysqldump/pkg/writer"
)

// DefaultDelimiter - разделитель операторов вокруг тел триггеров и процедур
const DefaultDelimiter = ";;"

// TableDDLOptions - правка DDL таблиц
type TableDDLOptions struct {
	// IfNotExist - CREATE TABLE IF NOT EXISTS
	IfNotExist bool `yaml:"if_not_exist"`
	// DropIfExist - DROP TABLE IF EXISTS перед CREATE (приоритетнее IfNotExist)
	DropIfExist bool `yaml:"drop_if_exist"`
	// Charset - оставлять DEFAULT CHARSET
	Charset bool `yaml:"charset"`
}

// ViewDDLOptions - правка DDL представлений
type ViewDDLOptions struct {
	// CreateOrReplace - CREATE OR REPLACE VIEW
	CreateOrReplace bool `yaml:"create_or_replace"`
	// Algorithm - оставлять ALGORITHM=...
	Algorithm bool `yaml:"algorithm"`
	// Definer - оставлять DEFINER=...
	Definer bool `yaml:"definer"`
	// SQLSecurity - оставлять SQL SECURITY ...
	SQLSecurity bool `yaml:"sql_security"`
}

// SchemaOptions - раздел схемы
type SchemaOptions struct {
	Format        bool            `yaml:"format"`
	AutoIncrement bool            `yaml:"auto_increment"`
	Engine        bool            `yaml:"engine"`
	Table         TableDDLOptions `yaml:"table"`
	View          ViewDDLOptions  `yaml:"view"`
}

// DataOptions - раздел данных
type DataOptions struct {
	// Format пропускает каждый INSERT через форматтер
	Format bool `yaml:"format"`
	// Verbose пишет заголовок перед данными каждой таблицы
	Verbose bool `yaml:"verbose"`
	// LockTables блокирует таблицу на чтение на время выгрузки
	LockTables bool `yaml:"lock_tables"`
	// IncludeViewData выгружает строки представлений
	IncludeViewData bool `yaml:"include_view_data"`
	// MaxRowsPerInsertStatement - строк в одном INSERT, не меньше 1
	MaxRowsPerInsertStatement int `yaml:"max_rows_per_insert_statement"`
	// ReturnFromFunction возвращает текст данных в Result.
	// Без файла и потока данные возвращаются всегда.
	ReturnFromFunction bool `yaml:"return_from_function"`
	// Where - дополнительные условия по таблицам
	Where map[string]string `yaml:"where"`
}

// RoutineOptions - разделы триггеров и процедур
type RoutineOptions struct {
	// Delimiter окружает тело DELIMITER-блоком. Пусто - без блока.
	Delimiter string `yaml:"delimiter"`
	// DropIfExist - DROP ... IF EXISTS перед CREATE
	DropIfExist bool `yaml:"drop_if_exist"`
	// Definer - оставлять DEFINER=...
	Definer bool `yaml:"definer"`
}

// Options - параметры одного дампа.
// nil-раздел не выгружается.
type Options struct {
	// Tables - список таблиц. Пусто - все таблицы.
	Tables []string
	// ExcludeTables превращает Tables в черный список
	ExcludeTables bool

	Schema    *SchemaOptions
	Data      *DataOptions
	Trigger   *RoutineOptions
	Procedure *RoutineOptions

	// DumpToFile - путь к файлу дампа
	DumpToFile string
	// Append дописывает в существующий файл
	Append bool
	// Stream - потоковый приемник
	Stream io.Writer
	// Compress - кодек сжатия файла: "", "gzip", "zstd"
	Compress      string
	CompressLevel int

	// Formatter для Format. nil - literal.FormatInsert.
	Formatter literal.Formatter
}

// DefaultSchemaOptions возвращает параметры схемы по умолчанию
func DefaultSchemaOptions() *SchemaOptions {
	return &SchemaOptions{
		Format:        true,
		AutoIncrement: true,
		Engine:        true,
		Table: TableDDLOptions{
			IfNotExist: true,
			Charset:    true,
		},
		View: ViewDDLOptions{
			CreateOrReplace: true,
		},
	}
}

// DefaultDataOptions возвращает параметры данных по умолчанию
func DefaultDataOptions() *DataOptions {
	return &DataOptions{
		Verbose:                   true,
		MaxRowsPerInsertStatement: 1,
		Where:                     map[string]string{},
	}
}

// DefaultRoutineOptions возвращает параметры триггеров и процедур по умолчанию
func DefaultRoutineOptions() *RoutineOptions {
	return &RoutineOptions{
		Delimiter:   DefaultDelimiter,
		DropIfExist: true,
	}
}

// DefaultOptions - схема, данные и триггеры; процедуры выключены
func DefaultOptions() Options {
	return Options{
		Schema:  DefaultSchemaOptions(),
		Data:    DefaultDataOptions(),
		Trigger: DefaultRoutineOptions(),
	}
}

// Validate проверяет согласованность параметров
func (o *Options) Validate() error {
	switch o.Compress {
	case writer.CodecNone, writer.CodecGzip, writer.CodecZstd:
	default:
		return fmt.Errorf("%w: unsupported compression %q", dumperr.ErrConfig, o.Compress)
	}
	if o.Compress != writer.CodecNone && o.DumpToFile == "" {
		return fmt.Errorf("%w: compression requires a dump file", dumperr.ErrConfig)
	}
	if o.Compress != writer.CodecNone && o.Append {
		return fmt.Errorf("%w: compressed dump cannot be appended", dumperr.ErrConfig)
	}
	if o.Schema == nil && o.Data == nil && o.Trigger == nil && o.Procedure == nil {
		return fmt.Errorf("%w: nothing to dump", dumperr.ErrConfig)
	}
	return nil
}

// hasSink сообщает, что текст уходит в файл или поток
func (o *Options) hasSink() bool {
	return o.DumpToFile != "" || o.Stream != nil
}

// keepSections - разделы, возвращаемые в Result.
// Схема, триггеры и процедуры возвращаются всегда. Данные - по ReturnFromFunction
// или если другого приемника нет.
func (o *Options) keepSections() []writer.Section {
	var keep []writer.Section
	if o.Schema != nil {
		keep = append(keep, writer.SectionSchema)
	}
	if o.Data != nil && (o.Data.ReturnFromFunction || !o.hasSink()) {
		keep = append(keep, writer.SectionData)
	}
	if o.Trigger != nil {
		keep = append(keep, writer.SectionTrigger)
	}
	if o.Procedure != nil {
		keep = append(keep, writer.SectionProcedure)
	}
	return keep
}

func (o *Options) formatter() literal.Formatter {
	if o.Formatter != nil {
		return o.Formatter
	}
	return literal.FormatInsert
}
