// Package dump собирает дамп БД: схему, данные, триггеры и процедуры.
//
// Порядок файла: переменные сессии, схема, данные, триггеры, процедуры,
// восстановление переменных. Таблицы выгружаются строго по одной; строка
// читается из БД только после того, как предыдущая принята приемником.
package dump

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	"github.com/ruslano69/tdtp-mysqldump/pkg/audit"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/batch"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/literal"
	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
	"github.com/ruslano69/tdtp-mysqldump/pkg/writer"
)

// Dumper выполняет один дамп через адаптер
type Dumper struct {
	adapter  adapters.Adapter
	opts     Options
	log      zerolog.Logger
	audit    audit.Logger
	journal  audit.Logger // audit с привязкой к текущему дампу
	onTable  func(TableStats)
	database string
}

// Option настраивает Dumper
type Option func(*Dumper)

// WithLogger задает логгер
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dumper) { d.log = l }
}

// WithAudit задает audit logger
func WithAudit(l audit.Logger) Option {
	return func(d *Dumper) { d.audit = l }
}

// WithTableHook вызывается после выгрузки данных каждой таблицы
func WithTableHook(fn func(TableStats)) Option {
	return func(d *Dumper) { d.onTable = fn }
}

// WithDatabase задает имя БД для результата и заголовков
func WithDatabase(name string) Option {
	return func(d *Dumper) { d.database = name }
}

// New создает Dumper. Адаптер должен быть подключен.
func New(adapter adapters.Adapter, opts Options, options ...Option) *Dumper {
	d := &Dumper{
		adapter: adapter,
		opts:    opts,
		log:     zerolog.Nop(),
		audit:   audit.NewNullLogger(),
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Run выполняет дамп.
// При ошибке уже записанный текст остается в приемниках, Result содержит
// статистику выгруженных до ошибки таблиц.
func (d *Dumper) Run(ctx context.Context) (res *Result, err error) {
	if err := d.opts.Validate(); err != nil {
		return nil, err
	}

	res = &Result{
		ID:       uuid.NewString(),
		Database: d.database,
		File:     d.opts.DumpToFile,
		Codec:    d.opts.Compress,
		Started:  time.Now(),
	}
	log := d.log.With().Str("dump_id", res.ID).Logger()
	d.journal = audit.ForDump(d.audit, res.ID, d.database)

	w, err := writer.New(writer.Options{
		FilePath: d.opts.DumpToFile,
		Append:   d.opts.Append,
		Stream:   d.opts.Stream,
		Keep:     d.opts.keepSections(),
		Codec:    d.opts.Compress,
		Level:    d.opts.CompressLevel,
	})
	if err != nil {
		return nil, err
	}

	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
		res.Bytes = w.Written()
		res.Checksum = w.Checksum()
		res.Finished = time.Now()
		res.Dump = d.sections(w)

		entry := audit.NewEntry(audit.OpDump, audit.StatusSuccess).
			WithSource(d.adapter.GetDatabaseType()).
			WithTarget(d.opts.DumpToFile).
			WithRows(res.TotalRows()).
			WithBytes(res.Bytes).
			WithDuration(res.Duration()).
			WithMetadata("tables", len(res.Stats)).
			WithMetadata("checksum", res.Checksum).
			WithError(err)
		d.journal.Log(ctx, entry)

		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Int("tables", len(res.Stats)).
			Int64("rows", res.TotalRows()).
			Int64("bytes", res.Bytes).
			Dur("duration", res.Duration()).
			Msg("dump finished")
	}()

	tables, err := d.introspect(ctx)
	if err != nil {
		return res, err
	}
	res.Tables = tables
	log.Info().Int("tables", len(tables)).Msg("schema introspected")

	if d.opts.hasSink() {
		w.Begin(writer.SectionHeader)
		if err := w.Write(HeaderVariables); err != nil {
			return res, err
		}
	}

	if d.opts.Schema != nil {
		if err := d.dumpSchema(ctx, w, tables); err != nil {
			return res, err
		}
	}

	if d.opts.Data != nil {
		if err := d.dumpData(ctx, w, tables, res); err != nil {
			return res, err
		}
	}

	if d.opts.Trigger != nil {
		n, err := d.dumpRoutines(ctx, w, writer.SectionTrigger, "TRIGGER", d.opts.Trigger, tables)
		if err != nil {
			return res, err
		}
		res.Triggers = n
	}

	if d.opts.Procedure != nil {
		n, err := d.dumpRoutines(ctx, w, writer.SectionProcedure, "PROCEDURE", d.opts.Procedure, nil)
		if err != nil {
			return res, err
		}
		res.Procedures = n
	}

	if d.opts.hasSink() {
		w.Begin(writer.SectionFooter)
		if err := w.Write(FooterVariables); err != nil {
			return res, err
		}
	}

	return res, nil
}

// introspect читает каталог, фильтрует таблицы и загружает колонки
func (d *Dumper) introspect(ctx context.Context) ([]schema.Table, error) {
	all, err := d.adapter.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := schema.Filter(all, d.opts.Tables, d.opts.ExcludeTables)
	schema.SortByName(tables)

	for i := range tables {
		if err := d.adapter.LoadColumns(ctx, &tables[i]); err != nil {
			return nil, err
		}
		d.log.Debug().
			Str("table", tables[i].Name).
			Bool("view", tables[i].IsView).
			Int("columns", len(tables[i].Columns)).
			Msg("columns loaded")
	}
	return tables, nil
}

func (d *Dumper) dumpSchema(ctx context.Context, w *writer.Writer, tables []schema.Table) error {
	start := time.Now()
	w.Begin(writer.SectionSchema)

	ordered := make([]schema.Table, len(tables))
	copy(ordered, tables)
	schema.SortForDDL(ordered)

	for i := range ordered {
		t := &ordered[i]
		ddl, err := d.adapter.ShowCreate(ctx, t)
		if err != nil {
			return err
		}

		if t.IsView {
			ddl = RewriteView(ddl, d.opts.Schema)
		} else {
			ddl = RewriteTable(t.Name, ddl, d.opts.Schema)
		}

		if err := w.Write(SchemaBlock(t.Name, ddl)); err != nil {
			return err
		}
	}

	d.journal.Log(ctx, audit.NewEntry(audit.OpSchema, audit.StatusSuccess).
		WithObject(string(writer.SectionSchema)).
		WithRows(int64(len(ordered))).
		WithDuration(time.Since(start)))
	d.log.Info().Int("tables", len(ordered)).Msg("schema dumped")
	return nil
}

func (d *Dumper) dumpData(ctx context.Context, w *writer.Writer, tables []schema.Table, res *Result) error {
	w.Begin(writer.SectionData)
	opts := d.opts.Data

	var format literal.Formatter
	if opts.Format {
		format = d.opts.formatter()
	}

	dc, err := d.adapter.OpenData(ctx, literal.NewSerializer(opts.Format).Hook())
	if err != nil {
		return err
	}
	defer dc.Close()

	for i := range tables {
		t := &tables[i]

		if t.IsView && !opts.IncludeViewData {
			res.Stats = append(res.Stats, TableStats{Name: t.Name, IsView: true, Skipped: true})
			continue
		}

		stats, err := d.dumpTable(ctx, w, dc, t, format)
		res.Stats = append(res.Stats, stats)

		d.journal.Log(ctx, audit.NewEntry(audit.OpData, audit.StatusSuccess).
			WithObject(t.Name).
			WithRows(stats.Rows).
			WithDuration(stats.Duration).
			WithMetadata("statements", stats.Statements).
			WithError(err))

		if err != nil {
			return fmt.Errorf("failed to dump data of %s: %w", t.Name, err)
		}
		if d.onTable != nil {
			d.onTable(stats)
		}
	}

	d.log.Info().Int("tables", len(tables)).Msg("data dumped")
	return nil
}

func (d *Dumper) dumpTable(ctx context.Context, w *writer.Writer, dc adapters.DataConn,
	t *schema.Table, format literal.Formatter) (stats TableStats, err error) {
	opts := d.opts.Data
	start := time.Now()
	stats = TableStats{Name: t.Name, IsView: t.IsView, Locked: opts.LockTables}

	defer func() {
		stats.Duration = time.Since(start)
	}()

	if opts.Verbose {
		if err := w.Write(DataHeader(t.Name, opts.LockTables)); err != nil {
			return stats, err
		}
	}

	if opts.LockTables {
		if err := dc.Lock(ctx, t); err != nil {
			return stats, err
		}
		defer func() {
			if uerr := dc.Unlock(ctx); uerr != nil && err == nil {
				err = uerr
			}
		}()
	}

	b := batch.New(t, opts.MaxRowsPerInsertStatement, func(stmt string) error {
		return w.Writeln(literal.Apply(format, stmt))
	})

	_, err = dc.Stream(ctx, t, opts.Where[t.Name], b.Add)
	if err == nil {
		err = b.Close()
	}
	stats.Rows = b.Rows()
	stats.Statements = b.Statements()
	if err != nil {
		return stats, err
	}

	if opts.Verbose {
		if err := w.Write("\n"); err != nil {
			return stats, err
		}
	}

	d.log.Debug().
		Str("table", t.Name).
		Int64("rows", stats.Rows).
		Int("statements", stats.Statements).
		Msg("table dumped")
	return stats, nil
}

// dumpRoutines пишет триггеры (только для выгружаемых таблиц) или процедуры
func (d *Dumper) dumpRoutines(ctx context.Context, w *writer.Writer, section writer.Section,
	kind string, opts *RoutineOptions, tables []schema.Table) (int, error) {
	start := time.Now()
	w.Begin(section)

	var (
		list []adapters.Routine
		err  error
		op   = audit.OpProcedure
	)
	if section == writer.SectionTrigger {
		op = audit.OpTrigger
		list, err = d.adapter.ListTriggers(ctx)
	} else {
		list, err = d.adapter.ListProcedures(ctx)
	}
	if err != nil {
		return 0, err
	}

	var selected map[string]bool
	if tables != nil {
		selected = make(map[string]bool, len(tables))
		for _, t := range tables {
			selected[t.Name] = true
		}
	}

	n := 0
	for _, r := range list {
		if selected != nil && !selected[r.Table] {
			continue
		}
		if err := w.Write(RoutineHeader(kind, r.Name) + RewriteRoutine(kind, r, opts) + "\n"); err != nil {
			return n, err
		}
		n++
	}

	d.journal.Log(ctx, audit.NewEntry(op, audit.StatusSuccess).
		WithObject(string(section)).
		WithRows(int64(n)).
		WithDuration(time.Since(start)))
	d.log.Info().Str("section", string(section)).Int("count", n).Msg("routines dumped")
	return n, nil
}

// sections собирает возвращаемые разделы
func (d *Dumper) sections(w *writer.Writer) Sections {
	var s Sections
	pick := func(sec writer.Section) *string {
		if text, ok := w.Section(sec); ok {
			return &text
		}
		return nil
	}
	if d.opts.Schema != nil {
		s.Schema = pick(writer.SectionSchema)
	}
	if d.opts.Data != nil {
		s.Data = pick(writer.SectionData)
	}
	if d.opts.Trigger != nil {
		s.Trigger = pick(writer.SectionTrigger)
	}
	if d.opts.Procedure != nil {
		s.Procedure = pick(writer.SectionProcedure)
	}
	return s
}
