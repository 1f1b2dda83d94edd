package dump

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters/sqlite"
	"github.com/ruslano69/tdtp-mysqldump/pkg/audit"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

const fixture = `
	CREATE TABLE people (id INTEGER NOT NULL, name VARCHAR(20));
	INSERT INTO people VALUES (1, 'ann'), (2, 'bob'), (3, 'cid'), (4, 'dan'), (5, 'eve');
	CREATE TABLE flags (id INTEGER NOT NULL, bits BIT(6));
	INSERT INTO flags VALUES (1, x'21');
	CREATE TABLE log (id INTEGER);
	CREATE VIEW v_people AS SELECT id, name FROM people;
	CREATE TRIGGER people_ai AFTER INSERT ON people BEGIN INSERT INTO log VALUES (NEW.id); END;
`

func setup(t *testing.T, ddl string) adapters.Adapter {
	t.Helper()
	ctx := context.Background()

	a := &sqlite.Adapter{}
	cfg := adapters.Config{Type: sqlite.AdapterType, DSN: filepath.Join(t.TempDir(), "src.db")}
	if err := a.Connect(ctx, cfg); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { a.Close(ctx) })

	if _, err := a.DB().ExecContext(ctx, ddl); err != nil {
		t.Fatalf("setup error = %v", err)
	}
	return a
}

func run(t *testing.T, a adapters.Adapter, opts Options, options ...Option) *Result {
	t.Helper()
	res, err := New(a, opts, options...).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func TestDumper_DefaultsReturnEverything(t *testing.T) {
	a := setup(t, fixture)
	res := run(t, a, DefaultOptions())

	if res.Dump.Schema == nil || res.Dump.Data == nil || res.Dump.Trigger == nil {
		t.Fatalf("expected schema, data and trigger sections, got %+v", res.Dump)
	}
	if res.Dump.Procedure != nil {
		t.Errorf("procedures were not requested, got %q", *res.Dump.Procedure)
	}

	schemaText := *res.Dump.Schema
	for _, want := range []string{
		"# SCHEMA DUMP FOR TABLE: people",
		"CREATE TABLE IF NOT EXISTS people",
		"CREATE OR REPLACE VIEW v_people",
	} {
		if !strings.Contains(schemaText, want) {
			t.Errorf("schema missing %q:\n%s", want, schemaText)
		}
	}
	if strings.Index(schemaText, "TABLE: v_people") < strings.Index(schemaText, "TABLE: people") {
		t.Error("view DDL must follow table DDL")
	}

	data := *res.Dump.Data
	if !strings.Contains(data, "INSERT INTO `people` (`id`,`name`) VALUES (1,'ann');\n") {
		t.Errorf("unexpected data section:\n%s", data)
	}
	if strings.Contains(data, "v_people") {
		t.Errorf("view rows must be skipped by default:\n%s", data)
	}
	if strings.Contains(data, "FOREIGN_KEY_CHECKS") {
		t.Error("session variables are written only to a sink")
	}

	if res.TotalRows() != 6 {
		t.Errorf("TotalRows() = %d, want 6", res.TotalRows())
	}
	if res.Triggers != 1 {
		t.Errorf("Triggers = %d, want 1", res.Triggers)
	}
	if !strings.Contains(*res.Dump.Trigger, "DROP TRIGGER IF EXISTS `people_ai`;\nDELIMITER ;;\n") {
		t.Errorf("unexpected trigger section:\n%s", *res.Dump.Trigger)
	}

	var view *TableStats
	for i := range res.Stats {
		if res.Stats[i].Name == "v_people" {
			view = &res.Stats[i]
		}
	}
	if view == nil || !view.Skipped || !view.IsView {
		t.Errorf("expected skipped view stats, got %+v", res.Stats)
	}
}

func TestDumper_BatchBoundary(t *testing.T) {
	a := setup(t, fixture)

	opts := Options{Data: DefaultDataOptions(), Tables: []string{"people"}}
	opts.Data.MaxRowsPerInsertStatement = 2
	opts.Data.Verbose = false

	res := run(t, a, opts)

	want := "INSERT INTO `people` (`id`,`name`) VALUES (1,'ann'),(2,'bob');\n" +
		"INSERT INTO `people` (`id`,`name`) VALUES (3,'cid'),(4,'dan');\n" +
		"INSERT INTO `people` (`id`,`name`) VALUES (5,'eve');\n"
	if *res.Dump.Data != want {
		t.Errorf("data = %q\nwant %q", *res.Dump.Data, want)
	}
	if len(res.Stats) != 1 || res.Stats[0].Rows != 5 || res.Stats[0].Statements != 3 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestDumper_WhereClause(t *testing.T) {
	a := setup(t, fixture)

	opts := Options{Data: DefaultDataOptions(), Tables: []string{"people"}}
	opts.Data.Where = map[string]string{"people": "id > 3"}

	res := run(t, a, opts)
	if res.TotalRows() != 2 {
		t.Errorf("TotalRows() = %d, want 2", res.TotalRows())
	}
	if strings.Contains(*res.Dump.Data, "'ann'") {
		t.Errorf("filtered row dumped:\n%s", *res.Dump.Data)
	}
}

func TestDumper_ExcludeTables(t *testing.T) {
	a := setup(t, fixture)

	opts := Options{Schema: DefaultSchemaOptions(), Tables: []string{"people", "v_people"}, ExcludeTables: true}
	res := run(t, a, opts)

	names := make([]string, 0, len(res.Tables))
	for _, tb := range res.Tables {
		names = append(names, tb.Name)
	}
	if strings.Join(names, ",") != "flags,log" {
		t.Errorf("tables = %v, want [flags log]", names)
	}
	if res.Dump.Data != nil {
		t.Error("data was not requested")
	}
}

func TestDumper_StreamKeepsDataOutOfResult(t *testing.T) {
	a := setup(t, fixture)

	var stream bytes.Buffer
	opts := DefaultOptions()
	opts.Stream = &stream

	res := run(t, a, opts)

	if res.Dump.Data != nil {
		t.Error("data must not be returned when streamed without ReturnFromFunction")
	}
	if res.Dump.Schema == nil {
		t.Error("schema is always returned when requested")
	}

	out := stream.String()
	if !strings.HasPrefix(out, HeaderVariables) || !strings.HasSuffix(out, FooterVariables) {
		t.Error("stream must be framed by session variables")
	}
	if !strings.Contains(out, "VALUES (5,'eve');") {
		t.Errorf("stream missing data:\n%s", out)
	}
	if res.Bytes != int64(stream.Len()) {
		t.Errorf("Bytes = %d, stream has %d", res.Bytes, stream.Len())
	}
}

func TestDumper_ReturnFromFunctionWithSink(t *testing.T) {
	a := setup(t, fixture)

	opts := Options{Data: DefaultDataOptions(), Stream: io.Discard, Tables: []string{"flags"}}
	opts.Data.ReturnFromFunction = true

	res := run(t, a, opts)
	if res.Dump.Data == nil || !strings.Contains(*res.Dump.Data, "b'100001'") {
		t.Errorf("expected returned data, got %v", res.Dump.Data)
	}
}

func TestDumper_FormattedInsert(t *testing.T) {
	a := setup(t, fixture)

	opts := Options{Data: DefaultDataOptions(), Tables: []string{"flags"}}
	opts.Data.Format = true
	opts.Data.Verbose = false

	res := run(t, a, opts)

	want := "INSERT INTO\n  `flags` (`id`, `bits`)\nVALUES\n  (1, b'100001');\n"
	if *res.Dump.Data != want {
		t.Errorf("data = %q\nwant %q", *res.Dump.Data, want)
	}
}

func TestDumper_GzipFile(t *testing.T) {
	a := setup(t, fixture)
	path := filepath.Join(t.TempDir(), "dump.sql.gz")

	opts := DefaultOptions()
	opts.DumpToFile = path
	opts.Compress = "gzip"

	res := run(t, a, opts)
	if res.Checksum == "" || res.File != path {
		t.Errorf("unexpected result file info: %+v", res)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	text, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}

	if int64(len(text)) != res.Bytes {
		t.Errorf("decompressed %d bytes, Bytes = %d", len(text), res.Bytes)
	}
	if !strings.Contains(string(text), "# DATA DUMP FOR TABLE: people") {
		t.Errorf("dump file missing data header")
	}
}

func TestDumper_LockTables(t *testing.T) {
	a := setup(t, fixture)

	opts := Options{Data: DefaultDataOptions(), Tables: []string{"people"}}
	opts.Data.LockTables = true

	res := run(t, a, opts)
	if !strings.Contains(*res.Dump.Data, "# DATA DUMP FOR TABLE: people (locked)") {
		t.Errorf("missing locked header:\n%s", *res.Dump.Data)
	}
	if !res.Stats[0].Locked {
		t.Error("stats must report lock")
	}
}

func TestDumper_TriggersFollowTableSelection(t *testing.T) {
	a := setup(t, fixture)

	opts := Options{Trigger: DefaultRoutineOptions(), Tables: []string{"flags"}}
	res := run(t, a, opts)

	if res.Triggers != 0 || *res.Dump.Trigger != "" {
		t.Errorf("trigger of an unselected table dumped: %q", *res.Dump.Trigger)
	}
}

func TestDumper_UnknownTypeIsFatal(t *testing.T) {
	a := setup(t, "CREATE TABLE tokens (id INTEGER, token UUID);")

	_, err := New(a, DefaultOptions()).Run(context.Background())
	if !errors.Is(err, dumperr.ErrCatalogDrift) {
		t.Fatalf("Run() error = %v, want ErrCatalogDrift", err)
	}
	if dumperr.Retryable(err) {
		t.Error("catalog drift must not be retryable")
	}
}

func TestDumper_InvalidOptions(t *testing.T) {
	a := setup(t, fixture)

	tests := []Options{
		{},
		{Data: DefaultDataOptions(), Compress: "gzip"},
		{Data: DefaultDataOptions(), Compress: "lz4", DumpToFile: "x.sql"},
		{Data: DefaultDataOptions(), Compress: "zstd", DumpToFile: "x.sql", Append: true},
	}
	for i, opts := range tests {
		if _, err := New(a, opts).Run(context.Background()); !errors.Is(err, dumperr.ErrConfig) {
			t.Errorf("case %d: error = %v, want ErrConfig", i, err)
		}
	}
}

type memAppender struct {
	entries []*audit.Entry
}

func (m *memAppender) Append(ctx context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAppender) Close() error { return nil }

func TestDumper_AuditAndTableHook(t *testing.T) {
	a := setup(t, fixture)

	mem := &memAppender{}
	logger := audit.NewLogger(audit.LoggerConfig{}, mem)
	defer logger.Close()

	var hooked []string
	opts := Options{Schema: DefaultSchemaOptions(), Data: DefaultDataOptions()}
	res := run(t, a, opts,
		WithAudit(logger),
		WithDatabase("shop"),
		WithTableHook(func(s TableStats) { hooked = append(hooked, s.Name) }),
	)

	if strings.Join(hooked, ",") != "flags,log,people" {
		t.Errorf("hooked = %v", hooked)
	}

	counts := map[audit.Operation]int{}
	for _, e := range mem.entries {
		counts[e.Operation]++
	}
	if counts[audit.OpSchema] != 1 || counts[audit.OpData] != 3 || counts[audit.OpDump] != 1 {
		t.Errorf("audit counts = %v", counts)
	}

	last := mem.entries[len(mem.entries)-1]
	if last.Operation != audit.OpDump || last.Database != "shop" || last.Rows != res.TotalRows() {
		t.Errorf("unexpected dump entry: %+v", last)
	}
	for _, e := range mem.entries {
		if e.DumpID != res.ID {
			t.Errorf("%s entry dump_id = %q, want %q", e.Operation, e.DumpID, res.ID)
		}
	}
}
