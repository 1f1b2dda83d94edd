package main

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
	"github.com/ruslano69/tdtp-mysqldump/pkg/writer"
)

// Flags holds all command-line flags
type Flags struct {
	// Selection
	Tables  *string
	Exclude *bool
	Where   whereFlag

	// Sections
	NoSchema   *bool
	NoData     *bool
	NoTriggers *bool
	Procedures *bool
	MaxRows    *int

	// Output
	Config   *string
	Output   *string
	Compress *bool
	Codec    *string

	// Post-dump steps
	Upload *bool
	Notify *bool
	Report *string

	// Serve mode
	Serve *bool
	Addr  *string
	Dev   *bool

	// Misc
	CreateConfig *bool
	Version      *bool
	Help         *bool
}

// whereFlag collects repeated --where table=condition
type whereFlag map[string]string

func (w whereFlag) String() string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+w[k])
	}
	return strings.Join(parts, ",")
}

func (w whereFlag) Set(value string) error {
	table, cond, ok := strings.Cut(value, "=")
	table = strings.TrimSpace(table)
	if !ok || table == "" || strings.TrimSpace(cond) == "" {
		return fmt.Errorf("expected table=condition, got %q", value)
	}
	w[table] = cond
	return nil
}

// ParseFlags defines and parses command-line flags
func ParseFlags(args []string, output io.Writer) (*Flags, error) {
	fs := flag.NewFlagSet("mysqldump", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { PrintHelp(output) }

	f := &Flags{Where: whereFlag{}}

	// Selection
	f.Tables = fs.String("tables", "", "Comma-separated tables to dump (default: all)")
	f.Exclude = fs.Bool("exclude", false, "Treat --tables as a list of tables to skip")
	fs.Var(f.Where, "where", "Row filter for a table: table=condition (repeatable)")

	// Sections
	f.NoSchema = fs.Bool("no-schema", false, "Skip CREATE TABLE / VIEW statements")
	f.NoData = fs.Bool("no-data", false, "Skip INSERT statements")
	f.NoTriggers = fs.Bool("no-triggers", false, "Skip triggers")
	f.Procedures = fs.Bool("procedures", false, "Dump stored procedures")
	f.MaxRows = fs.Int("max-rows", 0, "Rows per INSERT statement (default: from config)")

	// Output
	f.Config = fs.String("config", "config.yaml", "Configuration file path")
	f.Output = fs.String("output", "", "Dump file path (default: from config, then stdout)")
	f.Compress = fs.Bool("compress", false, "Compress the dump file")
	f.Codec = fs.String("codec", "", "Compression codec: gzip, zstd (implies --compress)")

	// Post-dump steps
	f.Upload = fs.Bool("upload", false, "Upload the dump file to S3 (storage.s3)")
	f.Notify = fs.Bool("notify", false, "Send a dump-completed event to the broker")
	f.Report = fs.String("report", "", "Write an xlsx run report to this path")

	// Serve mode
	f.Serve = fs.Bool("serve", false, "Run the HTTP dump server")
	f.Addr = fs.String("addr", "", "Listen address override (e.g. :8080)")
	f.Dev = fs.Bool("dev", false, "Publish results to an in-process Redis")

	// Misc
	f.CreateConfig = fs.Bool("create-config", false, "Create sample config.yaml")
	f.Version = fs.Bool("version", false, "Show version information")
	f.Help = fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	return f, nil
}

// Apply overrides config values with the flags that were given
func (f *Flags) Apply(cfg *Config) error {
	if *f.Tables != "" {
		cfg.Dump.Tables = splitList(*f.Tables)
	}
	if *f.Exclude {
		cfg.Dump.Exclude = true
	}
	for table, cond := range f.Where {
		if cfg.Dump.Data.Where == nil {
			cfg.Dump.Data.Where = map[string]string{}
		}
		cfg.Dump.Data.Where[table] = cond
	}

	if *f.NoSchema {
		cfg.Dump.setSection(SectionSchema, false)
	}
	if *f.NoData {
		cfg.Dump.setSection(SectionData, false)
	}
	if *f.NoTriggers {
		cfg.Dump.setSection(SectionTrigger, false)
	}
	if *f.Procedures {
		cfg.Dump.setSection(SectionProcedure, true)
	}
	if *f.MaxRows < 0 {
		return fmt.Errorf("%w: --max-rows must be positive", dumperr.ErrConfig)
	}
	if *f.MaxRows > 0 {
		cfg.Dump.Data.MaxRowsPerInsertStatement = *f.MaxRows
	}

	if *f.Output != "" {
		cfg.Output.File = *f.Output
	}
	switch {
	case *f.Codec != "":
		cfg.Output.Compress = *f.Codec
	case *f.Compress && cfg.Output.Compress == writer.CodecNone:
		cfg.Output.Compress = writer.CodecGzip
	}
	if cfg.Output.Compress != writer.CodecNone && cfg.Output.File != "" {
		ext := writer.Ext(cfg.Output.Compress)
		if ext != "" && !strings.HasSuffix(cfg.Output.File, ext) {
			cfg.Output.File += ext
		}
	}

	if *f.Upload {
		cfg.Storage.S3.Enabled = true
	}
	if *f.Notify {
		cfg.Broker.Enabled = true
	}
	if *f.Report != "" {
		cfg.Report.File = *f.Report
	}
	if *f.Addr != "" {
		cfg.Server.Addr = *f.Addr
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
