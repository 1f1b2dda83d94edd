package main

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

func TestParseFlags_Apply(t *testing.T) {
	flags, err := ParseFlags([]string{
		"--tables", "users, orders,,",
		"--where", "users=id > 10",
		"--where", "orders=total = 0",
		"--no-triggers",
		"--procedures",
		"--max-rows", "250",
		"--output", "shop.sql",
		"--codec", "zstd",
		"--upload",
		"--notify",
		"--report", "run.xlsx",
		"--addr", ":9999",
	}, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := DefaultConfig()
	if err := flags.Apply(cfg); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if want := []string{"users", "orders"}; !reflect.DeepEqual(cfg.Dump.Tables, want) {
		t.Errorf("Tables = %v, want %v", cfg.Dump.Tables, want)
	}
	if cfg.Dump.Data.Where["users"] != "id > 10" || cfg.Dump.Data.Where["orders"] != "total = 0" {
		t.Errorf("Where = %v", cfg.Dump.Data.Where)
	}
	if want := []string{SectionSchema, SectionData, SectionProcedure}; !reflect.DeepEqual(cfg.Dump.Sections, want) {
		t.Errorf("Sections = %v, want %v", cfg.Dump.Sections, want)
	}
	if cfg.Dump.Data.MaxRowsPerInsertStatement != 250 {
		t.Errorf("MaxRows = %d", cfg.Dump.Data.MaxRowsPerInsertStatement)
	}
	if cfg.Output.File != "shop.sql.zst" || cfg.Output.Compress != "zstd" {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if !cfg.Storage.S3.Enabled || !cfg.Broker.Enabled {
		t.Error("--upload and --notify must enable their steps")
	}
	if cfg.Report.File != "run.xlsx" || cfg.Server.Addr != ":9999" {
		t.Errorf("Report = %q, Addr = %q", cfg.Report.File, cfg.Server.Addr)
	}
}

func TestParseFlags_CompressDefaultsToGzip(t *testing.T) {
	flags, err := ParseFlags([]string{"--compress", "--output", "shop.sql.gz"}, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := DefaultConfig()
	if err := flags.Apply(cfg); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if cfg.Output.Compress != "gzip" {
		t.Errorf("Compress = %q, want gzip", cfg.Output.Compress)
	}
	if cfg.Output.File != "shop.sql.gz" {
		t.Errorf("File = %q, extension must not be doubled", cfg.Output.File)
	}
}

func TestParseFlags_KeepsConfigWhenUnset(t *testing.T) {
	flags, err := ParseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := DefaultConfig()
	cfg.Dump.Tables = []string{"users"}
	cfg.Output.File = "from-config.sql"
	want := *cfg

	if err := flags.Apply(cfg); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !reflect.DeepEqual(cfg.Dump.Tables, want.Dump.Tables) || cfg.Output != want.Output {
		t.Errorf("config changed without flags: %+v", cfg)
	}
	if *flags.Config != "config.yaml" {
		t.Errorf("Config default = %q", *flags.Config)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"where without condition", []string{"--where", "users"}},
		{"where without table", []string{"--where", "=id > 1"}},
		{"positional argument", []string{"shop"}},
		{"unknown flag", []string{"--tablez", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFlags(tt.args, io.Discard); err == nil {
				t.Error("ParseFlags() expected error")
			}
		})
	}
}

func TestFlags_ApplyRejectsNegativeMaxRows(t *testing.T) {
	flags, err := ParseFlags([]string{"--max-rows", "-1"}, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if err := flags.Apply(DefaultConfig()); !errors.Is(err, dumperr.ErrConfig) {
		t.Errorf("Apply() error = %v, want ErrConfig", err)
	}
}

func TestWhereFlag_String(t *testing.T) {
	w := whereFlag{"b": "x = 1", "a": "y = 2"}
	if got := w.String(); got != "a=y = 2,b=x = 1" {
		t.Errorf("String() = %q", got)
	}
}
