// mysqldump streams a MySQL database as a SQL script.
//
// Usage:
//
//	mysqldump [--config path] [--output file] [--tables a,b] [options]
//	mysqldump --serve [--addr :8080] [--dev]
//
// Environment:
//
//	MYSQLDUMP_PASSWORD  database password (used when the config has none)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"

	_ "github.com/ruslano69/tdtp-mysqldump/pkg/adapters/mysql"
	_ "github.com/ruslano69/tdtp-mysqldump/pkg/adapters/sqlite"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags, err := ParseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if *flags.Version {
		PrintVersion(stdout)
		return 0
	}
	if *flags.Help {
		PrintHelp(stdout)
		return 0
	}
	if *flags.CreateConfig {
		return createConfigTemplate(stdout, stderr)
	}

	config, err := LoadConfig(*flags.Config)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	if err := flags.Apply(config); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	log := newLogger(config.Log, stderr)

	if err := config.Validate(); err != nil {
		log.Error().Err(err).Str("config", *flags.Config).Msg("invalid configuration")
		return exitCode(err)
	}

	p, err := InitPipeline(ctx, config, log, *flags.Dev)
	if err != nil {
		log.Error().Err(err).Msg("initialization failed")
		return exitCode(err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	if *flags.Dev {
		log.Warn().Str("redis", config.ResultLog.Address).Msg("DEV MODE: results go to in-process miniredis")
	}

	if *flags.Serve {
		if err := Serve(ctx, p); err != nil {
			log.Error().Err(err).Msg("server failed")
			return 1
		}
		return 0
	}

	opts := config.DumpOptions()
	if config.Output.File == "" {
		opts.Stream = stdout
	}

	res, dumpErr := p.Dump(ctx, opts)
	postErr := p.Finish(ctx, res, dumpErr)

	if dumpErr != nil {
		log.Error().Err(dumpErr).Str("class", dumperr.Class(dumpErr)).Msg("dump failed")
		return exitCode(dumpErr)
	}
	if postErr != nil {
		return 1
	}

	ev := log.Info().
		Str("dump_id", res.ID).
		Int("tables", len(res.Stats)).
		Int64("rows", res.TotalRows())
	if res.File != "" {
		ev = ev.Str("file", res.File).Str("checksum", res.Checksum)
	}
	ev.Msg("done")
	return 0
}

// newLogger builds the process logger: console for humans, JSON for collectors
func newLogger(cfg LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var w io.Writer = out
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("app", "mysqldump").Logger()
}

// createConfigTemplate creates a sample configuration file
func createConfigTemplate(stdout, stderr io.Writer) int {
	if err := SaveConfig("config.yaml", CreateSampleConfig()); err != nil {
		fmt.Fprintf(stderr, "Error: failed to save config: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "✓ Created sample config: config.yaml")
	fmt.Fprintln(stdout, "Edit the file with your database credentials and run:")
	fmt.Fprintln(stdout, "  mysqldump --config config.yaml")
	return 0
}
