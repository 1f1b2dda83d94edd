package main

import (
	"fmt"
	"io"
)

const version = "1.0.0"

// PrintVersion prints version information
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "mysqldump version %s\n", version)
	fmt.Fprintln(w, "Streaming MySQL dump engine")
}

// PrintHelp prints usage with examples
func PrintHelp(w io.Writer) {
	fmt.Fprintln(w, "mysqldump - streaming MySQL dump")
	fmt.Fprintf(w, "Version: %s\n\n", version)

	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  mysqldump [options]")
	fmt.Fprintln(w, "  mysqldump --serve [--addr :8080] [--dev]")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "SELECTION:")
	fmt.Fprintln(w, "  --tables <a,b>             Tables to dump (default: all)")
	fmt.Fprintln(w, "  --exclude                  Dump everything except --tables")
	fmt.Fprintln(w, "  --where <table=cond>       Row filter, repeatable")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "SECTIONS:")
	fmt.Fprintln(w, "  --no-schema                Skip CREATE statements")
	fmt.Fprintln(w, "  --no-data                  Skip INSERT statements")
	fmt.Fprintln(w, "  --no-triggers              Skip triggers")
	fmt.Fprintln(w, "  --procedures               Include stored procedures")
	fmt.Fprintln(w, "  --max-rows <n>             Rows per INSERT statement")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "OUTPUT:")
	fmt.Fprintln(w, "  --config <file>            Configuration file (default: config.yaml)")
	fmt.Fprintln(w, "  --output <file>            Dump file (default: stdout)")
	fmt.Fprintln(w, "  --compress                 gzip the dump file")
	fmt.Fprintln(w, "  --codec <gzip|zstd>        Compression codec")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "AFTER THE DUMP:")
	fmt.Fprintln(w, "  --upload                   Upload the file to S3 (storage.s3)")
	fmt.Fprintln(w, "  --notify                   Send a dump-completed event (broker)")
	fmt.Fprintln(w, "  --report <file.xlsx>       Write a per-table report")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "SERVER:")
	fmt.Fprintln(w, "  --serve                    GET /dump, /metrics, /healthz, /audit (with audit.database)")
	fmt.Fprintln(w, "  --addr <addr>              Listen address")
	fmt.Fprintln(w, "  --dev                      Results to in-process Redis")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MISC:")
	fmt.Fprintln(w, "  --create-config            Write a sample config.yaml")
	fmt.Fprintln(w, "  --version                  Show version")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  mysqldump --config prod.yaml --output shop.sql --codec zstd")
	fmt.Fprintln(w, "  mysqldump --tables orders --where \"orders=created_at > '2024-01-01'\" --no-schema")
	fmt.Fprintln(w, "  curl 'localhost:8080/dump?tables=users&schema=0' | mysql shop_copy")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "EXIT CODES:")
	fmt.Fprintln(w, "  0 success, 1 connection/sink/post-dump failure, 2 catalog, payload or config error")
}
