package writer

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

func writeSections(t *testing.T, w *Writer) {
	t.Helper()
	w.Begin(SectionSchema)
	if err := w.Writeln("CREATE TABLE `a` (`id` int);"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	w.Begin(SectionData)
	if err := w.Writeln("INSERT INTO `a` (`id`) VALUES (1);"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

const wantText = "CREATE TABLE `a` (`id` int);\nINSERT INTO `a` (`id`) VALUES (1);\n"

func TestWriter_FileTruncateAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.sql")
	if err := os.WriteFile(path, []byte("old content\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(Options{FilePath: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	writeSections(t, w)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != wantText {
		t.Fatalf("file = %q, want %q", got, wantText)
	}

	w, err = New(Options{FilePath: path, Append: true})
	if err != nil {
		t.Fatalf("New(append) error = %v", err)
	}
	w.Write("-- more\n")
	w.Close()

	got, _ = os.ReadFile(path)
	if string(got) != wantText+"-- more\n" {
		t.Errorf("appended file = %q", got)
	}
}

func TestWriter_Checksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.sql")
	w, err := New(Options{FilePath: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	writeSections(t, w)
	w.Close()

	data, _ := os.ReadFile(path)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], xxh3.Hash(data))

	if got, want := w.Checksum(), hex.EncodeToString(b[:]); got != want {
		t.Errorf("Checksum() = %s, want %s", got, want)
	}
}

func TestWriter_Compression(t *testing.T) {
	tests := []struct {
		codec  string
		decode func(r io.Reader) (io.Reader, error)
	}{
		{CodecGzip, func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
		{CodecZstd, func(r io.Reader) (io.Reader, error) { return zstd.NewReader(r) }},
	}

	for _, tt := range tests {
		t.Run(tt.codec, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "dump.sql"+Ext(tt.codec))
			var stream bytes.Buffer

			w, err := New(Options{FilePath: path, Codec: tt.codec, Stream: &stream})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			writeSections(t, w)
			if err := w.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			r, err := tt.decode(f)
			if err != nil {
				t.Fatalf("decoder error = %v", err)
			}
			plain, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(plain) != wantText {
				t.Errorf("decompressed = %q", plain)
			}

			// Потоковый приемник получает несжатый текст
			if stream.String() != wantText {
				t.Errorf("stream = %q", stream.String())
			}
		})
	}
}

func TestWriter_KeepPerSection(t *testing.T) {
	w, err := New(Options{Keep: []Section{SectionSchema, SectionData, SectionTrigger, SectionProcedure}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	writeSections(t, w)
	w.Begin(SectionTrigger)
	w.Close()

	schema, ok := w.Section(SectionSchema)
	if !ok || schema != "CREATE TABLE `a` (`id` int);\n" {
		t.Errorf("schema = %q, %v", schema, ok)
	}
	data, ok := w.Section(SectionData)
	if !ok || !strings.HasPrefix(data, "INSERT INTO") {
		t.Errorf("data = %q, %v", data, ok)
	}
	// Начатый, но пустой раздел присутствует
	if trig, ok := w.Section(SectionTrigger); !ok || trig != "" {
		t.Errorf("trigger = %q, %v", trig, ok)
	}
	if _, ok := w.Section(SectionProcedure); ok {
		t.Error("procedure section was never started")
	}
}

func TestWriter_KeepOnlyListedSections(t *testing.T) {
	w, _ := New(Options{Keep: []Section{SectionSchema}})
	writeSections(t, w)
	w.Close()

	if _, ok := w.Section(SectionSchema); !ok {
		t.Error("schema section must be kept")
	}
	if _, ok := w.Section(SectionData); ok {
		t.Error("data section must not be kept")
	}
}

func TestWriter_StreamOnlyRetainsNothing(t *testing.T) {
	w, err := New(Options{Stream: io.Discard})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	w.Begin(SectionData)
	row := strings.Repeat("x", 1024) + "\n"
	for i := 0; i < 10000; i++ {
		if err := w.Write(row); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	w.Close()

	if _, ok := w.Section(SectionData); ok {
		t.Error("stream-only writer must not accumulate")
	}
	if w.Written() != int64(len(row))*10000 {
		t.Errorf("Written() = %d", w.Written())
	}
	if w.Checksum() != "" {
		t.Error("checksum without file sink must be empty")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriter_SinkErrors(t *testing.T) {
	w, _ := New(Options{Stream: failingWriter{}})
	if err := w.Write("x"); !errors.Is(err, dumperr.ErrSink) {
		t.Errorf("stream failure = %v, want ErrSink", err)
	}

	_, err := New(Options{FilePath: filepath.Join(t.TempDir(), "missing", "dump.sql")})
	if !errors.Is(err, dumperr.ErrSink) {
		t.Errorf("open failure = %v, want ErrSink", err)
	}

	_, err = New(Options{Codec: "lz4"})
	if !errors.Is(err, dumperr.ErrConfig) {
		t.Errorf("bad codec = %v, want ErrConfig", err)
	}

	w, _ = New(Options{})
	w.Close()
	if err := w.Write("x"); !errors.Is(err, dumperr.ErrSink) {
		t.Errorf("write after close = %v, want ErrSink", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
