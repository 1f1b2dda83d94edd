// Package writer доставляет текст дампа в приемники: файл, поток и память.
//
// Запись синхронная: Write возвращается после того, как все приемники
// приняли фрагмент, поэтому медленный приемник тормозит чтение строк.
// Close - ожидаемая финализация: сброс компрессора, буфера, fsync и закрытие файла.
package writer

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// Section - раздел дампа
type Section string

const (
	SectionHeader    Section = "header"
	SectionSchema    Section = "schema"
	SectionData      Section = "data"
	SectionTrigger   Section = "trigger"
	SectionProcedure Section = "procedure"
	SectionFooter    Section = "footer"
)

// Кодеки сжатия файла
const (
	CodecNone = ""
	CodecGzip = "gzip"
	CodecZstd = "zstd"
)

const bufferSize = 64 * 1024

// Options - настройки приемников
type Options struct {
	// FilePath - путь к файлу дампа. Пустой путь отключает файловый приемник.
	FilePath string
	// Append дописывает в существующий файл вместо усечения
	Append bool
	// Stream - дополнительный потоковый приемник (несжатый текст)
	Stream io.Writer
	// Keep - разделы, текст которых собирается в памяти.
	// Остальные разделы в памяти не удерживаются.
	Keep []Section
	// Codec сжимает файл: "", "gzip" или "zstd"
	Codec string
	// Level - уровень сжатия. 0 - уровень кодека по умолчанию.
	Level int
}

// Writer - набор приемников одного дампа
type Writer struct {
	opts Options

	file   *os.File
	buf    *bufio.Writer
	comp   io.WriteCloser
	out    io.Writer
	hasher *xxh3.Hasher

	current  Section
	keep     map[Section]bool
	sections map[Section]*strings.Builder

	written int64
	closed  bool
}

// New открывает приемники.
// Файл создается (или усекается) сразу, чтобы ошибки прав доступа проявились до выгрузки.
func New(opts Options) (*Writer, error) {
	switch opts.Codec {
	case CodecNone, CodecGzip, CodecZstd:
	default:
		return nil, fmt.Errorf("%w: unsupported codec %q", dumperr.ErrConfig, opts.Codec)
	}

	w := &Writer{
		opts:     opts,
		keep:     make(map[Section]bool, len(opts.Keep)),
		sections: make(map[Section]*strings.Builder),
	}
	for _, s := range opts.Keep {
		w.keep[s] = true
	}

	if opts.FilePath == "" {
		return w, nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if opts.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(opts.FilePath, flags, 0o644)
	if err != nil {
		return nil, dumperr.Sink("open dump file", err)
	}
	w.file = file
	w.hasher = xxh3.New()
	w.buf = bufio.NewWriterSize(io.MultiWriter(file, w.hasher), bufferSize)
	w.out = w.buf

	comp, err := newCompressor(opts.Codec, opts.Level, w.buf)
	if err != nil {
		file.Close()
		return nil, err
	}
	if comp != nil {
		w.comp = comp
		w.out = comp
	}

	return w, nil
}

func newCompressor(codec string, level int, dst io.Writer) (io.WriteCloser, error) {
	switch codec {
	case CodecGzip:
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gz, err := gzip.NewWriterLevel(dst, level)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip level %d: %v", dumperr.ErrConfig, level, err)
		}
		return gz, nil

	case CodecZstd:
		if level == 0 {
			level = 3
		}
		enc, err := zstd.NewWriter(dst,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(4),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return enc, nil
	}
	return nil, nil
}

// Ext возвращает расширение файла для кодека
func Ext(codec string) string {
	switch codec {
	case CodecGzip:
		return ".gz"
	case CodecZstd:
		return ".zst"
	}
	return ""
}

// Begin переключает текущий раздел
func (w *Writer) Begin(s Section) {
	w.current = s
	if w.keep[s] {
		if _, ok := w.sections[s]; !ok {
			w.sections[s] = &strings.Builder{}
		}
	}
}

// Write передает фрагмент во все приемники
func (w *Writer) Write(chunk string) error {
	if w.closed {
		return dumperr.Sink("write", os.ErrClosed)
	}

	if w.out != nil {
		if _, err := io.WriteString(w.out, chunk); err != nil {
			return dumperr.Sink("write dump file", err)
		}
	}

	if w.opts.Stream != nil {
		if _, err := io.WriteString(w.opts.Stream, chunk); err != nil {
			return dumperr.Sink("write stream", err)
		}
	}

	if sb, ok := w.sections[w.current]; ok {
		sb.WriteString(chunk)
	}

	w.written += int64(len(chunk))
	return nil
}

// Writeln записывает фрагмент с переводом строки
func (w *Writer) Writeln(chunk string) error {
	return w.Write(chunk + "\n")
}

// Close завершает запись. Повторный вызов ничего не делает.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.file == nil {
		return nil
	}

	var first error
	keep := func(op string, err error) {
		if err != nil && first == nil {
			first = dumperr.Sink(op, err)
		}
	}

	if w.comp != nil {
		keep("close compressor", w.comp.Close())
	}
	keep("flush dump file", w.buf.Flush())
	keep("sync dump file", w.file.Sync())
	keep("close dump file", w.file.Close())

	return first
}

// Section возвращает накопленный текст раздела.
// false - раздел не начинался или не входит в Keep.
func (w *Writer) Section(s Section) (string, bool) {
	sb, ok := w.sections[s]
	if !ok {
		return "", false
	}
	return sb.String(), true
}

// Written возвращает число байт несжатого текста, принятого Write
func (w *Writer) Written() int64 {
	return w.written
}

// Checksum возвращает xxh3 (64-bit, hex) байт, записанных в файл.
// Значение окончательно только после Close.
func (w *Writer) Checksum() string {
	if w.hasher == nil {
		return ""
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], w.hasher.Sum64())
	return hex.EncodeToString(b[:])
}

// Path возвращает путь файлового приемника
func (w *Writer) Path() string {
	return w.opts.FilePath
}
