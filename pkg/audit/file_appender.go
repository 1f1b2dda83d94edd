package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileAppenderConfig - настройки журнала в файле
type FileAppenderConfig struct {
	FilePath string
	// MaxSize - размер файла в МБ, после которого он ротируется (по умолчанию 100)
	MaxSize int64
	// MaxBackups - число хранимых файлов <path>.1 ... <path>.N (по умолчанию 5)
	MaxBackups int
	Level      Level
	// FormatJSON - JSON lines вместо текстовых строк
	FormatJSON bool
}

// FileAppender пишет записи в файл с ротацией по размеру
type FileAppender struct {
	cfg   FileAppenderConfig
	limit int64

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewFileAppender открывает файл на дозапись, создавая каталог
func NewFileAppender(cfg FileAppenderConfig) (*FileAppender, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("audit file path is required")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	fa := &FileAppender{cfg: cfg, limit: cfg.MaxSize << 20}
	if err := fa.open(); err != nil {
		return nil, err
	}
	return fa, nil
}

func (fa *FileAppender) open() error {
	f, err := os.OpenFile(fa.cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat audit file: %w", err)
	}
	fa.file, fa.size = f, info.Size()
	return nil
}

// Append дописывает одну строку
func (fa *FileAppender) Append(_ context.Context, entry *Entry) error {
	e := entry.Redact(fa.cfg.Level)

	var line []byte
	if fa.cfg.FormatJSON {
		b, err := e.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}
		line = append(b, '\n')
	} else {
		line = []byte(e.String() + "\n")
	}

	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file == nil {
		return ErrClosed
	}
	if fa.size > 0 && fa.size+int64(len(line)) > fa.limit {
		if err := fa.rotate(); err != nil {
			return fmt.Errorf("failed to rotate audit file: %w", err)
		}
	}
	n, err := fa.file.Write(line)
	fa.size += int64(n)
	return err
}

// rotate сдвигает <path>.i в <path>.i+1, самый старый удаляется
func (fa *FileAppender) rotate() error {
	if err := fa.file.Close(); err != nil {
		return err
	}
	fa.file = nil

	path := fa.cfg.FilePath
	_ = os.Remove(fmt.Sprintf("%s.%d", path, fa.cfg.MaxBackups))
	for i := fa.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return err
	}
	return fa.open()
}

// Flush - fsync файла
func (fa *FileAppender) Flush() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if fa.file == nil {
		return nil
	}
	return fa.file.Sync()
}

func (fa *FileAppender) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if fa.file == nil {
		return nil
	}
	err := fa.file.Close()
	fa.file = nil
	return err
}

// Size - текущий размер активного файла
func (fa *FileAppender) Size() int64 {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.size
}
