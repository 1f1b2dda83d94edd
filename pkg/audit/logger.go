package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed возвращается при записи в закрытый журнал
var ErrClosed = errors.New("audit logger is closed")

// Appender - приемник записей журнала
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
	Close() error
}

// flusher реализуют приемники с буфером
type flusher interface {
	Flush() error
}

// Logger - журнал, в который пишет дамп
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
	Close() error
}

// LoggerConfig - настройки AuditLogger
type LoggerConfig struct {
	// Async - запись в приемники из отдельной горутины.
	// Дамп не ждет медленный приемник; при переполнении очереди запись синхронная.
	Async bool

	// BufferSize - длина очереди в режиме Async (по умолчанию 256)
	BufferSize int

	// DefaultActor подставляется в записи без Actor
	DefaultActor string

	// OnError получает ошибки приемников
	OnError func(error)
}

// AuditLogger рассылает записи по приемникам
type AuditLogger struct {
	config    LoggerConfig
	appenders []Appender

	mu     sync.RWMutex
	closed bool
	queue  chan *Entry
	wg     sync.WaitGroup
}

// NewLogger создает журнал поверх приемников
func NewLogger(config LoggerConfig, appenders ...Appender) *AuditLogger {
	l := &AuditLogger{config: config, appenders: appenders}

	if config.Async {
		size := config.BufferSize
		if size <= 0 {
			size = 256
		}
		l.queue = make(chan *Entry, size)
		l.wg.Add(1)
		go l.drain()
	}
	return l
}

// Log дополняет запись значениями по умолчанию и отдает приемникам
func (l *AuditLogger) Log(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("audit entry is nil")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Actor == "" {
		entry.Actor = l.config.DefaultActor
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}

	if l.queue != nil {
		select {
		case l.queue <- entry:
			return nil
		default:
		}
	}
	return l.write(ctx, entry)
}

func (l *AuditLogger) drain() {
	defer l.wg.Done()
	for entry := range l.queue {
		_ = l.write(context.Background(), entry)
	}
}

// write отдает запись всем приемникам, первая ошибка возвращается
func (l *AuditLogger) write(ctx context.Context, entry *Entry) error {
	var first error
	for _, a := range l.appenders {
		if err := a.Append(ctx, entry); err != nil {
			if first == nil {
				first = err
			}
			l.report(fmt.Errorf("audit %s: %w", entry.Operation, err))
		}
	}
	return first
}

// Flush сбрасывает буферы приемников
func (l *AuditLogger) Flush() error {
	var errs []error
	for _, a := range l.appenders {
		if f, ok := a.(flusher); ok {
			errs = append(errs, f.Flush())
		}
	}
	return errors.Join(errs...)
}

// Close дожидается очереди и закрывает приемники. Повторный вызов ничего не делает.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	if l.queue != nil {
		close(l.queue)
	}
	l.mu.Unlock()

	l.wg.Wait()

	errs := []error{l.Flush()}
	for _, a := range l.appenders {
		errs = append(errs, a.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		l.report(err)
	}
	return err
}

func (l *AuditLogger) report(err error) {
	if l.config.OnError != nil {
		l.config.OnError(err)
	}
}

// dumpScope проставляет записям идентификатор дампа и имя БД
type dumpScope struct {
	Logger
	dumpID   string
	database string
}

// ForDump возвращает журнал, который помечает записи одного дампа.
// Close закрывает исходный журнал.
func ForDump(l Logger, dumpID, database string) Logger {
	return &dumpScope{Logger: l, dumpID: dumpID, database: database}
}

func (s *dumpScope) Log(ctx context.Context, entry *Entry) error {
	if entry != nil {
		if entry.DumpID == "" {
			entry.DumpID = s.dumpID
		}
		if entry.Database == "" {
			entry.Database = s.database
		}
	}
	return s.Logger.Log(ctx, entry)
}

// NullLogger ничего не пишет
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (NullLogger) Log(context.Context, *Entry) error { return nil }

func (NullLogger) Close() error { return nil }
