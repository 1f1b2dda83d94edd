package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// memAppender запоминает записи
type memAppender struct {
	mu      sync.Mutex
	entries []*Entry
	closed  bool
	flushed int
	fail    error
}

func (m *memAppender) Append(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAppender) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed++
	return nil
}

func (m *memAppender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memAppender) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestAuditLogger_Sync(t *testing.T) {
	a, b := &memAppender{}, &memAppender{}
	l := NewLogger(LoggerConfig{DefaultActor: "mysqldump@ci"}, a, b)

	e := NewEntry(OpConnect, StatusSuccess)
	if err := l.Log(context.Background(), e); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if a.len() != 1 || b.len() != 1 {
		t.Fatalf("entries = %d, %d", a.len(), b.len())
	}
	if e.Actor != "mysqldump@ci" {
		t.Errorf("Actor = %q", e.Actor)
	}

	explicit := NewEntry(OpDump, StatusSuccess)
	explicit.Actor = "cron"
	l.Log(context.Background(), explicit)
	if explicit.Actor != "cron" {
		t.Errorf("explicit actor overwritten: %q", explicit.Actor)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !a.closed || !b.closed || a.flushed != 1 {
		t.Errorf("closed = %v/%v, flushed = %d", a.closed, b.closed, a.flushed)
	}
}

func TestAuditLogger_AsyncDrainsOnClose(t *testing.T) {
	mem := &memAppender{}
	l := NewLogger(LoggerConfig{Async: true, BufferSize: 4}, mem)

	for i := 0; i < 50; i++ {
		if err := l.Log(context.Background(), NewEntry(OpData, StatusSuccess)); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if mem.len() != 50 {
		t.Errorf("entries = %d, want 50", mem.len())
	}
}

func TestAuditLogger_Closed(t *testing.T) {
	l := NewLogger(LoggerConfig{}, &memAppender{})
	l.Close()

	if err := l.Log(context.Background(), NewEntry(OpDump, StatusSuccess)); !errors.Is(err, ErrClosed) {
		t.Errorf("Log() after Close error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := l.Log(context.Background(), nil); err == nil {
		t.Error("nil entry accepted")
	}
}

func TestAuditLogger_OnError(t *testing.T) {
	boom := errors.New("disk full")
	ok := &memAppender{}

	var reported []error
	l := NewLogger(LoggerConfig{OnError: func(err error) { reported = append(reported, err) }},
		&memAppender{fail: boom}, ok)
	defer l.Close()

	err := l.Log(context.Background(), NewEntry(OpReport, StatusSuccess))
	if !errors.Is(err, boom) {
		t.Errorf("Log() error = %v", err)
	}
	if ok.len() != 1 {
		t.Error("healthy appender skipped after failure")
	}
	if len(reported) != 1 || !errors.Is(reported[0], boom) {
		t.Errorf("reported = %v", reported)
	}
}

func TestForDump(t *testing.T) {
	mem := &memAppender{}
	l := ForDump(NewLogger(LoggerConfig{}, mem), "d1", "shop")

	l.Log(context.Background(), NewEntry(OpSchema, StatusSuccess))
	l.Log(context.Background(), NewEntry(OpUpload, StatusSuccess).WithDatabase("other").WithDump("d0"))

	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !mem.closed {
		t.Error("scoped Close did not close the logger")
	}

	first, second := mem.entries[0], mem.entries[1]
	if first.DumpID != "d1" || first.Database != "shop" {
		t.Errorf("first = %+v", first)
	}
	if second.DumpID != "d0" || second.Database != "other" {
		t.Errorf("explicit values overwritten: %+v", second)
	}
}

func TestNullLogger(t *testing.T) {
	var l Logger = NewNullLogger()
	if err := l.Log(context.Background(), NewEntry(OpDump, StatusSuccess)); err != nil {
		t.Errorf("Log() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
