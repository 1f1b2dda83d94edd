// Package audit ведет журнал шагов дампа и действий после него.
//
// Записи одного дампа связаны общим DumpID. Журнал не влияет на результат
// дампа: ошибки записи уходят в LoggerConfig.OnError.
package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// Level - детализация записей в приемнике
type Level int

const (
	// LevelMinimal - только исход шага и его объект
	LevelMinimal Level = iota
	// LevelStandard - плюс объемы, длительность, текст ошибки
	LevelStandard
	// LevelFull - плюс метаданные
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// ParseLevel разбирает имя уровня. Пустая строка - LevelStandard.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return LevelMinimal, nil
	case "", "standard":
		return LevelStandard, nil
	case "full":
		return LevelFull, nil
	default:
		return LevelStandard, fmt.Errorf("%w: unknown audit level %q", dumperr.ErrConfig, s)
	}
}

// Operation - шаг дампа
type Operation string

const (
	OpConnect   Operation = "connect"
	OpDump      Operation = "dump"
	OpSchema    Operation = "schema"
	OpData      Operation = "data" // одна запись на таблицу
	OpTrigger   Operation = "trigger"
	OpProcedure Operation = "procedure"
	OpUpload    Operation = "upload"  // файл дампа в объектное хранилище
	OpNotify    Operation = "notify"  // событие в брокер
	OpPublish   Operation = "publish" // результат в Redis или метрики в pushgateway
	OpReport    Operation = "report"
)

// Status - исход шага
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Entry - запись журнала
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	DumpID    string    `json:"dump_id,omitempty"`
	Operation Operation `json:"operation"`
	Status    Status    `json:"status"`

	// Actor - кто запустил: mysqldump@<пользователь ОС>
	Actor    string `json:"actor,omitempty"`
	Database string `json:"database,omitempty"`
	// Source - тип адаптера или путь к файлу-источнику шага
	Source string `json:"source,omitempty"`
	// Target - файл дампа, ключ S3, топик и т.п.
	Target string `json:"target,omitempty"`
	// Object - таблица или раздел, к которому относится запись
	Object string `json:"object,omitempty"`

	Rows     int64         `json:"rows,omitempty"`
	Bytes    int64         `json:"bytes,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`

	ErrorClass string `json:"error_class,omitempty"`
	Error      string `json:"error,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewEntry создает запись с новым ID и текущим временем
func NewEntry(op Operation, status Status) *Entry {
	return &Entry{
		ID:        "audit-" + uuid.NewString(),
		Timestamp: time.Now(),
		Operation: op,
		Status:    status,
	}
}

func (e *Entry) WithDump(id string) *Entry {
	e.DumpID = id
	return e
}

func (e *Entry) WithDatabase(name string) *Entry {
	e.Database = name
	return e
}

func (e *Entry) WithSource(source string) *Entry {
	e.Source = source
	return e
}

func (e *Entry) WithTarget(target string) *Entry {
	e.Target = target
	return e
}

func (e *Entry) WithObject(object string) *Entry {
	e.Object = object
	return e
}

func (e *Entry) WithRows(n int64) *Entry {
	e.Rows = n
	return e
}

func (e *Entry) WithBytes(n int64) *Entry {
	e.Bytes = n
	return e
}

func (e *Entry) WithDuration(d time.Duration) *Entry {
	e.Duration = d
	return e
}

// WithError помечает запись как неудачную. nil ничего не меняет.
func (e *Entry) WithError(err error) *Entry {
	if err == nil {
		return e
	}
	e.Status = StatusFailure
	e.Error = err.Error()
	e.ErrorClass = dumperr.Class(err)
	return e
}

func (e *Entry) WithMetadata(key string, value any) *Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// Failed сообщает, завершился ли шаг ошибкой
func (e *Entry) Failed() bool {
	return e.Status == StatusFailure
}

// ToJSON - одна строка JSON без перевода строки
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// String - строка текстового журнала:
//
//	2026-01-02T15:04:05Z data success shop.users rows=3 bytes=120 dur=12ms dump=<id>
func (e *Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", e.Timestamp.Format(time.RFC3339), e.Operation, e.Status)

	switch {
	case e.Database != "" && e.Object != "":
		b.WriteString(" " + e.Database + "." + e.Object)
	case e.Database != "":
		b.WriteString(" " + e.Database)
	case e.Object != "":
		b.WriteString(" " + e.Object)
	}
	if e.Target != "" {
		b.WriteString(" -> " + e.Target)
	}
	if e.Rows > 0 {
		fmt.Fprintf(&b, " rows=%d", e.Rows)
	}
	if e.Bytes > 0 {
		fmt.Fprintf(&b, " bytes=%d", e.Bytes)
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, " dur=%s", e.Duration.Round(time.Millisecond))
	}
	if e.ErrorClass != "" {
		fmt.Fprintf(&b, " class=%s error=%q", e.ErrorClass, e.Error)
	}
	if e.DumpID != "" {
		b.WriteString(" dump=" + e.DumpID)
	}
	if e.Actor != "" {
		b.WriteString(" by=" + e.Actor)
	}
	return b.String()
}

// Redact возвращает копию записи с полями, допустимыми на уровне
func (e *Entry) Redact(level Level) *Entry {
	c := *e
	c.Metadata = nil

	switch level {
	case LevelMinimal:
		c.Actor, c.Source, c.Target = "", "", ""
		c.Rows, c.Bytes, c.Duration = 0, 0, 0
		c.Error = ""
	case LevelStandard:
	default:
		if len(e.Metadata) > 0 {
			c.Metadata = make(map[string]any, len(e.Metadata))
			for k, v := range e.Metadata {
				c.Metadata[k] = v
			}
		}
	}
	return &c
}
