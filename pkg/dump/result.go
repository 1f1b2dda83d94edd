package dump

import (
	"time"

	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
)

// Sections - текст разделов дампа.
// nil - раздел не запрашивался или не возвращается; "" - запрошен, но пуст.
type Sections struct {
	Schema    *string `json:"schema,omitempty"`
	Data      *string `json:"data,omitempty"`
	Trigger   *string `json:"trigger,omitempty"`
	Procedure *string `json:"procedure,omitempty"`
}

// TableStats - статистика выгрузки данных одной таблицы
type TableStats struct {
	Name       string        `json:"name"`
	IsView     bool          `json:"is_view"`
	Rows       int64         `json:"rows"`
	Statements int           `json:"statements"`
	Locked     bool          `json:"locked"`
	Skipped    bool          `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

// Result - итог дампа
type Result struct {
	ID       string         `json:"id"`
	Database string         `json:"database"`
	Dump     Sections       `json:"-"`
	Tables   []schema.Table `json:"-"`
	Stats    []TableStats   `json:"tables"`

	Triggers   int `json:"triggers"`
	Procedures int `json:"procedures"`

	File     string    `json:"file,omitempty"`
	Codec    string    `json:"codec,omitempty"`
	Bytes    int64     `json:"bytes"`
	Checksum string    `json:"checksum,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// TotalRows возвращает сумму строк по всем таблицам
func (r *Result) TotalRows() int64 {
	var n int64
	for _, s := range r.Stats {
		n += s.Rows
	}
	return n
}

// Duration возвращает длительность дампа
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
