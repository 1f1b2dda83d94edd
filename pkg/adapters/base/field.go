package base

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ruslano69/tdtp-mysqldump/pkg/core/literal"
)

// TimeLayout - формат значений времени, которые драйвер вернул как time.Time
const TimeLayout = "2006-01-02 15:04:05.999999"

// Field принимает значение поля прямо от драйвера.
// Байты действительны только до следующего rows.Next.
type Field struct {
	raw  []byte
	buf  []byte // собственный буфер для значений, не являющихся []byte
	null bool
}

var _ literal.Field = (*Field)(nil)

// Scan реализует sql.Scanner
func (f *Field) Scan(src any) error {
	f.null = false
	f.buf = f.buf[:0]

	switch v := src.(type) {
	case nil:
		f.null = true
		f.raw = nil
		return nil
	case []byte:
		f.raw = v
		return nil
	case string:
		f.buf = append(f.buf, v...)
	case int64:
		f.buf = strconv.AppendInt(f.buf, v, 10)
	case uint64:
		f.buf = strconv.AppendUint(f.buf, v, 10)
	case float32:
		f.buf = strconv.AppendFloat(f.buf, float64(v), 'g', -1, 32)
	case float64:
		f.buf = strconv.AppendFloat(f.buf, v, 'g', -1, 64)
	case bool:
		if v {
			f.buf = append(f.buf, '1')
		} else {
			f.buf = append(f.buf, '0')
		}
	case time.Time:
		f.buf = v.AppendFormat(f.buf, TimeLayout)
	default:
		return fmt.Errorf("unsupported driver value %T", src)
	}
	f.raw = f.buf
	return nil
}

// IsNull реализует literal.Field
func (f *Field) IsNull() bool { return f.null }

// String реализует literal.Field
func (f *Field) String() string { return string(f.raw) }

// Bytes реализует literal.Field
func (f *Field) Bytes() []byte { return f.raw }
