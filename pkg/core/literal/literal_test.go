package literal

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-mysqldump/pkg/core/schema"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

func column(t *testing.T, rawType string) *schema.Column {
	t.Helper()
	col, err := schema.NewColumn("c", rawType, true, 1)
	if err != nil {
		t.Fatalf("NewColumn(%q) error = %v", rawType, err)
	}
	return &col
}

func pointWKB(x, y float64) []byte {
	buf := make([]byte, 4+1+4+16)
	buf[4] = 1
	binary.LittleEndian.PutUint32(buf[5:], 1)
	binary.LittleEndian.PutUint64(buf[9:], math.Float64bits(x))
	binary.LittleEndian.PutUint64(buf[17:], math.Float64bits(y))
	return buf
}

func TestValue_Categories(t *testing.T) {
	s := NewSerializer(false)

	tests := []struct {
		name    string
		rawType string
		field   Field
		want    string
	}{
		{"number keeps driver text", "decimal(30,10)", RawField("12345678901234567890.0123456789"), "12345678901234567890.0123456789"},
		{"string is escaped", "varchar(10)", RawField("it's"), `'it\'s'`},
		{"datetime is quoted", "datetime", RawField("2024-01-02 03:04:05"), "'2024-01-02 03:04:05'"},
		{"bit truncated to length", "bit(6)", RawField([]byte{0x81}), "b'000001'"},
		{"bit spans bytes", "bit(10)", RawField([]byte{0x02, 0x01}), "b'1000000001'"},
		{"hex lowercase padded", "blob", RawField([]byte{0x1A, 0xFF}), "X'1aff'"},
		{"hex small byte", "varbinary(4)", RawField([]byte{0x01, 0x0a}), "X'010a'"},
		{"geometry", "point", RawField(pointWKB(1, 2)), "GeomFromText('POINT(1 2)')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Value(column(t, tt.rawType), tt.field)
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Value() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValue_NullPrecedesCategory(t *testing.T) {
	s := NewSerializer(true)

	for _, raw := range []string{"int", "varchar(3)", "bit(1)", "blob", "point", "json"} {
		got, err := s.Value(column(t, raw), RawField(nil))
		if err != nil {
			t.Fatalf("Value(%s, NULL) error = %v", raw, err)
		}
		if got != Null {
			t.Errorf("Value(%s, NULL) = %s, want NULL", raw, got)
		}
	}

	// Пустое значение - не NULL
	got, _ := s.Value(column(t, "varchar(3)"), RawField([]byte{}))
	if got != "''" {
		t.Errorf("empty string = %s, want ''", got)
	}
}

func TestValue_WrapOnlyBinaryLiterals(t *testing.T) {
	s := NewSerializer(true)

	got, _ := s.Value(column(t, "bit(2)"), RawField([]byte{3}))
	if got != `NOFORMAT_WRAP("##b'11'##")` {
		t.Errorf("bit = %s", got)
	}

	got, _ = s.Value(column(t, "int"), RawField("7"))
	if got != "7" {
		t.Errorf("number must not be wrapped: %s", got)
	}

	got, _ = s.Value(column(t, "point"), RawField(pointWKB(0, 0)))
	if Unwrap(got) != "GeomFromText('POINT(0 0)')" {
		t.Errorf("geometry = %s", got)
	}
}

func TestValue_MalformedGeometry(t *testing.T) {
	s := NewSerializer(false)

	_, err := s.Value(column(t, "point"), RawField([]byte{0, 0, 0, 0, 1, 42, 0, 0, 0}))
	if !errors.Is(err, dumperr.ErrMalformedPayload) {
		t.Fatalf("Value() error = %v, want ErrMalformedPayload", err)
	}
}

func TestValue_UnknownCategory(t *testing.T) {
	s := NewSerializer(false)
	col := &schema.Column{Name: "x", Category: schema.Category(42)}

	_, err := s.Value(col, RawField("1"))
	if !errors.Is(err, dumperr.ErrCatalogDrift) {
		t.Fatalf("Value() error = %v, want ErrCatalogDrift", err)
	}
}

func TestTuple(t *testing.T) {
	table := schema.NewBuilder("t").
		Add("id", "int", false).
		Add("name", "varchar(10)", true).
		Add("data", "blob", true).
		MustBuild()

	s := NewSerializer(false)
	got, err := s.Tuple(&table, []Field{RawField("1"), RawField(nil), RawField([]byte{0xab})})
	if err != nil {
		t.Fatalf("Tuple() error = %v", err)
	}
	if want := "(1,NULL,X'ab')"; got != want {
		t.Errorf("Tuple() = %s, want %s", got, want)
	}

	if _, err := s.Tuple(&table, []Field{RawField("1")}); err == nil {
		t.Error("Tuple() with wrong arity must fail")
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"a'b", `'a\'b'`},
		{`a"b`, `'a\"b'`},
		{`back\slash`, `'back\\slash'`},
		{"nul\x00byte", `'nul\0byte'`},
		{"line\nbreak\r", `'line\nbreak\r'`},
		{"tab\tbs\b", `'tab\tbs\b'`},
		{"ctrl\x1az", `'ctrl\Zz'`},
		{"юникод", "'юникод'"},
	}

	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Errorf("Escape(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestUnwrap(t *testing.T) {
	sql := `INSERT INTO t VALUES (NOFORMAT_WRAP("##X'00ff'##"),NOFORMAT_WRAP("##b'1'##"),'NOFORMAT_WRAP(\"##x##\")');`
	want := `INSERT INTO t VALUES (X'00ff',b'1','NOFORMAT_WRAP(\"##x##\")');`

	if got := Unwrap(sql); got != want {
		t.Errorf("Unwrap() = %s, want %s", got, want)
	}
}

func TestFormatInsert(t *testing.T) {
	in := "INSERT INTO `t` (`a`,`b`) VALUES (1,'x, y'),(2,'it\\'s (ok)');"
	want := "INSERT INTO\n  `t` (`a`, `b`)\nVALUES\n  (1, 'x, y'),\n  (2, 'it\\'s (ok)');"

	if got := FormatInsert(in); got != want {
		t.Errorf("FormatInsert() =\n%s\nwant\n%s", got, want)
	}

	if got := FormatInsert("SELECT 1"); got != "SELECT 1" {
		t.Errorf("non-insert must pass through, got %s", got)
	}
}

func TestApply_RestoresSentinelAfterFormatting(t *testing.T) {
	s := NewSerializer(true)
	bit, _ := s.Value(column(t, "bit(4)"), RawField([]byte{0x05}))
	sql := "INSERT INTO `t` (`b`) VALUES (" + bit + ");"

	got := Apply(FormatInsert, sql)
	if strings.Contains(got, "NOFORMAT_WRAP") {
		t.Fatalf("sentinel left in output: %s", got)
	}
	if !strings.Contains(got, "(b'0101')") {
		t.Errorf("bit literal damaged: %s", got)
	}

	if Apply(nil, "x") != "x" {
		t.Error("Apply(nil) must be identity")
	}
}
