// Package wkb декодирует геометрию MySQL (SRID + Well-Known Binary)
// в выражение GeomFromText('...').
package wkb

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// SRIDPrefixLen - длина префикса SRID, который MySQL пишет перед телом WKB
const SRIDPrefixLen = 4

// Коды типов WKB
const (
	TypePoint              uint32 = 1
	TypeLineString         uint32 = 2
	TypePolygon            uint32 = 3
	TypeMultiPoint         uint32 = 4
	TypeMultiLineString    uint32 = 5
	TypeMultiPolygon       uint32 = 6
	TypeGeometryCollection uint32 = 7
)

var constructors = map[uint32]string{
	TypePoint:              "POINT",
	TypeLineString:         "LINESTRING",
	TypePolygon:            "POLYGON",
	TypeMultiPoint:         "MULTIPOINT",
	TypeMultiLineString:    "MULTILINESTRING",
	TypeMultiPolygon:       "MULTIPOLYGON",
	TypeGeometryCollection: "GEOMETRYCOLLECTION",
}

// Cursor - позиция чтения в буфере WKB.
// Порядок байт задается флагом каждой вложенной геометрии.
type Cursor struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

// NewCursor создает курсор, начинающий чтение с offset
func NewCursor(buf []byte, offset int) *Cursor {
	return &Cursor{buf: buf, pos: offset, order: binary.LittleEndian}
}

// Pos возвращает текущую позицию
func (c *Cursor) Pos() int {
	return c.pos
}

func (c *Cursor) need(n int) error {
	if c.pos < 0 || c.pos+n > len(c.buf) {
		return fmt.Errorf("%w: wkb truncated at offset %d (need %d bytes, have %d)",
			dumperr.ErrMalformedPayload, c.pos, n, len(c.buf)-c.pos)
	}
	return nil
}

// ReadOrder читает флаг порядка байт: 0 - big-endian, 1 - little-endian
func (c *Cursor) ReadOrder() error {
	if err := c.need(1); err != nil {
		return err
	}
	flag := c.buf[c.pos]
	c.pos++

	switch flag {
	case 0:
		c.order = binary.BigEndian
	case 1:
		c.order = binary.LittleEndian
	default:
		return fmt.Errorf("%w: invalid wkb byte order flag %d", dumperr.ErrMalformedPayload, flag)
	}
	return nil
}

// ReadUint32 читает 4-байтовое беззнаковое число
func (c *Cursor) ReadUint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := c.order.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// ReadFloat64 читает 8-байтовое число с плавающей точкой
func (c *Cursor) ReadFloat64() (float64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := math.Float64frombits(c.order.Uint64(c.buf[c.pos:]))
	c.pos += 8
	return v, nil
}

// ReadPoint читает пару координат как "x y"
func (c *Cursor) ReadPoint() (string, error) {
	x, err := c.ReadFloat64()
	if err != nil {
		return "", err
	}
	y, err := c.ReadFloat64()
	if err != nil {
		return "", err
	}
	return formatCoord(x) + " " + formatCoord(y), nil
}

// readPoints читает счетчик и столько же точек через запятую
func (c *Cursor) readPoints() (string, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return "", err
	}
	// Каждая точка занимает 16 байт: отсекаем заведомо ложные счетчики
	if err := c.need(int(n) * 16); err != nil {
		return "", err
	}

	points := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		p, err := c.ReadPoint()
		if err != nil {
			return "", err
		}
		points = append(points, p)
	}
	return strings.Join(points, ","), nil
}

// Decode декодирует значение геометрии MySQL в GeomFromText('WKT')
func Decode(buf []byte) (string, error) {
	c := NewCursor(buf, SRIDPrefixLen)
	if err := c.need(0); err != nil {
		return "", err
	}

	wkt, err := DecodeGeometry(c)
	if err != nil {
		return "", err
	}
	return "GeomFromText('" + wkt + "')", nil
}

// DecodeGeometry рекурсивно декодирует одну геометрию с позиции курсора в WKT
func DecodeGeometry(c *Cursor) (string, error) {
	if err := c.ReadOrder(); err != nil {
		return "", err
	}
	typ, err := c.ReadUint32()
	if err != nil {
		return "", err
	}

	name, ok := constructors[typ]
	if !ok {
		return "", fmt.Errorf("%w: unexpected wkb geometry type %d", dumperr.ErrMalformedPayload, typ)
	}

	var body string
	switch typ {
	case TypePoint:
		body, err = c.ReadPoint()

	case TypeLineString:
		body, err = c.readPoints()

	case TypePolygon:
		body, err = c.readRings()

	default:
		body, err = c.readCollection(typ)
	}
	if err != nil {
		return "", err
	}

	return name + "(" + body + ")", nil
}

// readRings читает кольца полигона: "(p1,p2,...),(...)"
func (c *Cursor) readRings() (string, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return "", err
	}
	if err := c.need(int(n) * 4); err != nil {
		return "", err
	}

	rings := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		ring, err := c.readPoints()
		if err != nil {
			return "", err
		}
		rings = append(rings, "("+ring+")")
	}
	return strings.Join(rings, ","), nil
}

// readCollection читает элементы Multi* и GeometryCollection.
// Для Multi* у элементов убирается избыточное имя конструктора,
// GeometryCollection сохраняет имена.
func (c *Cursor) readCollection(typ uint32) (string, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return "", err
	}
	// Минимальная вложенная геометрия: флаг + тип
	if err := c.need(int(n) * 5); err != nil {
		return "", err
	}

	elems := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		geom, err := DecodeGeometry(c)
		if err != nil {
			return "", err
		}

		switch typ {
		case TypeMultiPoint:
			geom = stripConstructor(geom, "POINT")
		case TypeMultiLineString:
			geom = strings.TrimPrefix(geom, "LINESTRING")
		case TypeMultiPolygon:
			geom = strings.TrimPrefix(geom, "POLYGON")
		}
		elems = append(elems, geom)
	}
	return strings.Join(elems, ","), nil
}

// stripConstructor превращает "POINT(x y)" в "x y"
func stripConstructor(geom, name string) string {
	if strings.HasPrefix(geom, name+"(") && strings.HasSuffix(geom, ")") {
		return geom[len(name)+1 : len(geom)-1]
	}
	return geom
}

// formatCoord - кратчайшее точное десятичное представление координаты
func formatCoord(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
