package keypager

import (
	"bytes"
	"database/sql/driver"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

var _encoder = base64.RawURLEncoding

// Cursor is a pagination token identifying the last row of a page. An empty
// token means the beginning of the dataset.
//
// IMPORTANT:
// The last element of a cursor ALWAYS refers to the unique paginate-by column!
//
// A cursor is an ordered list of elements:
//
//	[(C1, V1, D1), (C2, V2, D2)... (Cn, Vn, Dn)]
//
// and is transmitted as a base64url encoded JSON object:
//
//	{"C1":[V1,"D1"],"C2":[V2,"D2"],...,"Cn":[Vn,"Dn"]}
//
// Key order is significant. Values are int64, float64 or string.
type Cursor struct {
	elements []CursorElement
}

// CursorElement is one sort key of a Cursor: the column, the value this
// column had in the last row of the page, and the column's direction.
type CursorElement struct {
	Column    string
	Value     any
	Direction Direction
}

// NewCursor builds a cursor from elements, normalizing their values.
// Elements must be non-empty, with distinct columns and valid directions.
func NewCursor(elements ...CursorElement) (*Cursor, error) {
	c, err := buildCursor(elements)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCursorEncode, err)
	}

	return c, nil
}

func buildCursor(elements []CursorElement) (*Cursor, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("cursor has no elements")
	}

	seen := make(map[string]struct{}, len(elements))
	ret := make([]CursorElement, 0, len(elements))

	for _, e := range elements {
		if e.Column == "" {
			return nil, fmt.Errorf("cursor element has empty column name")
		}
		if _, ok := seen[e.Column]; ok {
			return nil, fmt.Errorf("duplicate cursor column '%s'", e.Column)
		}
		seen[e.Column] = struct{}{}

		if !e.Direction.Valid() {
			return nil, fmt.Errorf("invalid direction '%s' for cursor column '%s'", e.Direction, e.Column)
		}

		value, err := normalizeValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("cursor column '%s': %w", e.Column, err)
		}

		ret = append(ret, CursorElement{
			Column:    e.Column,
			Value:     value,
			Direction: e.Direction,
		})
	}

	return &Cursor{elements: ret}, nil
}

// normalizeValue maps a row value onto the scalar set a cursor can carry:
// int64, float64 or string.
func normalizeValue(v any) (any, error) {
	switch vt := v.(type) {
	case nil:
		return nil, fmt.Errorf("NULL cannot be used as a cursor value")
	case string:
		return vt, nil
	case []byte:
		return string(vt), nil
	case int:
		return int64(vt), nil
	case int8:
		return int64(vt), nil
	case int16:
		return int64(vt), nil
	case int32:
		return int64(vt), nil
	case int64:
		return vt, nil
	case uint:
		return normalizeUint(uint64(vt))
	case uint8:
		return int64(vt), nil
	case uint16:
		return int64(vt), nil
	case uint32:
		return int64(vt), nil
	case uint64:
		return normalizeUint(vt)
	case float32:
		return normalizeFloat(float64(vt))
	case float64:
		return normalizeFloat(vt)
	case json.Number:
		return parseNumber(vt)
	case time.Time:
		return vt.Format(time.RFC3339Nano), nil
	case driver.Valuer:
		dv, err := vt.Value()
		if err != nil {
			return nil, fmt.Errorf("cannot read driver value: %w", err)
		}

		return normalizeValue(dv)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("NULL cannot be used as a cursor value")
		}

		return normalizeValue(rv.Elem().Interface())
	}

	return nil, fmt.Errorf("unsupported cursor value type %T", v)
}

func normalizeUint(v uint64) (any, error) {
	if v > math.MaxInt64 {
		return nil, fmt.Errorf("cursor value %d overflows int64", v)
	}

	return int64(v), nil
}

func normalizeFloat(v float64) (any, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("cursor value %v is not a finite number", v)
	}

	return v, nil
}

func parseNumber(n json.Number) (any, error) {
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}

	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number '%s': %w", n, err)
	}

	return normalizeFloat(f)
}

// DecodeCursor parses a token produced by Cursor.String. An empty token
// yields a nil cursor and no error.
func DecodeCursor(token string) (*Cursor, error) {
	if len(token) == 0 {
		return nil, nil
	}

	jsonData, err := _encoder.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64 encoded cursor: %w", ErrCursorDecode, err)
	}

	elements, err := parseWireJSON(jsonData)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal json encoded cursor: %w", ErrCursorDecode, err)
	}

	c, err := buildCursor(elements)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCursorDecode, err)
	}

	return c, nil
}

// EncodeCursor returns the token of c, or an empty string for a nil cursor.
func EncodeCursor(c *Cursor) string {
	return c.String()
}

// parseWireJSON reads the cursor object with a streaming decoder so that key
// order survives.
func parseWireJSON(data []byte) ([]CursorElement, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var ret []CursorElement
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		column, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}

		var pair []json.RawMessage
		if err = dec.Decode(&pair); err != nil {
			return nil, fmt.Errorf("column '%s': %w", column, err)
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("column '%s': expected [value, direction] pair, got %d elements", column, len(pair))
		}

		value, err := parseWireValue(pair[0])
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", column, err)
		}

		var rawDirection string
		if err = json.Unmarshal(pair[1], &rawDirection); err != nil {
			return nil, fmt.Errorf("column '%s': direction must be a string: %w", column, err)
		}

		direction, err := ParseDirection(rawDirection)
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", column, err)
		}

		ret = append(ret, CursorElement{
			Column:    column,
			Value:     value,
			Direction: direction,
		})
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after cursor object")
	}

	return ret, nil
}

func expectDelim(dec *json.Decoder, delim json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if d, ok := tok.(json.Delim); !ok || d != delim {
		return fmt.Errorf("expected '%s', got %v", delim, tok)
	}

	return nil
}

func parseWireValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch vt := v.(type) {
	case string:
		return vt, nil
	case json.Number:
		return parseNumber(vt)
	default:
		return nil, fmt.Errorf("cursor value must be a string or a number, got %s", raw)
	}
}

// String - implements fmt.Stringer. Returns the cursor token.
func (c *Cursor) String() string {
	if c.IsEmpty() {
		return ""
	}

	return _encoder.EncodeToString(c.wireJSON())
}

func (c *Cursor) wireJSON() []byte {
	var buf bytes.Buffer

	buf.WriteByte('{')
	for i, e := range c.elements {
		if i > 0 {
			buf.WriteByte(',')
		}

		writeJSONString(&buf, e.Column)
		buf.WriteString(":[")
		writeJSONScalar(&buf, e.Value)
		buf.WriteByte(',')
		writeJSONString(&buf, string(e.Direction))
		buf.WriteByte(']')
	}
	buf.WriteByte('}')

	return buf.Bytes()
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Errorf("cannot marshal cursor string: %w", err))
	}

	buf.Write(b)
}

func writeJSONScalar(buf *bytes.Buffer, v any) {
	switch vt := v.(type) {
	case int64:
		buf.WriteString(strconv.FormatInt(vt, 10))
	case float64:
		// Integral floats keep a fraction so they decode back as floats.
		s := strconv.FormatFloat(vt, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case string:
		writeJSONString(buf, vt)
	default:
		panic(fmt.Errorf("cannot marshal cursor value of type %T", v))
	}
}

// IsEmpty reports whether the cursor is nil or has no elements.
func (c *Cursor) IsEmpty() bool {
	return c == nil || len(c.elements) == 0
}

// Len returns the number of sort keys.
func (c *Cursor) Len() int {
	if c == nil {
		return 0
	}

	return len(c.elements)
}

// Elements returns a copy of the cursor elements.
func (c *Cursor) Elements() []CursorElement {
	if c == nil {
		return nil
	}

	return slices.Clone(c.elements)
}

// Orderings returns the sort order the cursor was produced under.
func (c *Cursor) Orderings() Orderings {
	if c == nil {
		return nil
	}

	return lo.Map(c.elements, func(e CursorElement, _ int) OrderBy {
		return OrderBy{Column: e.Column, Direction: e.Direction}
	})
}

// Value returns the value stored for column.
func (c *Cursor) Value(column string) (any, bool) {
	if c == nil {
		return nil, false
	}

	e, ok := lo.Find(c.elements, func(e CursorElement) bool {
		return e.Column == column
	})

	return e.Value, ok
}

// MarshalText - implements encoding.TextMarshaler, so a *Cursor is
// rendered as its token in JSON payloads.
func (c *Cursor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText - implements encoding.TextUnmarshaler.
func (c *Cursor) UnmarshalText(text []byte) error {
	decoded, err := DecodeCursor(string(text))
	if err != nil {
		return err
	}

	if decoded == nil {
		c.elements = nil
		return nil
	}

	c.elements = decoded.elements

	return nil
}

// validate checks that the cursor can resume a pagination keyed by
// paginateBy.
func (c *Cursor) validate(paginateBy string) error {
	if c.IsEmpty() {
		return fmt.Errorf("empty cursor")
	}

	for _, e := range c.elements {
		if err := validateColumnName(e.Column); err != nil {
			return err
		}
	}

	last := c.elements[len(c.elements)-1]
	if last.Column != paginateBy {
		return fmt.Errorf("cursor must end with column '%s', got '%s'", paginateBy, last.Column)
	}

	return nil
}

var (
	_ fmt.Stringer             = (*Cursor)(nil)
	_ encoding.TextMarshaler   = (*Cursor)(nil)
	_ encoding.TextUnmarshaler = (*Cursor)(nil)
)
