package persistence

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ColumnType is the logical type of a column; each Dialect maps it to SQL
type ColumnType int

const (
	TypeInt64 ColumnType = iota
	TypeFloat
	TypeText
	TypeBool
	TypeTime
)

// Column maps one field of T to one SQL column.
// Get returns the value to bind, Ptr returns the scan destination.
type Column[T any] struct {
	Name     string
	Type     ColumnType
	Key      bool
	Nullable bool
	Get      func(*T) any
	Ptr      func(*T) any
}

// AsKey marks the column as part of the unique key used for upserts and deletes
func (c Column[T]) AsKey() Column[T] {
	c.Key = true
	return c
}

// Table is the explicit mapping of an entity to a table
type Table[T any] struct {
	Name    string
	Columns []Column[T]
}

// Values returns bind values in column order
func (t *Table[T]) Values(v *T) []any {
	out := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Get(v)
	}
	return out
}

// KeyValues returns bind values of the key columns
func (t *Table[T]) KeyValues(v *T) []any {
	out := make([]any, 0, 2)
	for _, c := range t.Columns {
		if c.Key {
			out = append(out, c.Get(v))
		}
	}
	return out
}

// Pointers returns scan destinations in column order
func (t *Table[T]) Pointers(v *T) []any {
	out := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Ptr(v)
	}
	return out
}

// Int64Col maps an int64 field
func Int64Col[T any](name string, field func(*T) *int64) Column[T] {
	return Column[T]{
		Name: name,
		Type: TypeInt64,
		Get:  func(v *T) any { return *field(v) },
		Ptr:  func(v *T) any { return field(v) },
	}
}

// FloatCol maps a float64 field
func FloatCol[T any](name string, field func(*T) *float64) Column[T] {
	return Column[T]{
		Name: name,
		Type: TypeFloat,
		Get:  func(v *T) any { return *field(v) },
		Ptr:  func(v *T) any { return field(v) },
	}
}

// IntCol maps an int field stored as BIGINT
func IntCol[T any](name string, field func(*T) *int) Column[T] {
	return Column[T]{
		Name: name,
		Type: TypeInt64,
		Get:  func(v *T) any { return int64(*field(v)) },
		Ptr:  func(v *T) any { return &intScanner{dst: field(v)} },
	}
}

// Int32Col maps an int32 field stored as BIGINT
func Int32Col[T any](name string, field func(*T) *int32) Column[T] {
	return Column[T]{
		Name: name,
		Type: TypeInt64,
		Get:  func(v *T) any { return int64(*field(v)) },
		Ptr:  func(v *T) any { return &int32Scanner{dst: field(v)} },
	}
}

// TextCol maps a string field
func TextCol[T any](name string, field func(*T) *string) Column[T] {
	return Column[T]{
		Name: name,
		Type: TypeText,
		Get:  func(v *T) any { return *field(v) },
		Ptr:  func(v *T) any { return field(v) },
	}
}

// EnumCol maps a named string type
func EnumCol[T any, E ~string](name string, field func(*T) *E) Column[T] {
	return Column[T]{
		Name: name,
		Type: TypeText,
		Get:  func(v *T) any { return string(*field(v)) },
		Ptr:  func(v *T) any { return &enumScanner[E]{dst: field(v)} },
	}
}

// BoolCol maps a bool field
func BoolCol[T any](name string, field func(*T) *bool) Column[T] {
	return Column[T]{
		Name: name,
		Type: TypeBool,
		Get:  func(v *T) any { return *field(v) },
		Ptr:  func(v *T) any { return field(v) },
	}
}

// TimeCol maps a required time field, stored in UTC
func TimeCol[T any](name string, field func(*T) *time.Time) Column[T] {
	return Column[T]{
		Name: name,
		Type: TypeTime,
		Get:  func(v *T) any { return field(v).UTC() },
		Ptr:  func(v *T) any { return &timeScanner{dst: field(v)} },
	}
}

// NullTimeCol maps a time field whose zero value is stored as NULL
func NullTimeCol[T any](name string, field func(*T) *time.Time) Column[T] {
	return Column[T]{
		Name:     name,
		Type:     TypeTime,
		Nullable: true,
		Get: func(v *T) any {
			if t := *field(v); !t.IsZero() {
				return t.UTC()
			}
			return nil
		},
		Ptr: func(v *T) any { return &timeScanner{dst: field(v)} },
	}
}

// timeLayouts are the text forms drivers hand back for timestamp columns
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

type timeScanner struct {
	dst *time.Time
}

func (s *timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.dst = time.Time{}
	case time.Time:
		*s.dst = v.UTC()
	case int64:
		*s.dst = time.Unix(0, v).UTC()
	case []byte:
		return s.parse(string(v))
	case string:
		return s.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
	return nil
}

func (s *timeScanner) parse(v string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*s.dst = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", v)
}

type enumScanner[E ~string] struct {
	dst *E
}

func (s *enumScanner[E]) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.dst = ""
	case string:
		*s.dst = E(v)
	case []byte:
		*s.dst = E(v)
	default:
		return fmt.Errorf("cannot scan %T into text", src)
	}
	return nil
}

type intScanner struct {
	dst *int
}

func (s *intScanner) Scan(src any) error {
	n, err := toInt64(src)
	*s.dst = int(n)
	return err
}

type int32Scanner struct {
	dst *int32
}

func (s *int32Scanner) Scan(src any) error {
	n, err := toInt64(src)
	*s.dst = int32(n)
	return err
}

func toInt64(src any) (int64, error) {
	switch v := src.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		n, err := driver.Int32.ConvertValue(src)
		if err != nil {
			return 0, fmt.Errorf("cannot scan %T into int: %w", src, err)
		}
		return n.(int64), nil
	}
}
