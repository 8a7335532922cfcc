package persistence

import (
	"fmt"
	"strings"
)

// Dialect carries the SQL differences between the supported engines
type Dialect struct {
	Name        string
	placeholder func(n int) string
	types       map[ColumnType]string
}

var (
	// Postgres uses $n placeholders
	Postgres = Dialect{
		Name:        "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		types: map[ColumnType]string{
			TypeInt64: "BIGINT",
			TypeFloat: "DOUBLE PRECISION",
			TypeText:  "TEXT",
			TypeBool:  "BOOLEAN",
			TypeTime:  "TIMESTAMPTZ",
		},
	}

	// SQLite uses ? placeholders
	SQLite = Dialect{
		Name:        "sqlite",
		placeholder: func(int) string { return "?" },
		types: map[ColumnType]string{
			TypeInt64: "INTEGER",
			TypeFloat: "REAL",
			TypeText:  "TEXT",
			TypeBool:  "BOOLEAN",
			TypeTime:  "TIMESTAMP",
		},
	}
)

// Placeholder returns the bind marker for the n-th (1-based) argument
func (d Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

// CreateSQL returns CREATE TABLE IF NOT EXISTS for t
func CreateSQL[T any](d Dialect, t *Table[T]) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	keys := make([]string, 0, 2)
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "\t%s %s", c.Name, d.types[c.Type])
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(",\n")
		if c.Key {
			keys = append(keys, c.Name)
		}
	}
	fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n)", strings.Join(keys, ", "))
	return b.String()
}

// UpsertSQL returns an INSERT .. ON CONFLICT (key) DO UPDATE statement
func UpsertSQL[T any](d Dialect, t *Table[T]) string {
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	keys := make([]string, 0, 2)
	sets := make([]string, 0, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Name
		marks[i] = d.Placeholder(i + 1)
		if c.Key {
			keys = append(keys, c.Name)
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c.Name, c.Name))
		}
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		t.Name, strings.Join(cols, ", "), strings.Join(marks, ", "),
		strings.Join(keys, ", "), strings.Join(sets, ", "))
}

// DeleteSQL returns a DELETE by key statement
func DeleteSQL[T any](d Dialect, t *Table[T]) string {
	conds := make([]string, 0, 2)
	n := 0
	for _, c := range t.Columns {
		if c.Key {
			n++
			conds = append(conds, fmt.Sprintf("%s = %s", c.Name, d.Placeholder(n)))
		}
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", t.Name, strings.Join(conds, " AND "))
}

// SelectSQL returns a SELECT of every column, ordered by key.
// where may reference columns and use Placeholder(1..n); empty means no filter.
func SelectSQL[T any](t *Table[T], where string) string {
	cols := make([]string, len(t.Columns))
	keys := make([]string, 0, 2)
	for i, c := range t.Columns {
		cols[i] = c.Name
		if c.Key {
			keys = append(keys, c.Name)
		}
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), t.Name)
	if where != "" {
		q += " WHERE " + where
	}
	if len(keys) > 0 {
		q += " ORDER BY " + strings.Join(keys, ", ")
	}
	return q
}
