package table

import (
	"fmt"
)

// =============================================================================
// RAW RECORDS
// =============================================================================

// RawRecord is one row of a source file after loading. It is created by a
// loader, consumed once by the normalizer and never mutated in between.
type RawRecord struct {
	// FileName is the source file's base name.
	FileName string

	// ClientKey is the client extracted from the file name.
	ClientKey string

	// Fields maps original column names to values. Columns that were present
	// in the source but empty in this row hold Unknown.
	Fields map[string]Value
}

// Get returns the value of column name and whether the row carries it.
func (r RawRecord) Get(name string) (Value, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// =============================================================================
// TABLE
// =============================================================================

// Table is an immutable, column-ordered table of typed values.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// Columns returns the column names in output order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Get returns the value at row, column. Unknown is returned for a column the
// table does not have.
func (t *Table) Get(row int, column string) Value {
	col, ok := t.index[column]
	if !ok {
		return Unknown()
	}
	return t.rows[row][col]
}

// Row returns a copy of one row in column order.
func (t *Table) Row(row int) []Value {
	return append([]Value(nil), t.rows[row]...)
}

// Column returns a copy of one column.
func (t *Table) Column(name string) []Value {
	col, ok := t.index[name]
	values := make([]Value, len(t.rows))
	if !ok {
		return values
	}
	for i, row := range t.rows {
		values[i] = row[col]
	}
	return values
}

// Records converts the table into raw records, tagging each with a file name
// and client key. Unknown cells are kept so the column stays visible to the
// normalizer.
func (t *Table) Records(fileName, clientKey string) []RawRecord {
	records := make([]RawRecord, len(t.rows))
	for i, row := range t.rows {
		fields := make(map[string]Value, len(t.columns))
		for j, name := range t.columns {
			fields[name] = row[j]
		}
		records[i] = RawRecord{FileName: fileName, ClientKey: clientKey, Fields: fields}
	}
	return records
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder accumulates one typed vector per column and assembles the table once.
// Every cell starts out Unknown.
type Builder struct {
	columns []string
	index   map[string]int
	vectors [][]Value
	rows    int
}

// NewBuilder creates a builder for rows rows with the given columns.
// Duplicate column names are rejected.
func NewBuilder(columns []string, rows int) (*Builder, error) {
	b := &Builder{
		index: make(map[string]int, len(columns)),
		rows:  rows,
	}
	for _, name := range columns {
		if err := b.AddColumn(name); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// AddColumn appends a new all-Unknown column.
func (b *Builder) AddColumn(name string) error {
	if _, exists := b.index[name]; exists {
		return fmt.Errorf("duplicate column %q", name)
	}
	b.index[name] = len(b.columns)
	b.columns = append(b.columns, name)
	b.vectors = append(b.vectors, make([]Value, b.rows))
	return nil
}

// AddRow appends one all-Unknown row and returns its index.
func (b *Builder) AddRow() int {
	for i := range b.vectors {
		b.vectors[i] = append(b.vectors[i], Unknown())
	}
	b.rows++
	return b.rows - 1
}

// HasColumn reports whether the builder has a column called name.
func (b *Builder) HasColumn(name string) bool {
	_, ok := b.index[name]
	return ok
}

// Len returns the number of rows.
func (b *Builder) Len() int {
	return b.rows
}

// Set stores v at row in column name.
func (b *Builder) Set(name string, row int, v Value) error {
	col, ok := b.index[name]
	if !ok {
		return fmt.Errorf("unknown column %q", name)
	}
	if row < 0 || row >= b.rows {
		return fmt.Errorf("row %d out of range [0,%d)", row, b.rows)
	}
	b.vectors[col][row] = v
	return nil
}

// Get returns the value at row in column name.
func (b *Builder) Get(name string, row int) Value {
	col, ok := b.index[name]
	if !ok || row < 0 || row >= b.rows {
		return Unknown()
	}
	return b.vectors[col][row]
}

// Build assembles the table. The builder should not be used afterwards.
func (b *Builder) Build() *Table {
	rows := make([][]Value, b.rows)
	for r := range rows {
		row := make([]Value, len(b.columns))
		for c := range b.columns {
			row[c] = b.vectors[c][r]
		}
		rows[r] = row
	}

	index := make(map[string]int, len(b.index))
	for name, col := range b.index {
		index[name] = col
	}

	return &Table{
		columns: append([]string(nil), b.columns...),
		index:   index,
		rows:    rows,
	}
}
