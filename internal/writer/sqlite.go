package writer

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ginjaninja78/ledger-normalizer/internal/table"
)

// SQLiteWriter writes a table into a SQLite database file. The table is
// dropped and recreated on every write, so the file always mirrors the last
// run.
//
// Columns holding only numbers and nulls get NUMERIC affinity; every other
// column is TEXT.
type SQLiteWriter struct {
	TableName string
}

// Extension implements Writer.
func (w *SQLiteWriter) Extension() string {
	return ".sqlite"
}

// Write implements Writer.
func (w *SQLiteWriter) Write(path string, tbl *table.Table) error {
	name := w.TableName
	if name == "" {
		name = DefaultOptions().TableName
	}

	// A stale file from an older schema is replaced rather than migrated.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old database: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(createStatement(name, tbl)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	stmt, err := tx.Prepare(insertStatement(name, tbl.Columns()))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for row := 0; row < tbl.Len(); row++ {
		values := tbl.Row(row)
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = sqlValue(v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", row+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func createStatement(name string, tbl *table.Table) string {
	columns := tbl.Columns()
	defs := make([]string, len(columns))
	for i, column := range columns {
		defs[i] = quoteIdent(column) + " " + affinity(tbl, column)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
}

func insertStatement(name string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = quoteIdent(column)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func affinity(tbl *table.Table, column string) string {
	for _, v := range tbl.Column(column) {
		if v.Kind() == table.KindText {
			return "TEXT"
		}
	}
	return "NUMERIC"
}

func sqlValue(v table.Value) any {
	switch v.Kind() {
	case table.KindNumber:
		// NUMERIC affinity turns the fixed-point text into a number.
		return v.String()
	case table.KindInteger:
		d, _ := v.Decimal()
		return d.IntPart()
	case table.KindText:
		return v.Text()
	default:
		return nil
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
