package store

import (
	"fmt"
	"strings"
)

// ColumnType: переносимый тип колонки.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeFloat
	TypeTimestamp
	TypeBoolean
	TypeJSON
)

// Системные колонки, которые есть в каждой коллекции.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
}

// Schema: описание коллекции. id/created_at/updated_at добавляются автоматически.
type Schema struct {
	Collection string
	Columns    []Column
	Indexes    [][]string
}

// NewSchema собирает схему и дописывает системные колонки.
func NewSchema(collection string, columns ...Column) Schema {
	all := make([]Column, 0, len(columns)+3)
	all = append(all, Column{Name: ColumnID, Type: TypeText, NotNull: true})
	all = append(all, columns...)
	all = append(all,
		Column{Name: ColumnCreatedAt, Type: TypeTimestamp, NotNull: true},
		Column{Name: ColumnUpdatedAt, Type: TypeTimestamp},
	)
	return Schema{
		Collection: collection,
		Columns:    all,
		Indexes:    [][]string{{ColumnCreatedAt}},
	}
}

// WithIndex добавляет индекс.
func (s Schema) WithIndex(columns ...string) Schema {
	s.Indexes = append(s.Indexes, columns)
	return s
}

// Column ищет колонку по имени.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// DDL генерирует CREATE TABLE/INDEX для диалекта.
func (s Schema) DDL(d Dialect) []string {
	defs := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		def := quoteIdent(c.Name) + " " + d.ColumnType(c.Type)
		if c.Name == ColumnID {
			def += " PRIMARY KEY"
		} else if c.NotNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(s.Collection), strings.Join(defs, ", "))}
	for _, idx := range s.Indexes {
		cols := make([]string, len(idx))
		for i, c := range idx {
			cols[i] = quoteIdent(c)
		}
		name := fmt.Sprintf("idx_%s_%s", s.Collection, strings.Join(idx, "_"))
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(name), quoteIdent(s.Collection), strings.Join(cols, ", ")))
	}
	return stmts
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
