package store

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"modernc.org/sqlite" // Драйвер SQLite (pure Go)
)

// Dialect прячет различия SQL между PostgreSQL и SQLite.
type Dialect interface {
	Name() string
	DriverName() string
	Placeholder(n int) string
	// ILike строит регистронезависимое сравнение с шаблоном (экранирование '\').
	ILike(column, placeholder string) string
	ColumnType(t ColumnType) string
}

type postgresDialect struct{}

// Postgres работает через pgx/v5/stdlib.
var Postgres Dialect = postgresDialect{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) DriverName() string       { return "pgx" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) ILike(column, ph string) string {
	return column + ` ILIKE ` + ph + ` ESCAPE '\'`
}

func (postgresDialect) ColumnType(t ColumnType) string {
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeTimestamp:
		return "TIMESTAMPTZ"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeJSON:
		return "JSONB"
	}
	return "TEXT"
}

type sqliteDialect struct{}

// SQLite работает через modernc.org/sqlite (без cgo).
var SQLite Dialect = sqliteDialect{}

func (sqliteDialect) Name() string           { return "sqlite" }
func (sqliteDialect) DriverName() string     { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }

// unicodeLower заменяет встроенный LOWER: тот складывает регистр только у ASCII,
// и поиск по кириллице или "É" без него чувствителен к регистру.
const unicodeLower = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(unicodeLower, 1, lowerValue)
}

func lowerValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return strings.ToLower(fmt.Sprint(v)), nil
	}
}

// LIKE в SQLite регистронезависим только для ASCII, обе стороны приводятся через unicode_lower.
func (sqliteDialect) ILike(column, ph string) string {
	return unicodeLower + `(` + column + `) LIKE ` + unicodeLower + `(` + ph + `) ESCAPE '\'`
}

func (sqliteDialect) ColumnType(t ColumnType) string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	case TypeTimestamp:
		return "DATETIME"
	case TypeBoolean:
		return "BOOLEAN"
	}
	return "TEXT"
}

// DialectByName: выбор диалекта по значению database.driver из конфига.
func DialectByName(name string) (Dialect, bool) {
	switch name {
	case "postgres", "postgresql", "pgx":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return nil, false
}
