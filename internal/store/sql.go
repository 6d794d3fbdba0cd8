package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
)

// Config: параметры подключения к хранилищу.
type Config struct {
	Driver          string // postgres | sqlite
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore: реализация Store поверх database/sql для PostgreSQL и SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	schemas map[string]Schema
	now     func() time.Time
}

// Open создает единственный на процесс пул соединений.
func Open(cfg Config, schemas ...Schema) (*SQLStore, error) {
	dialect, ok := DialectByName(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if cfg.URL == "" {
		return nil, errors.New("store: database url is required")
	}

	db, err := sql.Open(dialect.DriverName(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialect.Name(), err)
	}

	if dialect == SQLite && strings.Contains(cfg.URL, ":memory:") {
		// каждая новая in-memory коннекция открывает отдельную пустую базу
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(db, dialect, schemas...), nil
}

// New оборачивает уже открытый *sql.DB.
func New(db *sql.DB, dialect Dialect, schemas ...Schema) *SQLStore {
	s := &SQLStore{
		db:      db,
		dialect: dialect,
		schemas: make(map[string]Schema, len(schemas)),
		now:     time.Now,
	}
	for _, sc := range schemas {
		s.schemas[sc.Collection] = sc
	}
	return s
}

// WithClock подменяет источник времени для created_at/updated_at.
func (s *SQLStore) WithClock(now func() time.Time) *SQLStore {
	s.now = now
	return s
}

// Register добавляет схему коллекции после создания стора.
func (s *SQLStore) Register(schemas ...Schema) {
	for _, sc := range schemas {
		s.schemas[sc.Collection] = sc
	}
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Ping проверяет доступность базы при старте.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate создает таблицы и индексы всех зарегистрированных коллекций.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, sc := range s.schemas {
		for _, stmt := range sc.DDL(s.dialect) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("store: migrate %s: %w", sc.Collection, err)
			}
		}
	}
	return nil
}

func (s *SQLStore) schema(collection string) (Schema, error) {
	sc, ok := s.schemas[collection]
	if !ok {
		return Schema{}, domain.DataStore("lookup", fmt.Errorf("unknown collection %q", collection))
	}
	return sc, nil
}

func (s *SQLStore) Select(ctx context.Context, collection string, q Query) ([]Record, error) {
	sc, err := s.schema(collection)
	if err != nil {
		return nil, err
	}

	b := &builder{dialect: s.dialect, schema: sc}
	query, err := b.selectSQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, domain.DataStore("select "+collection, err)
	}
	defer rows.Close()

	// пустой слайс, чтобы в JSON был [] вместо null
	results := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, sc)
		if err != nil {
			return nil, domain.DataStore("scan "+collection, err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.DataStore("select "+collection, err)
	}
	return results, nil
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (Record, error) {
	sc, err := s.schema(collection)
	if err != nil {
		return nil, err
	}

	b := &builder{dialect: s.dialect, schema: sc}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s LIMIT 1",
		b.columnList(nil), quoteIdent(collection), quoteIdent(ColumnID), b.bind(id))

	return s.queryOne(ctx, sc, "get", id, query, b.args)
}

func (s *SQLStore) Insert(ctx context.Context, collection string, values Record) (Record, error) {
	sc, err := s.schema(collection)
	if err != nil {
		return nil, err
	}

	row := make(Record, len(values)+2)
	for k, v := range values {
		row[k] = v
	}
	if id, ok := row.String(ColumnID); !ok || id == "" {
		row[ColumnID] = uuid.NewString()
	}
	if _, ok := row[ColumnCreatedAt]; !ok {
		row[ColumnCreatedAt] = s.now().UTC()
	}

	b := &builder{dialect: s.dialect, schema: sc}
	cols := make([]string, 0, len(row))
	phs := make([]string, 0, len(row))
	for _, c := range sc.Columns {
		v, ok := row[c.Name]
		if !ok {
			continue
		}
		cols = append(cols, quoteIdent(c.Name))
		phs = append(phs, b.bind(coerce(c, v)))
	}
	if err := checkUnknown(sc, row); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quoteIdent(collection), strings.Join(cols, ", "), strings.Join(phs, ", "), b.columnList(nil))

	id, _ := row.String(ColumnID)
	return s.queryOne(ctx, sc, "insert", id, query, b.args)
}

// Update меняет только переданные поля. Пустой набор не пишет в базу и возвращает текущую строку.
func (s *SQLStore) Update(ctx context.Context, collection, id string, values Record) (Record, error) {
	sc, err := s.schema(collection)
	if err != nil {
		return nil, err
	}
	if err := checkUnknown(sc, values); err != nil {
		return nil, err
	}

	patch := make(Record, len(values))
	for k, v := range values {
		if k == ColumnID || k == ColumnCreatedAt {
			continue
		}
		patch[k] = v
	}
	if len(patch) == 0 {
		return s.Get(ctx, collection, id)
	}
	if _, ok := sc.Column(ColumnUpdatedAt); ok {
		if _, set := patch[ColumnUpdatedAt]; !set {
			patch[ColumnUpdatedAt] = s.now().UTC()
		}
	}

	b := &builder{dialect: s.dialect, schema: sc}
	sets := make([]string, 0, len(patch))
	for _, c := range sc.Columns {
		v, ok := patch[c.Name]
		if !ok {
			continue
		}
		sets = append(sets, quoteIdent(c.Name)+" = "+b.bind(coerce(c, v)))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s RETURNING %s",
		quoteIdent(collection), strings.Join(sets, ", "), quoteIdent(ColumnID), b.bind(id), b.columnList(nil))

	return s.queryOne(ctx, sc, "update", id, query, b.args)
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.schema(collection); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", quoteIdent(collection), quoteIdent(ColumnID), s.dialect.Placeholder(1))
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return domain.DataStore("delete "+collection, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.DataStore("delete "+collection, err)
	}
	if n == 0 {
		return domain.NotFound(collection, id)
	}
	return nil
}

func (s *SQLStore) queryOne(ctx context.Context, sc Schema, op, id, query string, args []any) (Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.DataStore(op+" "+sc.Collection, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, domain.DataStore(op+" "+sc.Collection, err)
		}
		return nil, domain.NotFound(sc.Collection, id)
	}

	rec, err := scanRecord(rows, sc)
	if err != nil {
		return nil, domain.DataStore(op+" "+sc.Collection, err)
	}
	return rec, nil
}

func checkUnknown(sc Schema, values Record) error {
	for k := range values {
		if _, ok := sc.Column(k); !ok {
			return domain.Validation("unknown field %q for %s", k, sc.Collection)
		}
	}
	return nil
}

func scanRecord(rows *sql.Rows, sc Schema) (Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := make(Record, len(cols))
	for i, name := range cols {
		col, _ := sc.Column(name)
		rec[name] = normalize(col, vals[i])
	}
	return rec, nil
}

// normalize приводит значения драйверов к единому виду по типу колонки.
func normalize(c Column, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}

	switch c.Type {
	case TypeTimestamp:
		switch t := v.(type) {
		case time.Time:
			return t.UTC()
		case string:
			if parsed, err := ParseTime(t); err == nil {
				return parsed
			}
		}
	case TypeBoolean:
		switch b := v.(type) {
		case int64:
			return b != 0
		case string:
			return b == "1" || strings.EqualFold(b, "true")
		}
	case TypeInteger:
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	case TypeJSON:
		if s, ok := v.(string); ok {
			var out any
			if err := json.Unmarshal([]byte(s), &out); err == nil {
				return out
			}
		}
	}
	return v
}

// coerce готовит значение к записи в колонку.
func coerce(c Column, v any) any {
	if v == nil {
		return nil
	}

	switch c.Type {
	case TypeInteger:
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int:
			return int64(n)
		}
	case TypeFloat:
		switch n := v.(type) {
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	case TypeTimestamp:
		switch t := v.(type) {
		case time.Time:
			return t.UTC()
		case string:
			if parsed, err := ParseTime(t); err == nil {
				return parsed
			}
		}
	case TypeJSON:
		if _, ok := v.(string); !ok {
			raw, err := json.Marshal(v)
			if err == nil {
				return string(raw)
			}
		}
	}
	return v
}
