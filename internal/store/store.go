// Package store описывает границу с внешним реляционным хранилищем:
// выборки с предикатами, сортировкой и пагинацией, точечное чтение и запись.
// Шлюз не владеет данными, согласованность параллельных записей остается за БД.
package store

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Store: операции над именованными коллекциями.
// Любой сбой возвращается одной ошибкой (domain.KindDataStore),
// промах Get/Update/Delete возвращает domain.KindNotFound.
type Store interface {
	Select(ctx context.Context, collection string, q Query) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Insert(ctx context.Context, collection string, values Record) (Record, error)
	Update(ctx context.Context, collection, id string, values Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error
}

// Record: одна строка коллекции: имя поля -> скалярное значение.
type Record map[string]any

// String возвращает непустую строку поля.
func (r Record) String(field string) (string, bool) {
	switch v := r[field].(type) {
	case string:
		return v, v != ""
	case []byte:
		return string(v), len(v) > 0
	}
	return "", false
}

// Float приводит числовое поле к float64. Строки тоже парсим: драйверы бывают разными.
func (r Record) Float(field string) (float64, bool) {
	switch v := r[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil && !math.IsNaN(f)
	}
	return 0, false
}

// Time приводит поле к time.Time.
func (r Record) Time(field string) (time.Time, bool) {
	switch v := r[field].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		t, err := ParseTime(v)
		return t, err == nil
	}
	return time.Time{}, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime понимает RFC3339, формат SQLite и голую дату.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
