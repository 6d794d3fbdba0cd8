package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

// Caller встраивается в аргументы каждого инструмента: агент может представиться сам.
type Caller struct {
	AgentID   string `json:"agent_id,omitempty" jsonschema:"description=Calling agent id (falls back to the token or server default)"`
	AgentName string `json:"agent_name,omitempty" jsonschema:"description=Calling agent display name"`
}

func (c Caller) Identity() domain.Identity {
	return domain.Identity{AgentID: c.AgentID, AgentName: c.AgentName}
}

// DefaultLimit: размер окна, когда передан offset без limit.
const DefaultLimit = 50

// MaxLimit: верхняя граница окна выборки.
const MaxLimit = 1000

// Page: пагинация для встраивания в аргументы query-инструментов.
type Page struct {
	Limit  *int `json:"limit,omitempty" jsonschema:"description=Maximum number of records to return,minimum=1,maximum=1000"`
	Offset *int `json:"offset,omitempty" jsonschema:"description=Number of records to skip (requires a window; limit defaults to 50),minimum=0"`
}

// Apply выставляет окно [offset, offset+limit-1] после фильтров и сортировки.
func (p Page) Apply(q store.Query) store.Query {
	limit, offset := 0, 0
	if p.Limit != nil {
		limit = *p.Limit
	}
	if p.Offset != nil {
		offset = *p.Offset
		if limit == 0 && offset > 0 {
			limit = DefaultLimit
		}
	}
	return q.Page(limit, offset)
}

// decodeArgs разбирает аргументы вызова в типизированную структуру
// и проверяет ее по тем же тегам jsonschema, из которых строится схема инструмента.
func decodeArgs(raw map[string]any, target any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return domain.Validation("arguments are not serializable: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.Validation("argument %q must be %s", typeErr.Field, typeErr.Type.String())
		}
		return domain.Validation("invalid arguments: %v", err)
	}

	if err := checkTags(reflect.ValueOf(target)); err != nil {
		return err
	}
	if v, ok := target.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return err
			}
			return domain.Validation("%v", err)
		}
	}
	return nil
}

// checkTags проверяет required, enum, minimum и maximum.
func checkTags(v reflect.Value) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := v.Field(i)
		if f.Anonymous {
			if err := checkTags(fv); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		name := jsonName(f)
		rules := parseSchemaTag(f.Tag.Get("jsonschema"))

		if rules.required && fv.IsZero() {
			return domain.Validation("argument %q is required", name)
		}

		// опциональные поля: указатели: nil означает «не передано»
		val := fv
		if val.Kind() == reflect.Pointer {
			if val.IsNil() {
				continue
			}
			val = val.Elem()
		}

		if len(rules.enum) > 0 && val.Kind() == reflect.String {
			if !contains(rules.enum, val.String()) {
				return domain.Validation("argument %q must be one of: %s", name, strings.Join(rules.enum, ", "))
			}
		}
		if n, ok := number(val); ok {
			if rules.min != nil && n < *rules.min {
				return domain.Validation("argument %q must be >= %v", name, *rules.min)
			}
			if rules.max != nil && n > *rules.max {
				return domain.Validation("argument %q must be <= %v", name, *rules.max)
			}
		}
	}
	return nil
}

type schemaRules struct {
	required bool
	enum     []string
	min, max *float64
}

func parseSchemaTag(tag string) schemaRules {
	var r schemaRules
	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "required":
			r.required = true
		case "enum":
			r.enum = append(r.enum, value)
		case "minimum":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				r.min = &f
			}
		case "maximum":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				r.max = &f
			}
		}
	}
	return r
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

func number(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Patch собирает запись для записи в хранилище только из переданных полей аргументов.
// Встроенные Caller/Page и поля из skip пропускаются. Строки для временных колонок
// разбираются здесь, чтобы мусор не дошел до базы.
func Patch(sc store.Schema, args any, skip ...string) (store.Record, error) {
	rec := store.Record{}
	if err := collectPatch(sc, reflect.ValueOf(args), rec, skip); err != nil {
		return nil, err
	}
	return rec, nil
}

var (
	callerType = reflect.TypeOf(Caller{})
	pageType   = reflect.TypeOf(Page{})
)

func collectPatch(sc store.Schema, v reflect.Value, rec store.Record, skip []string) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("patch: %s is not a struct", v.Type())
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := v.Field(i)
		if f.Anonymous {
			if f.Type == callerType || f.Type == pageType {
				continue
			}
			if err := collectPatch(sc, fv, rec, skip); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		name := jsonName(f)
		if name == "-" || contains(skip, name) {
			continue
		}

		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		} else if fv.IsZero() {
			continue
		}

		col, ok := sc.Column(name)
		if !ok {
			return fmt.Errorf("patch: field %q has no column in %s", name, sc.Collection)
		}

		value := fv.Interface()
		if col.Type == store.TypeTimestamp {
			if s, ok := value.(string); ok {
				parsed, err := store.ParseTime(s)
				if err != nil {
					return domain.Validation("argument %q must be a date (YYYY-MM-DD) or RFC3339 time", name)
				}
				value = parsed
			}
		}
		rec[name] = value
	}
	return nil
}

// Eq: равенство, если аргумент передан.
func Eq(field string, v *string) store.Condition {
	if v == nil {
		return nil
	}
	return store.Where(field, store.OpEq, *v)
}

// Search: регистронезависимый поиск подстроки по нескольким полям (OR между полями).
func Search(term *string, fields ...string) store.Condition {
	if term == nil || strings.TrimSpace(*term) == "" {
		return nil
	}
	return store.AnyILike(strings.TrimSpace(*term), fields...)
}

// Between: диапазон по числовому полю, границы включительно.
func Between(field string, lo, hi *float64) []store.Condition {
	var out []store.Condition
	if lo != nil {
		out = append(out, store.Where(field, store.OpGte, *lo))
	}
	if hi != nil {
		out = append(out, store.Where(field, store.OpLte, *hi))
	}
	return out
}

// TimeBound: сравнение временного поля с датой из аргумента.
func TimeBound(field string, op store.Operator, v *string) (store.Condition, error) {
	if v == nil {
		return nil, nil
	}
	t, err := store.ParseTime(*v)
	if err != nil {
		return nil, domain.Validation("%q is not a date (YYYY-MM-DD) or RFC3339 time", *v)
	}
	return store.Where(field, op, t), nil
}
