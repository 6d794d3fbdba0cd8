package store

// Operator: оператор предиката.
type Operator string

const (
	OpEq      Operator = "="
	OpNeq     Operator = "<>"
	OpGt      Operator = ">"
	OpGte     Operator = ">="
	OpLt      Operator = "<"
	OpLte     Operator = "<="
	OpIn      Operator = "IN"
	OpNotIn   Operator = "NOT IN"
	OpILike   Operator = "ILIKE" // регистронезависимая подстрока, Value, сама подстрока без '%'
	OpIsNull  Operator = "IS NULL"
	OpNotNull Operator = "IS NOT NULL"
)

// Predicate: одно сравнение поля.
// Для OpIn/OpNotIn Value, []string или []any.
// OpNotIn пропускает NULL: отсутствие значения не совпадает ни с одной меткой.
type Predicate struct {
	Field string
	Op    Operator
	Value any
}

// Condition: дизъюнкция предикатов (OR). Условия запроса соединяются через AND.
type Condition []Predicate

// Order: один ключ сортировки. Rank задает порядок меток категориального поля
// (индекс в слайсе, вес), NULL всегда в конце.
type Order struct {
	Field string
	Desc  bool
	Rank  []string
}

// Query: отфильтрованная, упорядоченная и постраничная выборка.
// Offset без Limit игнорируется; окно, [Offset, Offset+Limit-1].
type Query struct {
	Fields []string
	Where  []Condition
	Order  []Order
	Limit  int
	Offset int
}

// Where: хелпер для условия из одного предиката.
func Where(field string, op Operator, value any) Condition {
	return Condition{{Field: field, Op: op, Value: value}}
}

// AnyILike: поиск подстроки по нескольким текстовым полям (OR).
func AnyILike(term string, fields ...string) Condition {
	c := make(Condition, 0, len(fields))
	for _, f := range fields {
		c = append(c, Predicate{Field: f, Op: OpILike, Value: term})
	}
	return c
}

// And добавляет условия к копии запроса.
func (q Query) And(conds ...Condition) Query {
	where := make([]Condition, 0, len(q.Where)+len(conds))
	where = append(where, q.Where...)
	for _, c := range conds {
		if len(c) > 0 {
			where = append(where, c)
		}
	}
	q.Where = where
	return q
}

// OrderBy заменяет сортировку.
func (q Query) OrderBy(orders ...Order) Query {
	q.Order = orders
	return q
}

// Page выставляет окно выборки.
func (q Query) Page(limit, offset int) Query {
	q.Limit = limit
	q.Offset = offset
	return q
}

// Desc / Asc, короткие конструкторы ключей сортировки.
func Desc(field string) Order { return Order{Field: field, Desc: true} }
func Asc(field string) Order  { return Order{Field: field} }

// NewestFirst: сортировка по умолчанию: свежие записи первыми.
var NewestFirst = Desc("created_at")
