package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
)

// builder накапливает аргументы и строит параметризованный SQL.
type builder struct {
	dialect Dialect
	schema  Schema
	args    []any
}

func (b *builder) bind(v any) string {
	if t, ok := v.(time.Time); ok {
		v = t.UTC()
	}
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *builder) column(name string) (string, error) {
	if _, ok := b.schema.Column(name); !ok {
		return "", domain.Validation("unknown field %q for %s", name, b.schema.Collection)
	}
	return quoteIdent(name), nil
}

func (b *builder) columnList(fields []string) string {
	if len(fields) == 0 {
		fields = b.schema.ColumnNames()
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f)
	}
	return strings.Join(cols, ", ")
}

func (b *builder) selectSQL(q Query) (string, error) {
	for _, f := range q.Fields {
		if _, err := b.column(f); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", b.columnList(q.Fields), quoteIdent(b.schema.Collection))

	where, err := b.whereSQL(q.Where)
	if err != nil {
		return "", err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	order, err := b.orderSQL(q.Order)
	if err != nil {
		return "", err
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
		if q.Offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
		}
	}
	return sb.String(), nil
}

func (b *builder) whereSQL(conds []Condition) (string, error) {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if len(c) == 0 {
			continue
		}
		ors := make([]string, 0, len(c))
		for _, p := range c {
			s, err := b.predicateSQL(p)
			if err != nil {
				return "", err
			}
			ors = append(ors, s)
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	return strings.Join(parts, " AND "), nil
}

func (b *builder) predicateSQL(p Predicate) (string, error) {
	col, err := b.column(p.Field)
	if err != nil {
		return "", err
	}

	switch p.Op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return col + " " + string(p.Op) + " " + b.bind(p.Value), nil
	case OpIn, OpNotIn:
		values := listValues(p.Value)
		if len(values) == 0 {
			if p.Op == OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		phs := make([]string, len(values))
		for i, v := range values {
			phs[i] = b.bind(v)
		}
		list := "(" + strings.Join(phs, ", ") + ")"
		if p.Op == OpIn {
			return col + " IN " + list, nil
		}
		return "(" + col + " IS NULL OR " + col + " NOT IN " + list + ")", nil
	case OpILike:
		term := fmt.Sprint(p.Value)
		return b.dialect.ILike(col, b.bind("%"+escapeLike(term)+"%")), nil
	case OpIsNull, OpNotNull:
		return col + " " + string(p.Op), nil
	}
	return "", domain.Validation("unsupported operator %q", p.Op)
}

// orderSQL: NULL всегда в конце, ничьи разрешаются свежестью (created_at DESC), затем id.
func (b *builder) orderSQL(orders []Order) (string, error) {
	keys := make([]string, 0, len(orders)*2+2)
	seen := make(map[string]bool, len(orders))

	for _, o := range orders {
		col, err := b.column(o.Field)
		if err != nil {
			return "", err
		}
		seen[o.Field] = true

		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}

		keys = append(keys, "("+col+" IS NULL) ASC")
		if len(o.Rank) > 0 {
			var cs strings.Builder
			cs.WriteString("CASE " + col)
			for i, label := range o.Rank {
				fmt.Fprintf(&cs, " WHEN %s THEN %d", b.bind(label), i)
			}
			cs.WriteString(" ELSE -1 END")
			keys = append(keys, cs.String()+" "+dir)
			continue
		}
		keys = append(keys, col+" "+dir)
	}

	if !seen[ColumnCreatedAt] {
		keys = append(keys, quoteIdent(ColumnCreatedAt)+" DESC")
	}
	if !seen[ColumnID] {
		keys = append(keys, quoteIdent(ColumnID)+" ASC")
	}
	return strings.Join(keys, ", "), nil
}

func listValues(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	case nil:
		return nil
	}
	return []any{v}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
