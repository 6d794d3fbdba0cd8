package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
)

var itemsSchema = NewSchema("items",
	Column{Name: "name", Type: TypeText, NotNull: true},
	Column{Name: "status", Type: TypeText},
	Column{Name: "priority", Type: TypeText},
	Column{Name: "score", Type: TypeInteger},
	Column{Name: "due", Type: TypeTimestamp},
	Column{Name: "meta", Type: TypeJSON},
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(Config{Driver: "sqlite", URL: ":memory:"}, itemsSchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seed(t *testing.T, s Store, rows ...Record) {
	t.Helper()
	for _, r := range rows {
		_, err := s.Insert(context.Background(), "items", r)
		require.NoError(t, err)
	}
}

func ids(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i], _ = r.String("id")
	}
	return out
}

func TestSQLStore_InsertAssignsIDAndCreatedAt(t *testing.T) {
	s := newTestStore(t).WithClock(func() time.Time { return base })
	ctx := context.Background()

	rec, err := s.Insert(ctx, "items", Record{"name": "alpha", "score": float64(42), "meta": map[string]any{"k": "v"}})
	require.NoError(t, err)

	id, ok := rec.String("id")
	require.True(t, ok)
	assert.Len(t, id, 36)

	created, ok := rec.Time("created_at")
	require.True(t, ok)
	assert.True(t, created.Equal(base))
	assert.Nil(t, rec["updated_at"])
	assert.EqualValues(t, 42, rec["score"])
	assert.Equal(t, map[string]any{"k": "v"}, rec["meta"])

	got, err := s.Get(ctx, "items", id)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got["name"])
}

func TestSQLStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "items", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLStore_UnknownFieldIsValidationError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "items", Record{"name": "x", "bogus": 1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Select(ctx, "items", Query{}.And(Where("bogus", OpEq, 1)))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSQLStore_UnknownCollection(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Select(context.Background(), "ghosts", Query{})
	assert.ErrorIs(t, err, domain.ErrDataStore)
}

func TestSQLStore_SelectFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		Record{"id": "a", "name": "Write report", "status": "open", "priority": "High", "score": 10, "created_at": base.Add(1 * time.Hour)},
		Record{"id": "b", "name": "review 100% coverage", "status": "done", "priority": "Low", "score": 80, "created_at": base.Add(2 * time.Hour)},
		Record{"id": "c", "name": "Call client", "status": nil, "priority": "Urgent", "score": 55, "created_at": base.Add(3 * time.Hour)},
		Record{"id": "d", "name": "REPORT draft", "status": "open", "priority": nil, "score": 30, "created_at": base.Add(4 * time.Hour)},
	)

	t.Run("equality newest first", func(t *testing.T) {
		got, err := s.Select(ctx, "items", Query{}.And(Where("status", OpEq, "open")))
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "a"}, ids(got))
	})

	t.Run("not in keeps nulls", func(t *testing.T) {
		got, err := s.Select(ctx, "items", Query{}.And(Where("status", OpNotIn, []string{"done"})))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "c", "d"}, ids(got))
	})

	t.Run("in", func(t *testing.T) {
		got, err := s.Select(ctx, "items", Query{}.And(Where("priority", OpIn, []string{"High", "Urgent"})))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "c"}, ids(got))
	})

	t.Run("empty in matches nothing", func(t *testing.T) {
		got, err := s.Select(ctx, "items", Query{}.And(Where("priority", OpIn, []string{})))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("search is case insensitive OR across fields and AND with filters", func(t *testing.T) {
		q := Query{}.And(AnyILike("report", "name", "status"), Where("score", OpGte, 20))
		got, err := s.Select(ctx, "items", q)
		require.NoError(t, err)
		assert.Equal(t, []string{"d"}, ids(got))
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		got, err := s.Select(ctx, "items", Query{}.And(AnyILike("100%", "name")))
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(got))

		got, err = s.Select(ctx, "items", Query{}.And(AnyILike("%", "name")))
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(got))
	})

	t.Run("rank order desc with nulls last", func(t *testing.T) {
		q := Query{}.OrderBy(Order{Field: "priority", Desc: true, Rank: []string{"Low", "Medium", "High", "Urgent"}})
		got, err := s.Select(ctx, "items", q)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b", "d"}, ids(got))
	})

	t.Run("pagination window", func(t *testing.T) {
		got, err := s.Select(ctx, "items", Query{}.Page(2, 1))
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, ids(got))
	})

	t.Run("projection", func(t *testing.T) {
		got, err := s.Select(ctx, "items", Query{Fields: []string{"id", "score"}}.And(Where("id", OpEq, "a")))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Len(t, got[0], 2)
	})

	t.Run("time range", func(t *testing.T) {
		q := Query{}.And(Where("created_at", OpGte, base.Add(2*time.Hour)), Where("created_at", OpLt, base.Add(4*time.Hour)))
		got, err := s.Select(ctx, "items", q)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, ids(got))
	})
}

func TestSQLStore_SearchFoldsNonASCII(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		Record{"id": "ru", "name": "Иван Петров"},
		Record{"id": "fr", "name": "ÉLODIE Martin"},
		Record{"id": "en", "name": "John Smith"},
	)

	cases := []struct {
		term string
		want []string
	}{
		{"иван", []string{"ru"}},
		{"ПЕТРОВ", []string{"ru"}},
		{"élodie", []string{"fr"}},
		{"Élodie", []string{"fr"}},
		{"JOHN", []string{"en"}},
	}
	for _, tc := range cases {
		got, err := s.Select(ctx, "items", Query{}.And(AnyILike(tc.term, "name")))
		require.NoError(t, err, tc.term)
		assert.Equal(t, tc.want, ids(got), tc.term)
	}
}

func TestSQLStore_UpdateOnlyPresentFields(t *testing.T) {
	now := base.Add(24 * time.Hour)
	s := newTestStore(t).WithClock(func() time.Time { return now })
	ctx := context.Background()
	seed(t, s, Record{"id": "a", "name": "first", "status": "open", "score": 5, "created_at": base})

	rec, err := s.Update(ctx, "items", "a", Record{"status": "done"})
	require.NoError(t, err)
	assert.Equal(t, "done", rec["status"])
	assert.Equal(t, "first", rec["name"])
	assert.EqualValues(t, 5, rec["score"])
	updated, ok := rec.Time("updated_at")
	require.True(t, ok)
	assert.True(t, updated.Equal(now))

	// пустой патч ничего не пишет
	same, err := s.Update(ctx, "items", "a", Record{})
	require.NoError(t, err)
	assert.Equal(t, rec, same)

	_, err = s.Update(ctx, "items", "missing", Record{"status": "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, Record{"id": "a", "name": "x"})

	require.NoError(t, s.Delete(ctx, "items", "a"))
	assert.ErrorIs(t, s.Delete(ctx, "items", "a"), domain.ErrNotFound)

	_, err := s.Get(ctx, "items", "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSchema_DDLPerDialect(t *testing.T) {
	pg := itemsSchema.DDL(Postgres)
	require.Len(t, pg, 2)
	assert.Contains(t, pg[0], `"created_at" TIMESTAMPTZ NOT NULL`)
	assert.Contains(t, pg[0], `"id" TEXT PRIMARY KEY`)
	assert.Contains(t, pg[0], `"meta" JSONB`)

	assert.Equal(t, `unicode_lower("name") LIKE unicode_lower(?) ESCAPE '\'`, SQLite.ILike(`"name"`, "?"))

	lite := itemsSchema.DDL(SQLite)
	assert.Contains(t, lite[0], `"due" DATETIME`)
	assert.Contains(t, lite[1], `CREATE INDEX IF NOT EXISTS "idx_items_created_at"`)
}

func TestBuilder_PostgresPlaceholders(t *testing.T) {
	b := &builder{dialect: Postgres, schema: itemsSchema}
	sql, err := b.selectSQL(Query{}.
		And(Where("status", OpEq, "open"), AnyILike("rep", "name")).
		OrderBy(Order{Field: "priority", Desc: true, Rank: []string{"Low", "High"}}).
		Page(5, 10))
	require.NoError(t, err)

	assert.Contains(t, sql, `("status" = $1) AND ("name" ILIKE $2 ESCAPE '\')`)
	assert.Contains(t, sql, `CASE "priority" WHEN $3 THEN 0 WHEN $4 THEN 1 ELSE -1 END DESC`)
	assert.Contains(t, sql, `"created_at" DESC, "id" ASC LIMIT 5 OFFSET 10`)
	assert.Equal(t, []any{"open", "%rep%", "Low", "High"}, b.args)
}
