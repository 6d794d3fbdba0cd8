package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/stats"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

var noteSchema = store.NewSchema("notes",
	store.Column{Name: "title", Type: store.TypeText, NotNull: true},
	store.Column{Name: "status", Type: store.TypeText},
	store.Column{Name: "priority", Type: store.TypeText},
	store.Column{Name: "due_date", Type: store.TypeTimestamp},
	store.Column{Name: "score", Type: store.TypeInteger},
)

type getNotesArgs struct {
	Caller
	Page
	Status *string `json:"status,omitempty" jsonschema:"enum=Open,enum=Done"`
	Search *string `json:"search,omitempty"`
}

type createNoteArgs struct {
	Caller
	Title    string  `json:"title" jsonschema:"required"`
	Status   *string `json:"status,omitempty" jsonschema:"enum=Open,enum=Done"`
	DueDate  *string `json:"due_date,omitempty"`
	Score    *int    `json:"score,omitempty" jsonschema:"minimum=0,maximum=100"`
	Priority *string `json:"priority,omitempty" jsonschema:"enum=Low,enum=High"`
}

type idArgs struct {
	Caller
	ID string `json:"id" jsonschema:"required"`
}

type updateNoteArgs struct {
	Caller
	ID     string  `json:"id" jsonschema:"required"`
	Title  *string `json:"title,omitempty"`
	Status *string `json:"status,omitempty" jsonschema:"enum=Open,enum=Done"`
}

func noteDomain() *Domain {
	return &Domain{
		Scheme:        "notes",
		Module:        "Notes",
		Singular:      "note",
		Plural:        "notes",
		ServerName:    "Notes MCP Server",
		ServerVersion: "test",
		Schema:        noteSchema,
		Views: []View{
			{Name: "all", Title: "All Notes", Query: func(time.Time) store.Query {
				return store.Query{}.OrderBy(store.NewestFirst)
			}},
			{Name: "open", Title: "Open Notes", Query: func(time.Time) store.Query {
				return store.Query{}.And(store.Where("status", store.OpEq, "Open"))
			}},
			RecentView("Recent Notes", "Created in the last 30 days"),
		},
		Stats: stats.Spec{
			Dimensions: []stats.Dimension{{Name: "by_status", Field: "status", Labels: []string{"Open", "Done"}}},
			Windows:    []stats.Window{{Name: "created_last_7_days", Field: "created_at", From: -7 * 24 * time.Hour}},
			Averages:   []stats.Average{{Name: "average_score", Field: "score"}},
		},
		Tools: []Tool{
			NewTool("get_notes", "List notes", domain.ActionView, func(ctx context.Context, rt *Runtime, a *getNotesArgs) (any, error) {
				q := store.Query{}.And(Eq("status", a.Status), Search(a.Search, "title")).OrderBy(store.NewestFirst)
				rows, err := rt.Select(ctx, a.Page.Apply(q))
				if err != nil {
					return nil, err
				}
				return rt.Collection(rows), nil
			}),
			NewTool("create_note", "Create a note", domain.ActionCreate, func(ctx context.Context, rt *Runtime, a *createNoteArgs) (any, error) {
				rec, err := Patch(rt.Domain.Schema, a)
				if err != nil {
					return nil, err
				}
				if _, ok := rec["status"]; !ok {
					rec["status"] = "Open"
				}
				return rt.Insert(ctx, rec)
			}),
			NewTool("update_note", "Update a note", domain.ActionEdit, func(ctx context.Context, rt *Runtime, a *updateNoteArgs) (any, error) {
				rec, err := Patch(rt.Domain.Schema, a, "id")
				if err != nil {
					return nil, err
				}
				return rt.Update(ctx, a.ID, rec)
			}),
			NewTool("delete_note", "Delete a note", domain.ActionDelete, func(ctx context.Context, rt *Runtime, a *idArgs) (any, error) {
				if err := rt.Delete(ctx, a.ID); err != nil {
					return nil, err
				}
				return map[string]any{"deleted": a.ID}, nil
			}),
			NewTool("explode", "Always panics", domain.ActionView, func(context.Context, *Runtime, *idArgs) (any, error) {
				panic("kaboom")
			}),
		},
		Prompts: []Prompt{{
			Name:        "summarize_note",
			Description: "Summarize one note",
			Arguments:   []PromptArgument{{Name: "note_id", Description: "Note id", Required: true}},
			Render: func(ctx context.Context, rt *Runtime, args map[string]string) (string, error) {
				rec, err := rt.Get(ctx, args["note_id"])
				if err != nil {
					return "", err
				}
				return "Summarize: " + rec["title"].(string), nil
			},
		}},
	}
}

// matrixAuthorizer: права «агент -> модуль -> действие» в памяти.
type matrixAuthorizer map[string]domain.PermissionMatrix

func (m matrixAuthorizer) Validate(_ context.Context, agentID, module string, action domain.Action) error {
	if !m[agentID].Allows(module, action) {
		return domain.PermissionDenied(agentID, module, action)
	}
	return nil
}

type recorder struct {
	mu      sync.Mutex
	entries []audit.Entry
	panics  bool
}

func (r *recorder) Record(e audit.Entry) {
	if r.panics {
		panic("audit sink exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recorder) all() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Entry(nil), r.entries...)
}

type blocked map[string]bool

func (b blocked) IsBlocked(id string) bool { return b[id] }

func allow(actions ...domain.Action) domain.PermissionFlags {
	var f domain.PermissionFlags
	for _, a := range actions {
		f.Set(a, true)
	}
	return f
}

type fixture struct {
	store *store.SQLStore
	gw    *Gateway
	audit *recorder
	block blocked
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(store.Config{Driver: "sqlite", URL: ":memory:"}, noteSchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	s.WithClock(func() time.Time { return testNow })

	f := &fixture{store: s, audit: &recorder{}, block: blocked{}}
	authz := matrixAuthorizer{
		"writer": {"Notes": allow(domain.ActionView, domain.ActionCreate, domain.ActionEdit, domain.ActionDelete)},
		"reader": {"Notes": allow(domain.ActionView)},
	}
	f.gw, err = New(noteDomain(), Deps{
		Store:      s,
		Authorizer: authz,
		Blocker:    f.block,
		Audit:      f.audit,
		Clock:      func() time.Time { return testNow },
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) seed(t *testing.T, rows ...store.Record) {
	t.Helper()
	for _, r := range rows {
		_, err := f.store.Insert(context.Background(), "notes", r)
		require.NoError(t, err)
	}
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	rows, err := f.store.Select(context.Background(), "notes", store.Query{})
	require.NoError(t, err)
	return len(rows)
}
