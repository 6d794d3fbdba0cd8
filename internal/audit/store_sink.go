package audit

import (
	"context"
	"errors"

	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

// Collection: таблица журнала во внешнем хранилище.
const Collection = "agent_activity_log"

var Schema = store.NewSchema(Collection,
	store.Column{Name: "agent_id", Type: store.TypeText, NotNull: true},
	store.Column{Name: "agent_name", Type: store.TypeText},
	store.Column{Name: "module", Type: store.TypeText, NotNull: true},
	store.Column{Name: "action", Type: store.TypeText, NotNull: true},
	store.Column{Name: "result", Type: store.TypeText, NotNull: true},
	store.Column{Name: "error_message", Type: store.TypeText},
	store.Column{Name: "details", Type: store.TypeJSON},
	store.Column{Name: "user_context", Type: store.TypeText},
).WithIndex("agent_id", "created_at")

// StoreSink пишет журнал через общий store.Store (PostgreSQL или SQLite).
type StoreSink struct {
	store store.Store
}

func NewStoreSink(s store.Store) *StoreSink {
	return &StoreSink{store: s}
}

// WriteBatch вставляет записи по одной и продолжает после ошибки,
// чтобы одна плохая запись не теряла всю пачку.
func (s *StoreSink) WriteBatch(ctx context.Context, entries []Entry) error {
	var errs []error
	for _, e := range entries {
		if _, err := s.store.Insert(ctx, Collection, toRecord(e)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Filter: выборка журнала для консоли.
type Filter struct {
	AgentID string
	Module  string
	Result  Result
	Limit   int
}

// List возвращает последние записи журнала, свежие первыми.
func (s *StoreSink) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := store.Query{Limit: f.Limit}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if f.AgentID != "" {
		q = q.And(store.Where("agent_id", store.OpEq, f.AgentID))
	}
	if f.Module != "" {
		q = q.And(store.Where("module", store.OpEq, f.Module))
	}
	if f.Result != "" {
		q = q.And(store.Where("result", store.OpEq, string(f.Result)))
	}

	rows, err := s.store.Select(ctx, Collection, q)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRecord(r))
	}
	return out, nil
}

func toRecord(e Entry) store.Record {
	rec := store.Record{
		"id":           e.ID,
		"agent_id":     e.AgentID,
		"module":       e.Module,
		"action":       e.Action,
		"result":       string(e.Result),
		"user_context": e.UserContext,
		"created_at":   e.CreatedAt,
	}
	if e.AgentName != "" {
		rec["agent_name"] = e.AgentName
	}
	if e.ErrorMessage != "" {
		rec["error_message"] = e.ErrorMessage
	}
	if len(e.Details) > 0 {
		rec["details"] = e.Details
	}
	return rec
}

func fromRecord(r store.Record) Entry {
	e := Entry{}
	e.ID, _ = r.String("id")
	e.AgentID, _ = r.String("agent_id")
	e.AgentName, _ = r.String("agent_name")
	e.Module, _ = r.String("module")
	e.Action, _ = r.String("action")
	result, _ := r.String("result")
	e.Result = Result(result)
	e.ErrorMessage, _ = r.String("error_message")
	e.UserContext, _ = r.String("user_context")
	e.CreatedAt, _ = r.Time("created_at")
	if d, ok := r["details"].(map[string]any); ok {
		e.Details = d
	}
	return e
}
