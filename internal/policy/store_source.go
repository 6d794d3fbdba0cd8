package policy

import (
	"context"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

// PermissionsCollection: таблица прав агентов во внешнем хранилище.
const PermissionsCollection = "agent_permissions"

// Schema таблицы agent_permissions. Флаги nullable: NULL трактуется как запрет.
var Schema = store.NewSchema(PermissionsCollection,
	store.Column{Name: "agent_id", Type: store.TypeText, NotNull: true},
	store.Column{Name: "module", Type: store.TypeText, NotNull: true},
	store.Column{Name: "can_view", Type: store.TypeBoolean},
	store.Column{Name: "can_create", Type: store.TypeBoolean},
	store.Column{Name: "can_edit", Type: store.TypeBoolean},
	store.Column{Name: "can_delete", Type: store.TypeBoolean},
).WithIndex("agent_id", "module")

var flagColumns = map[domain.Action]string{
	domain.ActionView:   "can_view",
	domain.ActionCreate: "can_create",
	domain.ActionEdit:   "can_edit",
	domain.ActionDelete: "can_delete",
}

// StoreSource читает матрицу из таблицы agent_permissions без кэширования.
type StoreSource struct {
	store store.Store
}

func NewStoreSource(s store.Store) *StoreSource {
	return &StoreSource{store: s}
}

func (s *StoreSource) Matrix(ctx context.Context, agentID string) (domain.PermissionMatrix, error) {
	rows, err := s.store.Select(ctx, PermissionsCollection,
		store.Query{}.And(store.Where("agent_id", store.OpEq, agentID)).OrderBy(store.NewestFirst))
	if err != nil {
		return nil, err
	}

	m := make(domain.PermissionMatrix, len(rows))
	for _, row := range rows {
		module, ok := row.String("module")
		if !ok {
			continue
		}
		// несколько строк на модуль: строки идут от свежих к старым, берется первая
		if _, seen := m[module]; seen {
			continue
		}
		m[module] = flagsFromRecord(row)
	}
	return m, nil
}

// Put выставляет флаги агента на модуль: обновляет существующую строку или создает новую.
// Флаги, равные nil, не трогаются.
func (s *StoreSource) Put(ctx context.Context, agentID, module string, flags domain.PermissionFlags) (domain.PermissionFlags, error) {
	rows, err := s.store.Select(ctx, PermissionsCollection, store.Query{Limit: 1}.And(
		store.Where("agent_id", store.OpEq, agentID),
		store.Where("module", store.OpEq, module),
	).OrderBy(store.NewestFirst))
	if err != nil {
		return domain.PermissionFlags{}, err
	}

	patch := store.Record{}
	for a, col := range flagColumns {
		if v := flagOf(&flags, a); v != nil {
			patch[col] = *v
		}
	}

	var row store.Record
	if len(rows) == 0 {
		patch["agent_id"] = agentID
		patch["module"] = module
		row, err = s.store.Insert(ctx, PermissionsCollection, patch)
	} else {
		id, _ := rows[0].String(store.ColumnID)
		row, err = s.store.Update(ctx, PermissionsCollection, id, patch)
	}
	if err != nil {
		return domain.PermissionFlags{}, err
	}
	return flagsFromRecord(row), nil
}

func flagsFromRecord(row store.Record) domain.PermissionFlags {
	var f domain.PermissionFlags
	for a, col := range flagColumns {
		// в SQLite BOOLEAN может прийти числом
		switch v := row[col].(type) {
		case bool:
			f.Set(a, v)
		case int64:
			f.Set(a, v == 1)
		}
	}
	return f
}

func flagOf(f *domain.PermissionFlags, a domain.Action) *bool {
	switch a {
	case domain.ActionView:
		return f.View
	case domain.ActionCreate:
		return f.Create
	case domain.ActionEdit:
		return f.Edit
	case domain.ActionDelete:
		return f.Delete
	}
	return nil
}
