package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
)

var auditColumns = []string{
	"id", "agent_id", "agent_name", "module", "action",
	"result", "error_message", "details", "user_context", "created_at",
}

// AuditRepo: нативный pgx-sink журнала: пачка уходит одним COPY.
// Таблицу создает миграция консоли (audit.Schema).
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) WriteBatch(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{audit.Collection},
		auditColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			return auditRow(entries[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres: copy audit batch: %w", err)
	}
	if int(n) != len(entries) {
		return fmt.Errorf("postgres: copied %d of %d audit entries", n, len(entries))
	}
	return nil
}

func auditRow(e audit.Entry) []any {
	var details any
	if len(e.Details) > 0 {
		details = e.Details
	}
	return []any{
		e.ID,
		e.AgentID,
		nullable(e.AgentName),
		e.Module,
		e.Action,
		string(e.Result),
		nullable(e.ErrorMessage),
		details,
		e.UserContext,
		e.CreatedAt,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
