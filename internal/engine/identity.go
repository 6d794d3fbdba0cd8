package engine

import (
	"context"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
)

// IdentityResolver определяет вызывающего агента.
// Проверенный токен в контексте главнее аргументов: agent_id в аргументах,
// отличный от агента токена, отклоняется как PERMISSION_DENIED.
// Без токена: agent_id в аргументах, затем fallback процесса.
type IdentityResolver struct {
	Fallback domain.Identity
}

func (r IdentityResolver) Resolve(ctx context.Context, raw map[string]any) (domain.Identity, error) {
	claimed, _ := raw["agent_id"].(string)

	if id, ok := domain.IdentityFromContext(ctx); ok {
		if claimed != "" && claimed != id.AgentID {
			return id, domain.NewError(domain.KindPermissionDenied,
				"permission denied: agent_id %q does not match the authenticated agent %s", claimed, id.AgentID)
		}
		return id, nil
	}
	if claimed != "" {
		name, _ := raw["agent_name"].(string)
		return domain.Identity{AgentID: claimed, AgentName: name}, nil
	}
	if !r.Fallback.IsZero() {
		return r.Fallback, nil
	}
	return domain.Identity{}, domain.NewError(domain.KindMissingIdentity, "agent_id is required")
}
