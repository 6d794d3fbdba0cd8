package domain

import "context"

// Identity: кто вызывает инструмент. AgentName нужен только для аудита.
type Identity struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name,omitempty"`
}

// IsZero: идентичность не установлена.
func (i Identity) IsZero() bool {
	return i.AgentID == ""
}

type identityKey struct{}

// ContextWithIdentity кладет идентичность агента (например, из проверенного токена) в контекст.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext достает идентичность, положенную auth-слоем.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.IsZero() {
		return Identity{}, false
	}
	return id, true
}
