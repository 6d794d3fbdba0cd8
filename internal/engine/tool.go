package engine

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
)

// Tool описывает объявленную заранее операцию: имя, описание, схема аргументов и требуемое действие.
type Tool struct {
	Name        string
	Description string
	Action      domain.Action

	schema  mcp.ToolOption
	newArgs func() any
	run     func(ctx context.Context, rt *Runtime, args any) (any, error)
}

// NewTool объявляет инструмент с типизированными аргументами A.
// Схема для клиента и серверная проверка строятся из одних и тех же тегов A.
func NewTool[A any](name, description string, action domain.Action, fn func(ctx context.Context, rt *Runtime, args *A) (any, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Action:      action,
		schema:      mcp.WithInputSchema[A](),
		newArgs:     func() any { return new(A) },
		run: func(ctx context.Context, rt *Runtime, args any) (any, error) {
			return fn(ctx, rt, args.(*A))
		},
	}
}

// MCP: дескриптор инструмента для протокола.
func (t Tool) MCP() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(t.Description),
		t.schema,
		mcp.WithReadOnlyHintAnnotation(t.Action == domain.ActionView),
		mcp.WithDestructiveHintAnnotation(t.Action == domain.ActionDelete),
	}
	return mcp.NewTool(t.Name, opts...)
}
