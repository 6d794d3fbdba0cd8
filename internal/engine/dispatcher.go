package engine

import (
	"context"
	"time"

	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
	"go.uber.org/zap"
)

// Authorizer: Permission Validator.
type Authorizer interface {
	Validate(ctx context.Context, agentID, module string, action domain.Action) error
}

// Blocker: kill-switch: заблокированный агент получает отказ до проверки прав.
type Blocker interface {
	IsBlocked(agentID string) bool
}

// Dispatcher маршрутизирует вызов инструмента: права -> исполнение -> аудит -> конверт ответа.
type Dispatcher struct {
	domain   *Domain
	tools    map[string]*Tool
	store    store.Store
	authz    Authorizer
	blocker  Blocker
	audit    audit.Recorder
	identity IdentityResolver
	clock    Clock
	metrics  *Metrics
	logger   *zap.Logger
}

// Dispatch выполняет инструмент. Любой сбой исполнения возвращается в конверте,
// ошибкой Go возвращается только неизвестное имя инструмента (ошибка связки протокола).
func (d *Dispatcher) Dispatch(ctx context.Context, name string, raw map[string]any) (Envelope, error) {
	// Идентичность проверяется раньше всего остального, даже имени инструмента
	id, idErr := d.identity.Resolve(ctx, raw)
	if domain.KindOf(idErr) == domain.KindMissingIdentity {
		d.metrics.ToolCalls.WithLabelValues(d.domain.Scheme, name, "missing_identity").Inc()
		return Envelope{
			Error: &EnvelopeError{
				Code:    CodeMissingAgentID,
				Message: "agent_id is required: pass agent_id, send a bearer token or configure a fallback agent",
				Details: map[string]any{"tool": name},
			},
		}, nil
	}

	tool, ok := d.tools[name]
	if !ok {
		return Envelope{}, domain.UnknownOperation(name)
	}

	start := time.Now()
	var (
		data any
		err  = idErr
	)
	if err == nil {
		data, err = d.execute(ctx, tool, id, raw)
	} else {
		// agent_id в аргументах расходится с токеном
		d.metrics.PermissionDenials.WithLabelValues(d.domain.Module, string(tool.Action)).Inc()
	}
	d.metrics.ToolDuration.WithLabelValues(d.domain.Scheme, name).Observe(time.Since(start).Seconds())

	entry := audit.Entry{
		AgentID:   id.AgentID,
		AgentName: id.AgentName,
		Module:    d.domain.Module,
		Action:    name,
		Result:    audit.ResultSuccess,
		Details:   map[string]any{"permission": string(tool.Action), "arguments": arguments(raw)},
	}
	if err != nil {
		entry.Result = audit.ResultError
		entry.ErrorMessage = err.Error()
		entry.Details["kind"] = string(domain.KindOf(err))
	}
	d.record(entry)

	if err != nil {
		d.metrics.ToolCalls.WithLabelValues(d.domain.Scheme, name, "error").Inc()
		d.logFailure(name, id, err)
		return Envelope{
			Error: &EnvelopeError{
				Code:    CodeToolError,
				Message: err.Error(),
				Details: map[string]any{
					"tool":      name,
					"arguments": arguments(raw),
					"kind":      string(domain.KindOf(err)),
				},
			},
		}, nil
	}

	d.metrics.ToolCalls.WithLabelValues(d.domain.Scheme, name, "success").Inc()
	return Envelope{Success: true, Data: data}, nil
}

func (d *Dispatcher) execute(ctx context.Context, tool *Tool, id domain.Identity, raw map[string]any) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panic recovered", zap.String("tool", tool.Name), zap.Any("panic", r))
			data, err = nil, domain.NewError(domain.KindInternal, "internal error in %s", tool.Name)
		}
	}()

	// 1. Kill-Switch (in-memory, самый дешевый)
	if d.blocker != nil && d.blocker.IsBlocked(id.AgentID) {
		d.metrics.PermissionDenials.WithLabelValues(d.domain.Module, string(tool.Action)).Inc()
		return nil, domain.NewError(domain.KindPermissionDenied, "permission denied: agent %s is blocked", id.AgentID)
	}

	// 2. Матрица прав (fail-closed), до любого обращения к хранилищу
	if err := d.authz.Validate(ctx, id.AgentID, d.domain.Module, tool.Action); err != nil {
		d.metrics.PermissionDenials.WithLabelValues(d.domain.Module, string(tool.Action)).Inc()
		return nil, err
	}

	// 3. Аргументы по схеме инструмента
	args := tool.newArgs()
	if err := decodeArgs(raw, args); err != nil {
		return nil, err
	}

	rt := &Runtime{
		Domain: d.domain,
		Store:  d.store,
		Now:    d.clock(),
		Logger: d.logger,
	}
	return tool.run(ctx, rt, args)
}

// record: аудит best-effort: результат вызова уже посчитан и не зависит от журнала.
func (d *Dispatcher) record(e audit.Entry) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit record failed", zap.String("action", e.Action), zap.Any("panic", r))
		}
	}()
	d.audit.Record(e)
}

func (d *Dispatcher) logFailure(tool string, id domain.Identity, err error) {
	fields := []zap.Field{
		zap.String("tool", tool),
		zap.String("agent_id", id.AgentID),
		zap.String("kind", string(domain.KindOf(err))),
		zap.Error(err),
	}
	switch domain.KindOf(err) {
	case domain.KindDataStore, domain.KindInternal:
		d.logger.Error("tool call failed", fields...)
	case domain.KindPermissionDenied:
		d.logger.Info("tool call denied", fields...)
	default:
		d.logger.Debug("tool call rejected", fields...)
	}
}

// arguments: копия аргументов без полей идентичности, для деталей ответа и журнала.
func arguments(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "agent_id" || k == "agent_name" {
			continue
		}
		out[k] = v
	}
	return out
}
