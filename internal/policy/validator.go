package policy

import (
	"context"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"go.uber.org/zap"
)

// Source: внешнее хранилище прав. Матрица читается заново на каждый вызов.
type Source interface {
	Matrix(ctx context.Context, agentID string) (domain.PermissionMatrix, error)
}

// Validator принимает решение (module, action) для агента. Default Deny (Zero Trust):
// нет записи, нет флага, неизвестный модуль или сбой источника ведут к запрету.
type Validator struct {
	source  Source
	modules map[string]bool
	logger  *zap.Logger
}

// NewValidator. modules: модули, которыми владеют зарегистрированные инструменты.
func NewValidator(source Source, logger *zap.Logger, modules ...string) *Validator {
	v := &Validator{
		source:  source,
		modules: make(map[string]bool, len(modules)),
		logger:  logger.Named("policy"),
	}
	for _, m := range modules {
		v.modules[m] = true
	}
	return v
}

// Validate возвращает nil только при явном true в матрице агента.
func (v *Validator) Validate(ctx context.Context, agentID, module string, action domain.Action) error {
	denied := domain.PermissionDenied(agentID, module, action)

	if agentID == "" || !action.Valid() {
		return denied
	}
	if !v.modules[module] {
		// запись в матрице для модуля без инструментов, расхождение схемы
		v.logger.Warn("permission check for unknown module",
			zap.String("agent_id", agentID), zap.String("module", module))
		return denied
	}

	matrix, err := v.source.Matrix(ctx, agentID)
	if err != nil {
		v.logger.Error("permission source failed, denying",
			zap.String("agent_id", agentID), zap.String("module", module), zap.Error(err))
		return denied
	}

	if !matrix.Allows(module, action) {
		v.logger.Debug("permission denied",
			zap.String("agent_id", agentID), zap.String("module", module), zap.String("action", string(action)))
		return denied
	}
	return nil
}
