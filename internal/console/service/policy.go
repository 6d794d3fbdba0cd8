package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"go.uber.org/zap"
)

// PermissionRepository описывает требования сервиса к хранилищу прав.
type PermissionRepository interface {
	Matrix(ctx context.Context, agentID string) (domain.PermissionMatrix, error)
	Put(ctx context.Context, agentID, module string, flags domain.PermissionFlags) (domain.PermissionFlags, error)
}

// PolicyService выдает и отзывает права агентов на модули.
// Шлюз читает матрицу на каждый вызов, поэтому сигнал об изменении не нужен.
type PolicyService struct {
	repo    PermissionRepository
	modules []string
	logger  *zap.Logger
}

func NewPolicyService(repo PermissionRepository, modules []string, logger *zap.Logger) *PolicyService {
	return &PolicyService{
		repo:    repo,
		modules: modules,
		logger:  logger.Named("policy-service"),
	}
}

// Get возвращает матрицу прав агента.
func (s *PolicyService) Get(ctx context.Context, agentID string) (domain.PermissionMatrix, error) {
	return s.repo.Matrix(ctx, agentID)
}

// Grant выставляет флаги действий в true. Остальные флаги модуля не меняются.
func (s *PolicyService) Grant(ctx context.Context, agentID, module string, actions ...domain.Action) (domain.PermissionFlags, error) {
	return s.set(ctx, agentID, module, true, actions)
}

// Revoke выставляет флаги действий в false.
func (s *PolicyService) Revoke(ctx context.Context, agentID, module string, actions ...domain.Action) (domain.PermissionFlags, error) {
	return s.set(ctx, agentID, module, false, actions)
}

func (s *PolicyService) set(ctx context.Context, agentID, module string, value bool, actions []domain.Action) (domain.PermissionFlags, error) {
	if agentID == "" {
		return domain.PermissionFlags{}, fmt.Errorf("agent id is required")
	}
	if !slices.Contains(s.modules, module) {
		return domain.PermissionFlags{}, fmt.Errorf("unknown module %q (known: %v)", module, s.modules)
	}
	if len(actions) == 0 {
		return domain.PermissionFlags{}, fmt.Errorf("at least one action is required")
	}

	var flags domain.PermissionFlags
	for _, a := range actions {
		if !a.Valid() {
			return domain.PermissionFlags{}, fmt.Errorf("unknown action %q", a)
		}
		flags.Set(a, value)
	}

	saved, err := s.repo.Put(ctx, agentID, module, flags)
	if err != nil {
		s.logger.Error("failed to save permissions",
			zap.String("agent_id", agentID),
			zap.String("module", module),
			zap.Error(err))
		return domain.PermissionFlags{}, fmt.Errorf("service: save permissions: %w", err)
	}

	s.logger.Info("permissions updated",
		zap.String("agent_id", agentID),
		zap.String("module", module),
		zap.Any("actions", actions),
		zap.Bool("granted", value))
	return saved, nil
}
