package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/infra"
	"go.uber.org/zap"
)

// AgentService управляет kill-switch агентов.
// Источник истины: Redis set, шлюзы получают изменения сигналом Pub/Sub.
type AgentService struct {
	rdb    redis.Cmdable
	logger *zap.Logger
}

func NewAgentService(rdb redis.Cmdable, logger *zap.Logger) *AgentService {
	return &AgentService{
		rdb:    rdb,
		logger: logger.Named("agent-service"),
	}
}

// updateAgentState: унифицированный механизм переключения состояния.
// Обновляет set и транслирует сигнал в Redis.
func (s *AgentService) updateAgentState(ctx context.Context, agentID string, blocked bool, actionName string) error {
	if agentID == "" {
		return fmt.Errorf("%s: agent id is required", actionName)
	}

	// 1. Persistence Layer
	var err error
	if blocked {
		err = s.rdb.SAdd(ctx, infra.RedisKeyBlockedAgents, agentID).Err()
	} else {
		err = s.rdb.SRem(ctx, infra.RedisKeyBlockedAgents, agentID).Err()
	}
	if err != nil {
		s.logger.Error("failed to update blocked set",
			zap.String("agent_id", agentID),
			zap.String("action", actionName),
			zap.Error(err))
		return fmt.Errorf("%s redis error: %w", actionName, err)
	}

	// 2. Real-time Signaling. Шлюз, пропустивший сигнал, подтянет set при переподключении.
	payload := engine.FormatSignal(agentID, blocked)
	if err := s.rdb.Publish(ctx, infra.RedisChanKillSwitch, payload).Err(); err != nil {
		s.logger.Warn("runtime signal delivery failed",
			zap.String("action", actionName),
			zap.String("channel", infra.RedisChanKillSwitch),
			zap.Error(err))
		return nil
	}

	s.logger.Info("agent state updated successfully",
		zap.String("agent_id", agentID),
		zap.String("action", actionName),
		zap.Bool("blocked", blocked))
	return nil
}

func (s *AgentService) BlockAgent(ctx context.Context, id string) error {
	return s.updateAgentState(ctx, id, true, "kill-switch-block")
}

func (s *AgentService) UnblockAgent(ctx context.Context, id string) error {
	return s.updateAgentState(ctx, id, false, "kill-switch-unblock")
}

// ListBlocked возвращает заблокированных агентов в стабильном порядке.
func (s *AgentService) ListBlocked(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, infra.RedisKeyBlockedAgents).Result()
	if err != nil {
		return nil, fmt.Errorf("service: could not fetch blocked agents: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
