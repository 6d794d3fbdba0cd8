package engine

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/spaceai-crm-gateway/internal/infra"
	"go.uber.org/zap"
)

// KillSwitch: локальный (L1) кэш заблокированных агентов.
// Источник истины: Redis set, изменения приходят сигналами Pub/Sub.
type KillSwitch struct {
	mu            sync.RWMutex
	blockedAgents map[string]struct{}
	rdb           *redis.Client
	logger        *zap.Logger
}

// NewKillSwitch. rdb == nil, kill-switch работает только локально (SetBlocked).
func NewKillSwitch(rdb *redis.Client, logger *zap.Logger) *KillSwitch {
	return &KillSwitch{
		blockedAgents: make(map[string]struct{}),
		rdb:           rdb,
		logger:        logger.With(zap.String("mod", "kill-switch")),
	}
}

// Init загружает текущее состояние блокировок при старте и после переподключения.
func (k *KillSwitch) Init(ctx context.Context) error {
	if k.rdb == nil {
		return nil
	}
	agents, err := k.rdb.SMembers(ctx, infra.RedisKeyBlockedAgents).Result()
	if err != nil {
		return err
	}

	fresh := make(map[string]struct{}, len(agents))
	for _, id := range agents {
		fresh[id] = struct{}{}
	}

	k.mu.Lock()
	k.blockedAgents = fresh
	k.mu.Unlock()

	k.logger.Info("kill-switch state loaded", zap.Int("blocked", len(fresh)))
	return nil
}

// Run слушает сигналы до отмены ctx.
func (k *KillSwitch) Run(ctx context.Context) {
	if k.rdb == nil {
		return
	}
	listenSignals(ctx, k.rdb, k.logger, infra.RedisChanKillSwitch, signalHandler{
		resync: func() error { return k.Init(ctx) },
		apply:  k.SetBlocked,
	})
}

func (k *KillSwitch) SetBlocked(agentID string, blocked bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if blocked {
		k.blockedAgents[agentID] = struct{}{}
	} else {
		delete(k.blockedAgents, agentID)
	}
	k.logger.Info("kill-switch signal", zap.String("agent_id", agentID), zap.Bool("blocked", blocked))
}

func (k *KillSwitch) IsBlocked(agentID string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, blocked := k.blockedAgents[agentID]
	return blocked
}
