package engine

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	resubscribeMin = time.Second
	resubscribeMax = 30 * time.Second
)

// signalHandler: реакция подписчика на канал сигналов "id:status".
type signalHandler struct {
	// resync вызывается после каждой успешной подписки: сигналы за время разрыва потеряны
	resync func() error
	apply  func(id string, status bool)
}

// listenSignals держит подписку на канал до отмены ctx.
// Разрыв соединения ведет к переподписке с растущей паузой.
func listenSignals(ctx context.Context, rdb *redis.Client, logger *zap.Logger, channel string, h signalHandler) {
	backoff := resubscribeMin
	for ctx.Err() == nil {
		pubsub := rdb.Subscribe(ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Duration("retry_in", backoff), zap.Error(err))
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, resubscribeMax)
			continue
		}
		backoff = resubscribeMin

		if err := h.resync(); err != nil {
			logger.Error("sync failed on reconnect", zap.Error(err))
		}
		consumeSignals(ctx, pubsub.Channel(), logger, h.apply)
		pubsub.Close()

		if !sleepCtx(ctx, resubscribeMin) {
			return
		}
	}
}

// consumeSignals читает канал, пока он открыт и ctx жив.
func consumeSignals(ctx context.Context, ch <-chan *redis.Message, logger *zap.Logger, apply func(string, bool)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			id, status, valid := ParseSignal(msg.Payload)
			if !valid {
				logger.Error("invalid signal format", zap.String("payload", msg.Payload))
				continue
			}
			apply(id, status)
		}
	}
}

// ParseSignal разбирает "agent_id:status". Двоеточие в самом id допустимо.
func ParseSignal(payload string) (id string, status bool, ok bool) {
	i := strings.LastIndex(payload, ":")
	if i <= 0 || i == len(payload)-1 {
		return "", false, false
	}
	switch payload[i+1:] {
	case "true", "on":
		status = true
	}
	return payload[:i], status, true
}

// FormatSignal: обратная операция для публикующей стороны (консоль).
func FormatSignal(id string, status bool) string {
	if status {
		return id + ":true"
	}
	return id + ":false"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
