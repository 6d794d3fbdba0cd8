package engine

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseSignal(t *testing.T) {
	cases := []struct {
		payload string
		id      string
		status  bool
		ok      bool
	}{
		{"agent-1:true", "agent-1", true, true},
		{"agent-1:on", "agent-1", true, true},
		{"agent-1:false", "agent-1", false, true},
		{"urn:agent:7:true", "urn:agent:7", true, true},
		{"agent-1", "", false, false},
		{":true", "", false, false},
		{"agent-1:", "", false, false},
	}
	for _, tc := range cases {
		id, status, ok := ParseSignal(tc.payload)
		assert.Equal(t, tc.ok, ok, tc.payload)
		assert.Equal(t, tc.id, id, tc.payload)
		assert.Equal(t, tc.status, status, tc.payload)
	}

	id, status, ok := ParseSignal(FormatSignal("a:b", true))
	require.True(t, ok)
	assert.Equal(t, "a:b", id)
	assert.True(t, status)
}

func TestKillSwitch_Local(t *testing.T) {
	k := NewKillSwitch(nil, zap.NewNop())
	require.NoError(t, k.Init(context.Background()))
	k.Run(context.Background())

	assert.False(t, k.IsBlocked("a1"))
	k.SetBlocked("a1", true)
	assert.True(t, k.IsBlocked("a1"))
	k.SetBlocked("a1", false)
	assert.False(t, k.IsBlocked("a1"))
}

func TestConsumeSignals(t *testing.T) {
	ks := NewKillSwitch(nil, zap.NewNop())
	ch := make(chan *redis.Message, 4)
	ch <- &redis.Message{Payload: "bot-1:true"}
	ch <- &redis.Message{Payload: "garbage"}
	ch <- &redis.Message{Payload: "bot-2:true"}
	ch <- &redis.Message{Payload: "bot-1:false"}
	close(ch)

	// закрытый канал завершает чтение: дальше идет переподписка
	consumeSignals(context.Background(), ch, zap.NewNop(), ks.SetBlocked)

	assert.False(t, ks.IsBlocked("bot-1"))
	assert.True(t, ks.IsBlocked("bot-2"))
}
