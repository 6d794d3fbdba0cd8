package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
	"go.uber.org/zap"
)

type memorySink struct {
	mu      sync.Mutex
	entries []Entry
	batches int
	err     error
	panics  bool
}

func (s *memorySink) WriteBatch(_ context.Context, entries []Entry) error {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *memorySink) snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

func TestWriter_DrainsOnStop(t *testing.T) {
	sink := &memorySink{}
	w := NewWriter(sink, Config{BatchSize: 3, FlushInterval: time.Hour}, zap.NewNop())
	w.Start()

	for i := 0; i < 7; i++ {
		w.Record(Entry{AgentID: "a1", Module: "Tasks", Action: "create_task", Result: ResultSuccess})
	}
	w.Stop()

	got := sink.snapshot()
	require.Len(t, got, 7)
	assert.Equal(t, 3, sink.batches)
	for _, e := range got {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
		assert.Equal(t, UserContext, e.UserContext)
	}
}

func TestWriter_FlushesOnTimer(t *testing.T) {
	sink := &memorySink{}
	w := NewWriter(sink, Config{FlushInterval: 10 * time.Millisecond}, zap.NewNop())
	w.Start()
	defer w.Stop()

	w.Record(Entry{AgentID: "a1", Result: ResultError, ErrorMessage: "denied"})

	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestWriter_SinkFailureIsSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	w := NewWriter(sink, Config{}, zap.NewNop())
	w.Start()

	assert.NotPanics(t, func() { w.Record(Entry{AgentID: "a1"}) })
	w.Stop()
	assert.EqualValues(t, 1, w.Failed())
}

func TestWriter_SinkPanicIsSwallowed(t *testing.T) {
	w := NewWriter(&memorySink{panics: true}, Config{}, zap.NewNop())
	w.Start()
	w.Record(Entry{AgentID: "a1"})
	assert.NotPanics(t, w.Stop)
	assert.EqualValues(t, 1, w.Failed())
}

func TestWriter_LoadShedding(t *testing.T) {
	sink := &memorySink{}
	// воркер не запущен: буфер на 2 записи заполняется сразу
	w := NewWriter(sink, Config{BufferSize: 2}, zap.NewNop())

	for i := 0; i < 5; i++ {
		w.Record(Entry{AgentID: "a1"})
	}
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 2, w.Cap())
	assert.EqualValues(t, 3, w.Dropped())

	w.Start()
	w.Stop()
	assert.Len(t, sink.snapshot(), 2)

	// после Stop запись не паникует на закрытом канале
	assert.NotPanics(t, func() { w.Record(Entry{AgentID: "a1"}) })
	assert.EqualValues(t, 4, w.Dropped())
	w.Stop()
}

func TestStoreSink_WriteAndList(t *testing.T) {
	s, err := store.Open(store.Config{Driver: "sqlite", URL: ":memory:"}, Schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	sink := NewStoreSink(s)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, sink.WriteBatch(ctx, []Entry{
		{ID: "e1", AgentID: "a1", AgentName: "Scout", Module: "Tasks", Action: "create_task", Result: ResultSuccess,
			Details: map[string]any{"title": "X"}, UserContext: UserContext, CreatedAt: base},
		{ID: "e2", AgentID: "a1", Module: "Leads", Action: "delete_lead", Result: ResultError,
			ErrorMessage: "permission denied", UserContext: UserContext, CreatedAt: base.Add(time.Minute)},
		{ID: "e3", AgentID: "a2", Module: "Tasks", Action: "get_tasks", Result: ResultSuccess,
			UserContext: UserContext, CreatedAt: base.Add(2 * time.Minute)},
	}))

	all, err := sink.List(ctx, Filter{AgentID: "a1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e2", all[0].ID)
	assert.Equal(t, "permission denied", all[0].ErrorMessage)
	assert.Equal(t, ResultError, all[0].Result)
	assert.Equal(t, "Scout", all[1].AgentName)
	assert.Equal(t, map[string]any{"title": "X"}, all[1].Details)
	assert.True(t, all[1].CreatedAt.Equal(base))

	errs, err := sink.List(ctx, Filter{Result: ResultError})
	require.NoError(t, err)
	assert.Len(t, errs, 1)
}
