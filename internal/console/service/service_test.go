package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/infra"
	"github.com/xela07ax/spaceai-crm-gateway/internal/policy"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
	"go.uber.org/zap"
)

// fakeRedis реализует только команды, которые использует AgentService.
type fakeRedis struct {
	redis.Cmdable
	set       map[string]bool
	published []string
	failSet   bool
}

func newFakeRedis() *fakeRedis { return &fakeRedis{set: map[string]bool{}} }

func (f *fakeRedis) SAdd(_ context.Context, key string, members ...any) *redis.IntCmd {
	if f.failSet {
		return redis.NewIntResult(0, errors.New("connection refused"))
	}
	for _, m := range members {
		f.set[m.(string)] = true
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeRedis) SRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	for _, m := range members {
		delete(f.set, m.(string))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeRedis) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	var out []string
	for m := range f.set {
		out = append(out, m)
	}
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.published = append(f.published, channel+" "+message.(string))
	return redis.NewIntResult(1, nil)
}

func TestAgentService_BlockUnblock(t *testing.T) {
	rdb := newFakeRedis()
	svc := NewAgentService(rdb, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.BlockAgent(ctx, "bot-2"))
	require.NoError(t, svc.BlockAgent(ctx, "bot-1"))
	ids, err := svc.ListBlocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bot-1", "bot-2"}, ids)

	require.NoError(t, svc.UnblockAgent(ctx, "bot-2"))
	ids, err = svc.ListBlocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bot-1"}, ids)

	assert.Equal(t, []string{
		infra.RedisChanKillSwitch + " bot-2:true",
		infra.RedisChanKillSwitch + " bot-1:true",
		infra.RedisChanKillSwitch + " bot-2:false",
	}, rdb.published)
}

func TestAgentService_SetFailureSkipsSignal(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failSet = true
	svc := NewAgentService(rdb, zap.NewNop())

	err := svc.BlockAgent(context.Background(), "bot-1")
	require.Error(t, err)
	assert.Empty(t, rdb.published)

	assert.Error(t, svc.BlockAgent(context.Background(), ""))
}

func newPolicyService(t *testing.T) (*PolicyService, *store.SQLStore) {
	t.Helper()
	s, err := store.Open(store.Config{Driver: "sqlite", URL: ":memory:"}, policy.Schema, audit.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return NewPolicyService(policy.NewStoreSource(s), []string{"Tasks", "Leads"}, zap.NewNop()), s
}

func TestPolicyService_GrantRevoke(t *testing.T) {
	svc, _ := newPolicyService(t)
	ctx := context.Background()

	_, err := svc.Grant(ctx, "bot", "Tasks", domain.ActionView, domain.ActionCreate)
	require.NoError(t, err)
	flags, err := svc.Revoke(ctx, "bot", "Tasks", domain.ActionCreate)
	require.NoError(t, err)
	assert.True(t, flags.Allows(domain.ActionView))
	assert.False(t, flags.Allows(domain.ActionCreate))

	m, err := svc.Get(ctx, "bot")
	require.NoError(t, err)
	assert.True(t, m.Allows("Tasks", domain.ActionView))
	assert.False(t, m.Allows("Tasks", domain.ActionEdit))
	assert.False(t, m.Allows("Leads", domain.ActionView))
}

func TestPolicyService_Rejects(t *testing.T) {
	svc, _ := newPolicyService(t)
	ctx := context.Background()

	_, err := svc.Grant(ctx, "bot", "Payroll", domain.ActionView)
	assert.ErrorContains(t, err, "unknown module")
	_, err = svc.Grant(ctx, "bot", "Tasks")
	assert.Error(t, err)
	_, err = svc.Grant(ctx, "bot", "Tasks", domain.Action("admin"))
	assert.Error(t, err)
	_, err = svc.Grant(ctx, "", "Tasks", domain.ActionView)
	assert.Error(t, err)
}

func TestAuditService_FetchLogs(t *testing.T) {
	_, s := newPolicyService(t)
	ctx := context.Background()
	sink := audit.NewStoreSink(s)
	require.NoError(t, sink.WriteBatch(ctx, []audit.Entry{
		{ID: "1", AgentID: "a", Module: "Tasks", Action: "get_tasks", Result: audit.ResultSuccess, UserContext: audit.UserContext, CreatedAt: time.Now()},
		{ID: "2", AgentID: "b", Module: "Leads", Action: "create_lead", Result: audit.ResultError, ErrorMessage: "denied", UserContext: audit.UserContext, CreatedAt: time.Now()},
	}))

	svc := NewAuditService(sink)
	logs, err := svc.FetchLogs(ctx, audit.Filter{Result: audit.ResultError})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "create_lead", logs[0].Action)
	assert.Equal(t, "denied", logs[0].ErrorMessage)

	_, err = svc.FetchLogs(ctx, audit.Filter{Result: "Maybe"})
	assert.Error(t, err)

	all, err := svc.FetchLogs(ctx, audit.Filter{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, []ModuleSummary{
		{Module: "Leads", Error: 1},
		{Module: "Tasks", Success: 1},
	}, Summarize(all))
}

type stubIssuer struct{ err error }

func (s stubIssuer) Issue(id domain.Identity) (string, time.Time, error) {
	return "token-for-" + id.AgentID, time.Unix(100, 0), s.err
}

func TestAuthService_GenerateToken(t *testing.T) {
	resp, err := NewAuthService(stubIssuer{}).GenerateToken("bot", "Bot")
	require.NoError(t, err)
	assert.Equal(t, "token-for-bot", resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)

	_, err = NewAuthService(stubIssuer{}).GenerateToken("", "")
	assert.Error(t, err)
	_, err = NewAuthService(stubIssuer{err: errors.New("no key")}).GenerateToken("bot", "")
	assert.Error(t, err)
}
