package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"go.uber.org/zap"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestIssueAndVerify(t *testing.T) {
	key := newKey(t)
	iss := NewIssuer(key, "crm-gateway", time.Hour)
	v := NewBaseValidator(&key.PublicKey, "crm-gateway")

	token, exp, err := iss.Issue(domain.Identity{AgentID: "agent-7", AgentName: "Scout"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := v.VerifyToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{AgentID: "agent-7", AgentName: "Scout"}, claims.Identity())
}

func TestVerify_Rejects(t *testing.T) {
	key := newKey(t)
	v := NewBaseValidator(&key.PublicKey, "crm-gateway")

	expired := NewIssuer(key, "crm-gateway", -time.Minute)
	token, _, err := expired.Issue(domain.Identity{AgentID: "a"})
	require.NoError(t, err)
	_, err = v.VerifyToken(token)
	assert.Error(t, err, "expired")

	foreign := NewIssuer(newKey(t), "crm-gateway", time.Hour)
	token, _, err = foreign.Issue(domain.Identity{AgentID: "a"})
	require.NoError(t, err)
	_, err = v.VerifyToken(token)
	assert.Error(t, err, "wrong key")

	other := NewIssuer(key, "someone-else", time.Hour)
	token, _, err = other.Issue(domain.Identity{AgentID: "a"})
	require.NoError(t, err)
	_, err = v.VerifyToken(token)
	assert.Error(t, err, "wrong issuer")

	_, _, err = expired.Issue(domain.Identity{})
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	key := newKey(t)
	v := NewBaseValidator(&key.PublicKey, "")
	token, _, err := NewIssuer(key, "", time.Hour).Issue(domain.Identity{AgentID: "agent-7"})
	require.NoError(t, err)

	var seen domain.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = domain.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	do := func(required bool, header string) int {
		seen = domain.Identity{}
		req := httptest.NewRequest(http.MethodPost, "/mcp/tasks", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		NewMiddleware(v, required, zap.NewNop())(next).ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do(false, ""))
	assert.True(t, seen.IsZero())

	assert.Equal(t, http.StatusUnauthorized, do(true, ""))
	assert.Equal(t, http.StatusUnauthorized, do(false, "Bearer garbage"))

	assert.Equal(t, http.StatusNoContent, do(true, "Bearer "+token))
	assert.Equal(t, "agent-7", seen.AgentID)
}
