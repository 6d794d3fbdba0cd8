package connectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/policy"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
	"go.uber.org/zap"
)

func TestDomains(t *testing.T) {
	all, err := Domains(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Contacts", "Leads", "Tasks"}, Modules(all))

	some, err := Domains([]string{"tasks", "tasks"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "tasks", Schemas(some)[0].Collection)

	_, err = Domains([]string{"invoices"})
	assert.Error(t, err)
}

// Каждый домен должен проходить проверки engine.New и иметь уникальные имена инструментов.
func TestDomainsAssemble(t *testing.T) {
	all, err := Domains(nil)
	require.NoError(t, err)

	s, err := store.Open(store.Config{Driver: "sqlite", URL: ":memory:"}, append(Schemas(all), policy.Schema, audit.Schema)...)
	require.NoError(t, err)
	defer s.Close()

	tools := map[string]string{}
	for _, d := range all {
		_, err := engine.New(d, engine.Deps{Store: s, Authorizer: policy.NewValidator(policy.NewStoreSource(s), zap.NewNop()), Audit: nopRecorder{}})
		require.NoError(t, err, d.Scheme)
		for _, tl := range d.Tools {
			prev, dup := tools[tl.Name]
			assert.False(t, dup, "%s registered by %s and %s", tl.Name, prev, d.Scheme)
			tools[tl.Name] = d.Scheme
		}
	}
	assert.Len(t, tools, 18)
}

type nopRecorder struct{}

func (nopRecorder) Record(audit.Entry) {}
