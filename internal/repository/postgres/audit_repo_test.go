package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
)

func TestAuditRow_MatchesColumns(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	row := auditRow(audit.Entry{
		ID: "e1", AgentID: "a1", Module: "Tasks", Action: "get_tasks",
		Result: audit.ResultSuccess, UserContext: audit.UserContext, CreatedAt: at,
	})

	assert.Len(t, row, len(auditColumns))
	assert.Nil(t, row[2], "empty agent_name is NULL")
	assert.Nil(t, row[6], "empty error_message is NULL")
	assert.Nil(t, row[7], "empty details is NULL")
	assert.Equal(t, "Success", row[5])
	assert.Equal(t, at, row[9])
}
