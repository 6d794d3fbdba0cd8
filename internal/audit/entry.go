package audit

import "time"

// Result: итог вызова инструмента.
type Result string

const (
	ResultSuccess Result = "Success"
	ResultError   Result = "Error"
)

// UserContext: фиксированная метка канала, через который действовал агент.
const UserContext = "MCP Server"

// Entry: одна запись журнала действий агента. Создается один раз на вызов, не изменяется.
type Entry struct {
	ID           string         `json:"id"`
	AgentID      string         `json:"agent_id"`
	AgentName    string         `json:"agent_name,omitempty"`
	Module       string         `json:"module"`
	Action       string         `json:"action"`
	Result       Result         `json:"result"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	UserContext  string         `json:"user_context"`
	CreatedAt    time.Time      `json:"created_at"`
}
