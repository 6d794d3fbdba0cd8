package engine

// Коды ошибок в ответе инструмента.
const (
	CodeToolError      = "TOOL_ERROR"
	CodeMissingAgentID = "MISSING_AGENT_ID"
)

// Envelope: единственная форма ответа инструмента: {success, data} или {success: false, error}.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

type EnvelopeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
