package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "crmgw"
)

// Ключи для Sets (состояние)
const (
	RedisKeyBlockedAgents = RedisNamespace + ":agents:blocked_set"
)

// Каналы Pub/Sub (события). Формат сообщения: "agent_id:true|false".
const (
	RedisChanKillSwitch = RedisNamespace + ":agents:kill-switch-signal"
)
