package constants

type contextKey string

const (
	PoolKey      contextKey = "pool"
	TxKey        contextKey = "tx"
	LoggerKey    contextKey = "logger"
	ParamsKey    contextKey = "params"
	TenantIDKey  contextKey = "tenant_id"
	ActorIDKey   contextKey = "actor_id"
	RequestIDKey contextKey = "request_id"
)
