package common

type contextKey string

const (
	IdentifierContextKey  contextKey = "client_identifier"
	CountryContextKey     contextKey = "client_country"
	TraceIdKey            contextKey = "trace_id"
	BotScoreContextKey    contextKey = "bot_score"
	RequestCtxLocalKey    string     = "defense_request_ctx"
	IdentifierLocalKey    string     = "client_identifier"
	CountryLocalKey       string     = "client_country"
	UnknownIdentifier     string     = "unknown"
	EnvironmentProduction string     = "production"
	EnvironmentDevelop    string     = "development"
)
