package types

// Stage represents when a plugin runs relative to the upstream call.
type Stage string

const (
	PreRequest   Stage = "pre_request"
	PostResponse Stage = "post_response"
)

// Reject codes returned in the JSON error body. Callers branch on these,
// never on message text.
const (
	CodeRateLimitExceeded         = "RATE_LIMIT_EXCEEDED"
	CodeEndpointRateLimitExceeded = "ENDPOINT_RATE_LIMIT_EXCEEDED"
	CodeIPBlocked                 = "IP_BLOCKED"
	CodeBotSuspected              = "BOT_SUSPECTED"
	CodeBotDetected               = "BOT_DETECTED"
	CodeAnomalyDetected           = "ANOMALY_DETECTED"
	CodeBruteForceDetected        = "BRUTE_FORCE_DETECTED"
	CodeDataExfiltration          = "DATA_EXFILTRATION_SUSPECTED"
	CodeReplayAttackDetected      = "REPLAY_ATTACK_DETECTED"
	CodeTamperDetected            = "TAMPER_DETECTED"
	CodeScrapingDetected          = "SCRAPING_DETECTED"
)

// PluginConfig represents the configuration for a single plugin in the chain.
type PluginConfig struct {
	Name     string                 `json:"name" mapstructure:"name"`
	Enabled  bool                   `json:"enabled" mapstructure:"enabled"`
	Priority int                    `json:"priority" mapstructure:"priority"`
	Settings map[string]interface{} `json:"settings" mapstructure:"settings"`
}

// PluginError is a rejection decision. The pipeline short-circuits on the
// first one and renders it as the HTTP response.
type PluginError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter int // seconds until retry makes sense; 0 when not applicable
	Challenge  bool
}

func (e *PluginError) Error() string {
	return e.Message
}

// PluginResponse carries pass-through annotations from a plugin that
// allowed the request.
type PluginResponse struct {
	Message  string
	Metadata map[string]interface{}
}
