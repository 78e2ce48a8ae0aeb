package dto

type HealthResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

type ConfigResponse struct {
	DatabaseURL           string  `json:"database_url"`
	FailureRate           float64 `json:"failure_rate"`
	RetryAfterMin         int     `json:"retry_after_min"`
	RetryAfterMax         int     `json:"retry_after_max"`
	EnforceAdjacent       bool    `json:"enforce_adjacent"`
	AllowResetWithoutLock bool    `json:"allow_reset_without_lock"`
}
