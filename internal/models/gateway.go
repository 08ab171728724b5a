package models

import "time"

// GatewayStatus tracks health and latency for one configured gateway. Created
// at registry initialization, updated by probe results and resolution
// feedback, never deleted.
type GatewayStatus struct {
	BaseURL             string    `json:"base_url"`
	Scheme              RefScheme `json:"scheme"`
	LastCheckedAt       time.Time `json:"last_checked_at"`
	IsHealthy           bool      `json:"is_healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	AverageLatencyMs    float64   `json:"average_latency_ms"`
}
