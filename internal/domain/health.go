package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// NotificationMetrics is the admin notification snapshot.
type NotificationMetrics struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
}

// RequestCounters summarise write activity since process start.
type RequestCounters struct {
	Created       int64               `json:"created"`
	StatusUpdates int64               `json:"status_updates"`
	Notifications NotificationMetrics `json:"notifications"`
}
