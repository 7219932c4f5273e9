package models

// StatusResponse is the response for GET /api/v1/status.
type StatusResponse struct {
	// Watching reports whether a watch loop is active.
	Watching bool `json:"watching"`

	// Running reports whether a cycle is in flight right now.
	Running bool `json:"running"`

	// LastRun is the most recent completed cycle, if any.
	LastRun *RunSummary `json:"last_run,omitempty"`

	// Recent holds up to the retained number of past cycles, newest first.
	Recent []RunSummary `json:"recent,omitempty"`
}

// ItemStatus pairs a tracked item with its most recent outcome.
type ItemStatus struct {
	Item TrackedItem `json:"item"`

	// LastOutcome is nil until the item has been seen by a cycle.
	LastOutcome *ItemOutcome `json:"last_outcome,omitempty"`
}

// ItemsResponse is the response for GET /api/v1/items.
type ItemsResponse struct {
	Count int          `json:"count"`
	Items []ItemStatus `json:"items"`
}

// RunResponse is the response for POST /api/v1/run.
type RunResponse struct {
	// Started is true when the request triggered a new cycle; false when
	// one was already in flight.
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
	BrowserPID  int `json:"browser_pid"`
}

// ErrorResponse is the envelope for non-2xx API responses.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
