package ipc

import "time"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// CatalogSummary mirrors catalog counts for wire transport.
type CatalogSummary struct {
	Total       int            `json:"total"`
	Tracked     int            `json:"tracked"`
	NeedsUpdate int            `json:"needs_update"`
	ByVCS       map[string]int `json:"by_vcs"`
}

// SchedulerSummary mirrors the scheduler's status snapshot.
type SchedulerSummary struct {
	Running         bool      `json:"running"`
	WorkingSet      int       `json:"working_set"`
	Tracked         int       `json:"tracked"`
	Iterations      uint64    `json:"iterations"`
	Syncs           uint64    `json:"syncs"`
	Failures        uint64    `json:"failures"`
	LastRepository  string    `json:"last_repository"`
	LastError       string    `json:"last_error"`
	LastIterationAt time.Time `json:"last_iteration_at"`
	NextWakeAt      time.Time `json:"next_wake_at"`
}

// StatusResponse represents combined daemon/scheduler/catalog status
// information.
type StatusResponse struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	Scheduler    SchedulerSummary `json:"scheduler"`
	Catalog      CatalogSummary   `json:"catalog"`
	CatalogError string           `json:"catalog_error,omitempty"`
	DatabasePath string           `json:"database_path"`
	LockPath     string           `json:"lock_path"`
	SocketPath   string           `json:"socket_path"`
}
