package model

import "time"

// SyncCursor is the durable position of a paginated feed pull.
type SyncCursor struct {
	WindowStart      time.Time
	WindowEnd        time.Time
	UpdatedAt        time.Time
	Feed             string
	LastExternalID   string
	Page             int
	RecordsProcessed int
	RecordsTotal     int
	Completed        bool
}

// ReconcileRun summarizes one batch reconciliation.
type ReconcileRun struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	ID          string
	Keys        int
	Sessions    int
	Failed      int
}

// RunFailure is a key that could not be processed during a run.
type RunFailure struct {
	Date         time.Time
	RunID        string
	EmployeeCode string
	Error        string
}
