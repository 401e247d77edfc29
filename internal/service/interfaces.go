// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
)

// PunchFilter defines filtering options for punch queries.
type PunchFilter struct {
	Start         time.Time
	End           time.Time
	EmployeeCodes []string
}

// PunchStore persists raw punches and the feed cursor that produced them.
type PunchStore interface {
	// SavePunchPage inserts the page's punches (ignoring known external IDs)
	// and stores the advanced cursor in the same transaction.
	SavePunchPage(ctx context.Context, punches []model.RawPunchEvent, cursor model.SyncCursor) (inserted int, err error)
	GetSyncCursor(ctx context.Context, feed string, start, end time.Time) (*model.SyncCursor, error)
	ListSyncCursors(ctx context.Context, feed string) ([]model.SyncCursor, error)
	GetPunches(ctx context.Context, filter PunchFilter) ([]model.RawPunchEvent, error)
	CountPunches(ctx context.Context) (int, error)
}

// RosterStore is the read side of employee, shift and holiday configuration.
type RosterStore interface {
	GetEmployee(ctx context.Context, code string) (*model.Employee, error)
	GetEmployees(ctx context.Context) ([]model.Employee, error)
	GetShifts(ctx context.Context) ([]model.ShiftSchedule, error)
	IsHoliday(ctx context.Context, date time.Time) (bool, string, error)
}

// RosterWriter loads configuration into the roster tables.
type RosterWriter interface {
	SaveShift(ctx context.Context, shift model.ShiftSchedule) error
	SaveEmployee(ctx context.Context, employee model.Employee) error
	SaveHoliday(ctx context.Context, holiday model.Holiday) error
}

// HistoryReader is the read-only view of previously processed days.
type HistoryReader interface {
	// GetDailyHours returns credited hours per day in [from, to) using the
	// latest processing version of each day.
	GetDailyHours(ctx context.Context, employeeCode string, from, to time.Time) ([]model.DailyHours, error)
}

// SessionFilter selects the latest sessions with a date in [Start, End).
type SessionFilter struct {
	Start         time.Time
	End           time.Time
	ApprovalState model.OvertimeApprovalState
	EmployeeCodes []string
}

// SessionStore persists normalized sessions.
type SessionStore interface {
	// SaveDaySessions replaces the sessions of one (employee, date) with a new
	// processing version and returns that version.
	SaveDaySessions(ctx context.Context, key model.SessionKey, sessions []model.AttendanceSession) (int, error)
	GetDaySessions(ctx context.Context, key model.SessionKey) ([]model.AttendanceSession, error)
	GetSessions(ctx context.Context, filter SessionFilter) ([]model.AttendanceSession, error)
	GetPendingApprovals(ctx context.Context, start, end time.Time) ([]model.AttendanceSession, error)
}

// RunStore records reconciliation runs and their failures.
type RunStore interface {
	SaveRun(ctx context.Context, run model.ReconcileRun) error
	GetRun(ctx context.Context, id string) (*model.ReconcileRun, error)
	SaveRunFailure(ctx context.Context, failure model.RunFailure) error
	GetRunFailures(ctx context.Context, runID string) ([]model.RunFailure, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	PunchStore
	RosterStore
	RosterWriter
	HistoryReader
	SessionStore
	RunStore

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// FeedRequest asks the terminal feed for one page of a time window.
type FeedRequest struct {
	Start    time.Time
	End      time.Time
	Page     int
	PageSize int
}

// FeedPage is one page returned by the terminal feed.
type FeedPage struct {
	Punches      []model.RawPunchEvent
	Page         int
	TotalPages   int
	TotalRecords int
}

// PunchFeed is the external, paginated source of raw punches.
type PunchFeed interface {
	Name() string
	FetchPage(ctx context.Context, req FeedRequest) (*FeedPage, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	Multiplier        float64
	MaxRateLimitWaits int
}

// DefaultRetryOptions returns the backoff used for feed pulls.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:       5,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		Multiplier:        2.0,
		MaxRateLimitWaits: 20,
	}
}
