package model

import (
	"fmt"
	"time"
)

// ArrivalStatus classifies a check-in against the expected shift start.
type ArrivalStatus string

// Arrival status constants.
const (
	ArrivalEarly  ArrivalStatus = "early"
	ArrivalOnTime ArrivalStatus = "on_time"
	ArrivalGrace  ArrivalStatus = "grace"
	ArrivalLate   ArrivalStatus = "late"
)

// DepartureStatus classifies a check-out against the expected shift end.
type DepartureStatus string

// Departure status constants.
const (
	DepartureEarly      DepartureStatus = "early"
	DepartureOnTime     DepartureStatus = "on_time"
	DepartureLate       DepartureStatus = "late"
	DepartureIncomplete DepartureStatus = "incomplete"
)

// OvertimeApprovalState records whether overtime was granted automatically.
type OvertimeApprovalState string

// Overtime approval constants.
const (
	OvertimeNone            OvertimeApprovalState = "none"
	OvertimeAutoApproved    OvertimeApprovalState = "auto_approved"
	OvertimePendingApproval OvertimeApprovalState = "pending_approval"
)

// InterimKind labels a punch that fell between check-in and check-out.
type InterimKind string

// Interim punch kinds.
const (
	InterimCheckIn  InterimKind = "interim_checkin"
	InterimCheckOut InterimKind = "interim_checkout"
)

// InterimPunch is a punch kept for audit between the first and last punch.
type InterimPunch struct {
	Timestamp  time.Time   `json:"timestamp"`
	Kind       InterimKind `json:"kind"`
	TerminalID string      `json:"terminal_id"`
	ExternalID string      `json:"external_id"`
}

// SessionKey identifies one employee's calendar day.
type SessionKey struct {
	Date         time.Time
	EmployeeCode string
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s", k.EmployeeCode, k.Date.Format(DateLayout))
}

// AttendanceSession is the normalized record the engine produces.
type AttendanceSession struct {
	Date                  time.Time
	CheckIn               time.Time
	CheckOut              *time.Time
	EmployeeCode          string
	CheckOutSource        PunchSource
	ArrivalStatus         ArrivalStatus
	DepartureStatus       DepartureStatus
	OvertimeApprovalState OvertimeApprovalState
	RunID                 string
	Interim               []InterimPunch
	Notes                 []string
	Sequence              int
	EarlyMinutes          int
	LateMinutes           int
	EarlyDepartureMinutes int
	LateDepartureMinutes  int
	CreditedHours         float64
	OvertimeHours         float64
	SuggestedHours        float64
	ScoreDeduction        float64
	ActivityScore         float64
	ProcessingVersion     int
}

// Key returns the (employee, date) key of the session.
func (s *AttendanceSession) Key() SessionKey {
	return SessionKey{EmployeeCode: s.EmployeeCode, Date: s.Date}
}

// AddNote appends to the audit trail.
func (s *AttendanceSession) AddNote(format string, args ...any) {
	s.Notes = append(s.Notes, fmt.Sprintf(format, args...))
}

// DailyHours is one processed day in an employee's history.
type DailyHours struct {
	Date  time.Time
	Hours float64
}
