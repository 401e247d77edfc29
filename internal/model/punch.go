// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// PunchState is the in/out direction a terminal recorded for a punch.
type PunchState string

// Punch state constants.
const (
	PunchIn      PunchState = "in"
	PunchOut     PunchState = "out"
	PunchUnknown PunchState = "unknown"
)

// ParsePunchState normalizes the many spellings terminals use for a punch direction.
func ParsePunchState(s string) PunchState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "check_in", "checkin", "0":
		return PunchIn
	case "out", "check_out", "checkout", "1":
		return PunchOut
	default:
		return PunchUnknown
	}
}

// PunchSource records where a punch originated.
type PunchSource string

// Punch source constants.
const (
	SourceBiometric PunchSource = "biometric"
	SourceMobile    PunchSource = "mobile"
	SourceSystem    PunchSource = "system"
	SourceAdmin     PunchSource = "admin"
)

// ParsePunchSource maps a feed value onto a known source. Empty or
// unrecognized values are treated as biometric terminal punches.
func ParsePunchSource(s string) PunchSource {
	switch PunchSource(strings.ToLower(strings.TrimSpace(s))) {
	case SourceMobile:
		return SourceMobile
	case SourceSystem:
		return SourceSystem
	case SourceAdmin:
		return SourceAdmin
	default:
		return SourceBiometric
	}
}

// IsConventional reports whether the punch came from a physical terminal.
func (s PunchSource) IsConventional() bool {
	return s == SourceBiometric || s == ""
}

// RawPunchEvent is an immutable punch pulled from the terminal feed.
type RawPunchEvent struct {
	Timestamp    time.Time
	ExternalID   string
	EmployeeCode string
	TerminalID   string
	State        PunchState
	Source       PunchSource
}

// String renders the punch for logs and audit notes.
func (p RawPunchEvent) String() string {
	return fmt.Sprintf("%s %s@%s (%s)", p.EmployeeCode, p.State, p.Timestamp.UTC().Format(time.RFC3339), p.TerminalID)
}
