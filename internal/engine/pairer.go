package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/policy"
)

// PairedSession is one check-in with its optional check-out and the punches
// that fell between them.
type PairedSession struct {
	CheckOut *model.RawPunchEvent
	CheckIn  model.RawPunchEvent
	Interim  []model.InterimPunch
	Notes    []string
	Sequence int
}

// Pairer turns one employee-day of raw punches into sessions.
type Pairer struct {
	cfg policy.Config
}

// NewPairer creates a Pairer that breaks terminal ties and splits sessions
// according to cfg.
func NewPairer(cfg policy.Config) *Pairer {
	return &Pairer{cfg: cfg}
}

// AssignDate returns the civil date a punch belongs to in loc. For a shift
// that wraps midnight, a punch before the middle of the off-shift gap is
// the tail of the previous day's shift.
func AssignDate(at time.Time, shift model.ShiftSchedule, loc *time.Location) time.Time {
	local := at.In(loc)
	date := model.CivilDate(local)
	if !shift.Wraps() {
		return date
	}

	gap := int(shift.Start) - int(shift.End)
	midpoint := int(shift.End) + gap/2
	if local.Hour()*60+local.Minute() < midpoint {
		return date.AddDate(0, 0, -1)
	}
	return date
}

// Pair orders the punches, folds same-second duplicates and splits them into
// sessions. The input order does not matter. An empty input yields no sessions.
func (p *Pairer) Pair(punches []model.RawPunchEvent) []PairedSession {
	if len(punches) == 0 {
		return nil
	}

	ordered, notes := p.dedupe(punches)

	var sessions []PairedSession
	start := 0
	for i := 1; i <= len(ordered); i++ {
		if i < len(ordered) && !p.splits(ordered[i-1], ordered[i]) {
			continue
		}
		sess := pairSegment(ordered[start:i])
		sess.Sequence = len(sessions) + 1
		sessions = append(sessions, sess)
		start = i
	}

	if len(sessions) > 1 {
		for i := 1; i < len(sessions); i++ {
			sessions[i].Notes = append(sessions[i].Notes, fmt.Sprintf(
				"session %d starts after a %s gap following the previous check-out",
				sessions[i].Sequence, sessions[i].CheckIn.Timestamp.Sub(sessions[i-1].CheckOut.Timestamp)))
		}
	}
	sessions[0].Notes = append(notes, sessions[0].Notes...)
	return sessions
}

// dedupe sorts the punches by time and keeps one punch per second, preferring
// the terminal ranked first in configuration.
func (p *Pairer) dedupe(punches []model.RawPunchEvent) ([]model.RawPunchEvent, []string) {
	sorted := make([]model.RawPunchEvent, len(punches))
	copy(sorted, punches)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		as, bs := a.Timestamp.Truncate(time.Second), b.Timestamp.Truncate(time.Second)
		if !as.Equal(bs) {
			return as.Before(bs)
		}
		if ra, rb := p.cfg.TerminalRank(a.TerminalID), p.cfg.TerminalRank(b.TerminalID); ra != rb {
			return ra < rb
		}
		return a.ExternalID < b.ExternalID
	})

	var notes []string
	kept := []model.RawPunchEvent{sorted[0]}
	for _, punch := range sorted[1:] {
		last := kept[len(kept)-1]
		if punch.Timestamp.Truncate(time.Second).Equal(last.Timestamp.Truncate(time.Second)) {
			notes = append(notes, fmt.Sprintf("duplicate punch %s from terminal %s folded into %s from terminal %s",
				punch.ExternalID, punch.TerminalID, last.ExternalID, last.TerminalID))
			continue
		}
		kept = append(kept, punch)
	}
	return kept, notes
}

// splits reports whether next begins a new session: an explicit out followed
// by an explicit in at least SessionSplitGap later.
func (p *Pairer) splits(prev, next model.RawPunchEvent) bool {
	if p.cfg.SessionSplitGap <= 0 {
		return false
	}
	return prev.State == model.PunchOut &&
		next.State == model.PunchIn &&
		next.Timestamp.Sub(prev.Timestamp) >= p.cfg.SessionSplitGap
}

func pairSegment(punches []model.RawPunchEvent) PairedSession {
	sess := PairedSession{CheckIn: punches[0]}
	if len(punches) == 1 {
		sess.Notes = append(sess.Notes, "single punch: no check-out recorded")
		return sess
	}

	last := punches[len(punches)-1]
	middle := punches[1 : len(punches)-1]
	if last.State == model.PunchIn {
		middle = punches[1:]
		sess.Notes = append(sess.Notes, fmt.Sprintf(
			"last punch %s is a check-in: kept as interim, no check-out recorded", last.ExternalID))
	} else {
		sess.CheckOut = &last
	}

	previous := model.InterimCheckIn
	for _, punch := range middle {
		kind := interimKind(punch.State, previous)
		sess.Interim = append(sess.Interim, model.InterimPunch{
			Timestamp:  punch.Timestamp,
			Kind:       kind,
			TerminalID: punch.TerminalID,
			ExternalID: punch.ExternalID,
		})
		previous = kind
	}
	return sess
}

// interimKind labels a punch by its state; an ambiguous punch takes the
// opposite of the one before it.
func interimKind(state model.PunchState, previous model.InterimKind) model.InterimKind {
	switch state {
	case model.PunchIn:
		return model.InterimCheckIn
	case model.PunchOut:
		return model.InterimCheckOut
	}
	if previous == model.InterimCheckIn {
		return model.InterimCheckOut
	}
	return model.InterimCheckIn
}
