package policy

import (
	"fmt"
	"math"

	"github.com/Veraticus/attendance-engine/internal/model"
)

// Score holds the advisory figures for a non-conventional punch-out.
type Score struct {
	Notes         []string
	Deduction     float64
	ActivityScore float64
	Applied       bool
}

// ScorePunchOut derives the deduction and activity score for a punch-out.
// Terminal punch-outs are left alone. Every figure comes with the note
// that explains it.
func ScorePunchOut(source model.PunchSource, creditedHours, overtimeHours float64, cfg Config) Score {
	var s Score
	if source.IsConventional() {
		return s
	}
	s.Applied = true

	s.Deduction = floorValue(math.Max(overtimeHours, 0) * cfg.DeductionPointsPerHour)
	s.Notes = append(s.Notes, fmt.Sprintf(
		"%s punch-out: deduction %.2f pts (%.2fh overtime x %.2f pts/h)",
		source, s.Deduction, math.Max(overtimeHours, 0), cfg.DeductionPointsPerHour))

	if source == model.SourceMobile {
		raw := creditedHours * cfg.ActivityPointsPerHour
		s.ActivityScore = floorValue(math.Min(raw, cfg.ActivityScoreCap))
		note := fmt.Sprintf("mobile activity score %.2f pts (%.2fh x %.2f pts/h", s.ActivityScore,
			creditedHours, cfg.ActivityPointsPerHour)
		if raw > cfg.ActivityScoreCap {
			note += fmt.Sprintf(", capped at %.2f", cfg.ActivityScoreCap)
		}
		s.Notes = append(s.Notes, note+")")
	}

	return s
}
