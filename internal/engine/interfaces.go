package engine

import (
	"context"

	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/service"
)

// Store is the slice of storage the reconciliation pipeline reads and writes.
type Store interface {
	service.RosterStore
	service.HistoryReader
	service.RunStore
	GetPunches(ctx context.Context, filter service.PunchFilter) ([]model.RawPunchEvent, error)
	SaveDaySessions(ctx context.Context, key model.SessionKey, sessions []model.AttendanceSession) (int, error)
}

// ProgressFunc receives the number of keys processed after each chunk.
type ProgressFunc func(done, total int)
