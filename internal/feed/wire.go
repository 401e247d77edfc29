// Package feed talks to the paginated biometric terminal feed and can serve
// stored punches back in the same wire format for replay.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
)

// pageResponse is one page of the feed's JSON wire format.
type pageResponse struct {
	Data         []punchRecord `json:"data"`
	Page         int           `json:"page"`
	TotalPages   int           `json:"total_pages"`
	TotalRecords int           `json:"total_records"`
}

type punchRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	ExternalID   string    `json:"external_id"`
	EmployeeCode string    `json:"employee_code"`
	TerminalID   string    `json:"terminal_id"`
	PunchState   string    `json:"punch_state"`
	Source       string    `json:"source,omitempty"`
}

func (r punchRecord) toModel() (model.RawPunchEvent, error) {
	if strings.TrimSpace(r.ExternalID) == "" {
		return model.RawPunchEvent{}, fmt.Errorf("%w: record without external_id", common.ErrInvalidPage)
	}
	if strings.TrimSpace(r.EmployeeCode) == "" {
		return model.RawPunchEvent{}, fmt.Errorf("%w: record %s without employee_code", common.ErrInvalidPage, r.ExternalID)
	}
	if r.Timestamp.IsZero() {
		return model.RawPunchEvent{}, fmt.Errorf("%w: record %s without timestamp", common.ErrInvalidPage, r.ExternalID)
	}
	return model.RawPunchEvent{
		ExternalID:   r.ExternalID,
		EmployeeCode: strings.TrimSpace(r.EmployeeCode),
		Timestamp:    r.Timestamp.UTC(),
		TerminalID:   r.TerminalID,
		State:        model.ParsePunchState(r.PunchState),
		Source:       model.ParsePunchSource(r.Source),
	}, nil
}

func fromModel(p model.RawPunchEvent) punchRecord {
	return punchRecord{
		ExternalID:   p.ExternalID,
		EmployeeCode: p.EmployeeCode,
		Timestamp:    p.Timestamp.UTC(),
		TerminalID:   p.TerminalID,
		PunchState:   string(p.State),
		Source:       string(p.Source),
	}
}
