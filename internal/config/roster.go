package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/service"
)

// Roster is the shift, employee and holiday configuration loaded from a file.
type Roster struct {
	Shifts    []model.ShiftSchedule
	Employees []model.Employee
	Holidays  []model.Holiday
}

type rosterFile struct {
	Shifts    []shiftEntry    `yaml:"shifts"`
	Employees []employeeEntry `yaml:"employees"`
	Holidays  []holidayEntry  `yaml:"holidays"`
}

type shiftEntry struct {
	GraceMinutes              *int    `yaml:"grace_minutes"`
	Name                      string  `yaml:"name"`
	Start                     string  `yaml:"start"`
	End                       string  `yaml:"end"`
	DepartureToleranceMinutes int     `yaml:"departure_tolerance_minutes"`
	MaxAutoOvertimeHours      float64 `yaml:"max_auto_overtime_hours"`
}

type employeeEntry struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
	TimeZone   string `yaml:"time_zone"`
	Shift      string `yaml:"shift"`
	Field      bool   `yaml:"field"`
}

type holidayEntry struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

// LoadRosterFile reads and parses a roster YAML file.
func LoadRosterFile(path string) (*Roster, error) {
	f, err := os.Open(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open roster file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseRoster(f)
}

// ParseRoster decodes a roster document. Unknown keys are rejected, and every
// employee shift must name a shift defined in the same document. A shift
// without grace_minutes inherits the policy default grace.
func ParseRoster(r io.Reader) (*Roster, error) {
	var doc rosterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: roster: %v", common.ErrInvalidConfig, err)
	}

	roster := &Roster{}
	shifts := make(map[string]model.ShiftSchedule, len(doc.Shifts))
	for i, entry := range doc.Shifts {
		shift, err := entry.toModel()
		if err != nil {
			return nil, fmt.Errorf("%w: shift %d: %v", common.ErrInvalidConfig, i+1, err)
		}
		if _, dup := shifts[shift.Name]; dup {
			return nil, fmt.Errorf("%w: shift %q defined twice", common.ErrInvalidConfig, shift.Name)
		}
		shifts[shift.Name] = shift
		roster.Shifts = append(roster.Shifts, shift)
	}

	seen := make(map[string]bool, len(doc.Employees))
	for i, entry := range doc.Employees {
		code := strings.TrimSpace(entry.Code)
		if code == "" {
			return nil, fmt.Errorf("%w: employee %d has no code", common.ErrInvalidConfig, i+1)
		}
		if seen[code] {
			return nil, fmt.Errorf("%w: employee %q listed twice", common.ErrInvalidConfig, code)
		}
		seen[code] = true

		employee := model.Employee{
			Code:              code,
			Name:              entry.Name,
			Department:        entry.Department,
			TimeZone:          entry.TimeZone,
			IsFieldDepartment: entry.Field,
		}
		if entry.Shift != "" {
			shift, ok := shifts[entry.Shift]
			if !ok {
				return nil, fmt.Errorf("%w: employee %q references unknown shift %q",
					common.ErrInvalidConfig, code, entry.Shift)
			}
			employee.Shift = &shift
		}
		roster.Employees = append(roster.Employees, employee)
	}

	for i, entry := range doc.Holidays {
		date, err := model.ParseDate(entry.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: holiday %d: %v", common.ErrInvalidConfig, i+1, err)
		}
		roster.Holidays = append(roster.Holidays, model.Holiday{Date: date, Name: entry.Name})
	}

	return roster, nil
}

func (e shiftEntry) toModel() (model.ShiftSchedule, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return model.ShiftSchedule{}, errors.New("missing name")
	}
	start, err := model.ParseClockTime(e.Start)
	if err != nil {
		return model.ShiftSchedule{}, fmt.Errorf("%s start: %w", name, err)
	}
	end, err := model.ParseClockTime(e.End)
	if err != nil {
		return model.ShiftSchedule{}, fmt.Errorf("%s end: %w", name, err)
	}

	grace := -1
	if e.GraceMinutes != nil {
		grace = *e.GraceMinutes
	}
	return model.ShiftSchedule{
		Name:                      name,
		Start:                     start,
		End:                       end,
		GracePeriodMinutes:        grace,
		DepartureToleranceMinutes: e.DepartureToleranceMinutes,
		MaxAutoOvertimeHours:      e.MaxAutoOvertimeHours,
	}, nil
}

// RosterStats counts what ApplyRoster wrote.
type RosterStats struct {
	Shifts    int
	Employees int
	Holidays  int
}

// ApplyRoster writes shifts before the employees that reference them, then
// holidays. It stops at the first failure.
func ApplyRoster(ctx context.Context, w service.RosterWriter, roster *Roster) (RosterStats, error) {
	var stats RosterStats
	for _, shift := range roster.Shifts {
		if err := w.SaveShift(ctx, shift); err != nil {
			return stats, fmt.Errorf("failed to save shift %s: %w", shift.Name, err)
		}
		stats.Shifts++
	}
	for _, employee := range roster.Employees {
		if err := w.SaveEmployee(ctx, employee); err != nil {
			return stats, fmt.Errorf("failed to save employee %s: %w", employee.Code, err)
		}
		stats.Employees++
	}
	for _, holiday := range roster.Holidays {
		if err := w.SaveHoliday(ctx, holiday); err != nil {
			return stats, fmt.Errorf("failed to save holiday %s: %w", holiday.Date.Format(model.DateLayout), err)
		}
		stats.Holidays++
	}
	return stats, nil
}
