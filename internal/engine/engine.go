// Package engine implements attendance reconciliation: it pairs raw punches
// into sessions and runs each session through the timing, cap, overtime and
// scoring policies before persisting a new processing version per day.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/policy"
	"github.com/Veraticus/attendance-engine/internal/service"
)

// punchPadding widens the punch query so overnight shifts and zone offsets
// at the window edges still see all their punches.
const punchPadding = 48 * time.Hour

// Options configures batch processing.
type Options struct {
	Progress  ProgressFunc
	Workers   int
	ChunkSize int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers:   4,
		ChunkSize: 100,
	}
}

// Request selects the days to reconcile: civil dates in [Start, End),
// optionally restricted to some employees.
type Request struct {
	Start         time.Time
	End           time.Time
	EmployeeCodes []string
}

// RunSummary contains statistics about a reconciliation run.
type RunSummary struct {
	Run              model.ReconcileRun
	Failures         []model.RunFailure
	Duration         time.Duration
	PendingApprovals int
	AutoApproved     int
	Capped           int
	Incomplete       int
}

// Engine orchestrates reconciliation of raw punches into sessions.
type Engine struct {
	store  Store
	pairer *Pairer
	cfg    policy.Config
	opts   Options
}

// New creates an engine. The policy configuration is validated up front.
func New(store Store, cfg policy.Config, opts Options) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: engine requires a store", common.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	defaults := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaults.ChunkSize
	}
	return &Engine{
		store:  store,
		pairer: NewPairer(cfg),
		cfg:    cfg,
		opts:   opts,
	}, nil
}

// dayWork is everything needed to process one (employee, date) key.
type dayWork struct {
	key      model.SessionKey
	employee model.Employee
	punches  []model.RawPunchEvent
	known    bool
}

type dayResult struct {
	err      error
	sessions []model.AttendanceSession
	capped   int
}

// Reconcile processes every (employee, date) key with punches in the request
// window. Each day is persisted on its own; a failing day is recorded against
// the run and the batch carries on. Only storage errors outside any single
// day, or cancellation, fail the whole run.
func (e *Engine) Reconcile(ctx context.Context, req Request) (*RunSummary, error) {
	return e.run(ctx, req, nil)
}

// RetryFailures reprocesses the days an earlier run recorded as failed,
// under a new run over the same window.
func (e *Engine) RetryFailures(ctx context.Context, runID string) (*RunSummary, error) {
	previous, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	failures, err := e.store.GetRunFailures(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load failures of run %s: %w", runID, err)
	}

	if len(failures) == 0 {
		slog.Info("Run has no failed keys to retry", "run_id", runID)
		return &RunSummary{Run: model.ReconcileRun{WindowStart: previous.WindowStart, WindowEnd: previous.WindowEnd}}, nil
	}

	only := make(map[string]bool, len(failures))
	codes := make(map[string]bool)
	var employeeCodes []string
	for _, f := range failures {
		only[model.SessionKey{EmployeeCode: f.EmployeeCode, Date: f.Date}.String()] = true
		if !codes[f.EmployeeCode] {
			codes[f.EmployeeCode] = true
			employeeCodes = append(employeeCodes, f.EmployeeCode)
		}
	}

	slog.Info("Retrying failed keys", "run_id", runID, "keys", len(failures))
	return e.run(ctx, Request{
		Start:         previous.WindowStart,
		End:           previous.WindowEnd,
		EmployeeCodes: employeeCodes,
	}, only)
}

func (e *Engine) run(ctx context.Context, req Request, only map[string]bool) (*RunSummary, error) {
	startTime := time.Now()
	start, end := model.CivilDate(req.Start), model.CivilDate(req.End)
	if !end.After(start) {
		return nil, fmt.Errorf("%w: reconcile window end %s is not after start %s",
			common.ErrInvalidConfig, end.Format(model.DateLayout), start.Format(model.DateLayout))
	}

	work, err := e.load(ctx, start, end, req.EmployeeCodes)
	if err != nil {
		return nil, err
	}
	if only != nil {
		filtered := work[:0]
		for _, w := range work {
			if only[w.key.String()] {
				filtered = append(filtered, w)
			}
		}
		work = filtered
	}

	run := model.ReconcileRun{
		ID:          uuid.NewString(),
		StartedAt:   startTime,
		WindowStart: start,
		WindowEnd:   end,
		Keys:        len(work),
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	slog.Info("Starting reconciliation",
		"run_id", run.ID,
		"start", start.Format(model.DateLayout),
		"end", end.Format(model.DateLayout),
		"keys", len(work),
		"workers", e.opts.Workers,
		"chunk_size", e.opts.ChunkSize)

	summary := &RunSummary{}
	var runErr error
	for offset := 0; offset < len(work); offset += e.opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		chunk := work[offset:min(offset+e.opts.ChunkSize, len(work))]
		results := e.processChunk(ctx, run.ID, chunk)

		for i, res := range results {
			if res.err != nil {
				e.recordFailure(ctx, run.ID, chunk[i].key, res.err, summary)
				continue
			}
			summary.tally(res.sessions)
			summary.Capped += res.capped
			run.Sessions += len(res.sessions)
		}

		if e.opts.Progress != nil {
			e.opts.Progress(offset+len(chunk), len(work))
		}
	}

	run.Failed = len(summary.Failures)
	run.FinishedAt = time.Now()
	// The run record is closed even when the batch was canceled.
	if err := e.store.SaveRun(context.WithoutCancel(ctx), run); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to finalize run: %w", err)
	}

	summary.Run = run
	summary.Duration = time.Since(startTime)

	slog.Info("Reconciliation finished",
		"run_id", run.ID,
		"keys", run.Keys,
		"sessions", run.Sessions,
		"failed", run.Failed,
		"pending_approval", summary.PendingApprovals,
		"duration", summary.Duration)

	return summary, runErr
}

// load reads the roster and the padded punch window and groups punches into
// per-day work, sorted by date then employee.
func (e *Engine) load(ctx context.Context, start, end time.Time, codes []string) ([]dayWork, error) {
	employees, err := e.store.GetEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	roster := make(map[string]model.Employee, len(employees))
	for _, emp := range employees {
		roster[emp.Code] = emp
	}

	punches, err := e.store.GetPunches(ctx, service.PunchFilter{
		Start:         start.Add(-punchPadding),
		End:           end.Add(punchPadding),
		EmployeeCodes: codes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load punches: %w", err)
	}

	fallback := e.cfg.Location()
	groups := make(map[string]*dayWork)
	for _, p := range punches {
		emp, known := roster[p.EmployeeCode]
		if !known {
			emp = model.Employee{Code: p.EmployeeCode}
		}
		var shift model.ShiftSchedule
		if known {
			shift, _ = e.cfg.ResolveShift(&emp)
		} else {
			shift, _ = e.cfg.ResolveShift(nil)
		}

		date := AssignDate(p.Timestamp, shift, emp.Location(fallback))
		if date.Before(start) || !date.Before(end) {
			continue
		}

		key := model.SessionKey{EmployeeCode: p.EmployeeCode, Date: date}
		w, ok := groups[key.String()]
		if !ok {
			w = &dayWork{key: key, employee: emp, known: known}
			groups[key.String()] = w
		}
		w.punches = append(w.punches, p)
	}

	work := make([]dayWork, 0, len(groups))
	for _, w := range groups {
		work = append(work, *w)
	}
	sort.Slice(work, func(i, j int) bool {
		if !work[i].key.Date.Equal(work[j].key.Date) {
			return work[i].key.Date.Before(work[j].key.Date)
		}
		return work[i].key.EmployeeCode < work[j].key.EmployeeCode
	})
	return work, nil
}

// processChunk fans the chunk out over the worker pool, one employee per
// job. An employee's days run in date order so each day's history already
// holds the days before it, the same as on any rerun. Results line up with
// the chunk by index.
func (e *Engine) processChunk(ctx context.Context, runID string, chunk []dayWork) []dayResult {
	results := make([]dayResult, len(chunk))

	var order []string
	byEmployee := make(map[string][]int)
	for i, w := range chunk {
		code := w.key.EmployeeCode
		if _, ok := byEmployee[code]; !ok {
			order = append(order, code)
		}
		byEmployee[code] = append(byEmployee[code], i)
	}

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for _, code := range order {
		indexes := byEmployee[code]
		g.Go(func() error {
			for _, i := range indexes {
				sessions, capped, err := e.processDay(ctx, runID, chunk[i])
				results[i] = dayResult{sessions: sessions, capped: capped, err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) recordFailure(ctx context.Context, runID string, key model.SessionKey, cause error, summary *RunSummary) {
	failure := model.RunFailure{
		RunID:        runID,
		EmployeeCode: key.EmployeeCode,
		Date:         key.Date,
		Error:        cause.Error(),
	}
	summary.Failures = append(summary.Failures, failure)

	slog.Error("Failed to reconcile day",
		"run_id", runID,
		"employee_code", key.EmployeeCode,
		"date", key.Date.Format(model.DateLayout),
		"error", cause)

	if err := e.store.SaveRunFailure(ctx, failure); err != nil {
		slog.Error("Failed to record run failure",
			"run_id", runID,
			"employee_code", key.EmployeeCode,
			"error", err)
	}
}

// processDay pairs, evaluates and persists one day. A panic is turned into
// an error so it only fails this key.
// It returns the saved sessions and how many of them the cap policy capped.
func (e *Engine) processDay(ctx context.Context, runID string, w dayWork) (sessions []model.AttendanceSession, capped int, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from panic while reconciling day",
				"employee_code", w.key.EmployeeCode,
				"date", w.key.Date.Format(model.DateLayout),
				"panic", r,
				"stack", string(debug.Stack()))
			sessions, capped, err = nil, 0, fmt.Errorf("panic while reconciling %s: %v", w.key, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	paired := e.pairer.Pair(w.punches)
	if len(paired) == 0 {
		return nil, 0, fmt.Errorf("reconcile %s: %w", w.key, common.ErrNoPunches)
	}

	day, err := e.newDayContext(ctx, w)
	if err != nil {
		return nil, 0, err
	}

	sessions = make([]model.AttendanceSession, 0, len(paired))
	for _, p := range paired {
		sess, wasCapped, err := e.evaluate(ctx, day, runID, p)
		if err != nil {
			return nil, 0, fmt.Errorf("reconcile %s session %d: %w", w.key, p.Sequence, err)
		}
		if wasCapped {
			capped++
		}
		sessions = append(sessions, sess)
	}

	version, err := e.store.SaveDaySessions(ctx, w.key, sessions)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to save %s: %w", w.key, err)
	}

	slog.Debug("Reconciled day",
		"employee_code", w.key.EmployeeCode,
		"date", w.key.Date.Format(model.DateLayout),
		"sessions", len(sessions),
		"processing_version", version)
	return sessions, capped, nil
}

// dayContext is the shift placement and calendar facts shared by the
// sessions of one day.
type dayContext struct {
	work        dayWork
	shift       policy.ShiftContext
	history     []model.DailyHours
	holidayName string
	holiday     bool
	historyRead bool
}

func (e *Engine) newDayContext(ctx context.Context, w dayWork) (*dayContext, error) {
	var emp *model.Employee
	if w.known {
		emp = &w.employee
	}
	shift, assigned := e.cfg.ResolveShift(emp)

	holiday, name, err := e.store.IsHoliday(ctx, w.key.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to check holiday for %s: %w", w.key, err)
	}

	return &dayContext{
		work: w,
		shift: policy.ShiftContext{
			Date:     w.key.Date,
			Location: w.employee.Location(e.cfg.Location()),
			Shift:    shift,
			Assigned: assigned,
		},
		holiday:     holiday,
		holidayName: name,
	}, nil
}

// historyFor reads the lookback window once per day, only when a session
// actually needs the analyzer.
func (e *Engine) historyFor(ctx context.Context, day *dayContext) ([]model.DailyHours, error) {
	if day.historyRead {
		return day.history, nil
	}
	date := day.work.key.Date
	history, err := e.store.GetDailyHours(ctx, day.work.key.EmployeeCode,
		date.AddDate(0, 0, -e.cfg.HistoryLookbackDays), date)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	day.history, day.historyRead = history, true
	return history, nil
}

// evaluate runs one paired session through the policy pipeline and reports
// whether the cap policy cut the measured hours.
func (e *Engine) evaluate(ctx context.Context, day *dayContext, runID string, p PairedSession) (model.AttendanceSession, bool, error) {
	key := day.work.key
	sess := model.AttendanceSession{
		EmployeeCode:          key.EmployeeCode,
		Date:                  key.Date,
		Sequence:              p.Sequence,
		RunID:                 runID,
		CheckIn:               p.CheckIn.Timestamp,
		Interim:               p.Interim,
		OvertimeApprovalState: model.OvertimeNone,
	}
	sess.Notes = append(sess.Notes, p.Notes...)
	if !day.work.known {
		sess.AddNote("employee %s not in roster: default shift %s-%s and time zone %s applied",
			key.EmployeeCode, day.shift.Shift.Start, day.shift.Shift.End, day.shift.Location)
	}

	punches := policy.PunchTimes{CheckIn: p.CheckIn.Timestamp}
	if p.CheckOut != nil {
		out := p.CheckOut.Timestamp
		punches.CheckOut = &out
		sess.CheckOut = &out
		sess.CheckOutSource = p.CheckOut.Source
	}

	timing := policy.ClassifyTiming(punches, day.shift)
	sess.ArrivalStatus = timing.Arrival
	sess.DepartureStatus = timing.Departure
	sess.EarlyMinutes = timing.EarlyMinutes
	sess.LateMinutes = timing.LateMinutes
	sess.EarlyDepartureMinutes = timing.EarlyDepartureMinutes
	sess.LateDepartureMinutes = timing.LateDepartureMinutes

	capped := policy.ApplyCap(punches, day.shift, e.cfg)
	sess.Notes = append(sess.Notes, capped.Reasons...)
	if !capped.Measured {
		// A rejected check-out is not a check-out.
		sess.CheckOut = nil
		sess.CheckOutSource = ""
		sess.DepartureStatus = model.DepartureIncomplete
		sess.EarlyDepartureMinutes, sess.LateDepartureMinutes = 0, 0
	}
	credited := capped.CreditedHours

	switch {
	case policy.NeedsAnalysis(capped, e.cfg):
		history, err := e.historyFor(ctx, day)
		if err != nil {
			return sess, false, err
		}
		decision := policy.AnalyzeOvertime(policy.OvertimeInput{
			CheckIn:     punches.CheckIn,
			CheckOut:    *punches.CheckOut,
			Shift:       day.shift,
			Employee:    day.work.employee,
			History:     history,
			Holiday:     day.holiday,
			HolidayName: day.holidayName,
		}, e.cfg)
		for _, rule := range decision.Justification {
			sess.AddNote("overtime analysis: %s", rule)
		}
		resolution := policy.ResolveOvertime(punches.CheckIn, capped, decision)
		sess.SuggestedHours = decision.SuggestedHours
		sess.OvertimeApprovalState = resolution.State
		sess.AddNote("%s", resolution.Note)
		credited = resolution.CreditedHours

	case capped.Measured && policy.OvertimeHours(credited, capped.ShiftHours) > 0:
		sess.OvertimeApprovalState = model.OvertimeAutoApproved
		sess.AddNote("overtime %.2fh within the %.2fh auto-approval threshold",
			policy.OvertimeHours(credited, capped.ShiftHours), e.cfg.AutoApprovalThresholdHours)
	}

	if corrected, clamped := policy.EnforceCeiling(credited, punches.CheckIn, capped); clamped {
		slog.Warn("Credited hours exceeded session ceiling",
			"employee_code", key.EmployeeCode,
			"date", key.Date.Format(model.DateLayout),
			"credited", credited,
			"ceiling", corrected)
		sess.AddNote("policy correction: credited %.2fh exceeded the session ceiling; reduced to %.2fh", credited, corrected)
		credited = corrected
	}

	sess.CreditedHours = credited
	sess.OvertimeHours = policy.OvertimeHours(credited, capped.ShiftHours)

	if sess.CheckOut != nil {
		score := policy.ScorePunchOut(sess.CheckOutSource, sess.CreditedHours, sess.OvertimeHours, e.cfg)
		if score.Applied {
			sess.ScoreDeduction = score.Deduction
			sess.ActivityScore = score.ActivityScore
			sess.Notes = append(sess.Notes, score.Notes...)
		}
	}

	return sess, capped.Capped, nil
}

func (s *RunSummary) tally(sessions []model.AttendanceSession) {
	for i := range sessions {
		sess := &sessions[i]
		switch sess.OvertimeApprovalState {
		case model.OvertimePendingApproval:
			s.PendingApprovals++
		case model.OvertimeAutoApproved:
			s.AutoApproved++
		}
		if sess.DepartureStatus == model.DepartureIncomplete {
			s.Incomplete++
		}
	}
}

// IsPartial reports whether any key failed.
func (s *RunSummary) IsPartial() bool {
	return len(s.Failures) > 0
}
