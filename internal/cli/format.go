package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/attendance-engine/internal/engine"
	"github.com/Veraticus/attendance-engine/internal/ingest"
	"github.com/Veraticus/attendance-engine/internal/model"
)

// FormatSyncResult renders the outcome of a feed sync.
func FormatSyncResult(r *ingest.SyncResult) string {
	if r.AlreadyComplete {
		return FormatInfo(fmt.Sprintf("Window already synced from %s: %d records, nothing to fetch",
			r.Feed, r.Cursor.RecordsProcessed))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  • Feed: %s\n", r.Feed)
	if r.Resumed {
		b.WriteString("  • Resumed from a saved cursor\n")
	}
	fmt.Fprintf(&b, "  • Pages committed: %d\n", r.Pages)
	fmt.Fprintf(&b, "  • Punches fetched: %d\n", r.Fetched)
	fmt.Fprintf(&b, "  • New punches: %d\n", r.Inserted)
	fmt.Fprintf(&b, "  • Duplicates skipped: %d\n", r.Duplicates)
	fmt.Fprintf(&b, "  • Window progress: %d/%d records", r.Cursor.RecordsProcessed, r.Cursor.RecordsTotal)

	return RenderBox("Sync Complete", b.String())
}

// FormatRunSummary renders a reconciliation run.
func FormatRunSummary(s *engine.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  • Run: %s\n", s.Run.ID)
	fmt.Fprintf(&b, "  • Window: %s to %s\n",
		s.Run.WindowStart.Format(model.DateLayout), s.Run.WindowEnd.Format(model.DateLayout))
	fmt.Fprintf(&b, "  • Employee-days: %d\n", s.Run.Keys)
	fmt.Fprintf(&b, "  • Sessions saved: %d\n", s.Run.Sessions)
	fmt.Fprintf(&b, "  • Capped: %d\n", s.Capped)
	fmt.Fprintf(&b, "  • Missing check-out: %d\n", s.Incomplete)
	fmt.Fprintf(&b, "  • Overtime auto-approved: %d\n", s.AutoApproved)
	fmt.Fprintf(&b, "  • Overtime pending approval: %d\n", s.PendingApprovals)
	fmt.Fprintf(&b, "  • Time taken: %s", s.Duration.Round(time.Millisecond))

	title := "Reconciliation Complete"
	if s.IsPartial() {
		title = "Reconciliation Finished With Failures"
		b.WriteString("\n\n")
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("%s %d employee-days failed:", ErrorIcon, len(s.Failures))))
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "\n  • %s %s: %s", f.EmployeeCode, f.Date.Format(model.DateLayout), f.Error)
		}
		b.WriteString("\n\n")
		b.WriteString(FormatInfo("Retry with: attend reconcile --retry-run " + s.Run.ID))
	}
	return RenderBox(title, b.String())
}

// FormatSessions renders sessions as a table with times shown in loc. With
// verbose set, each row is followed by its audit notes.
func FormatSessions(sessions []model.AttendanceSession, loc *time.Location, verbose bool) string {
	if len(sessions) == 0 {
		return SubtleStyle.Render("No sessions found")
	}

	headers := []string{"Date", "Employee", "#", "In", "Out", "Arrival", "Departure", "Credited", "OT", "Approval", "Ver"}
	rows := make([][]string, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		out := "-"
		if s.CheckOut != nil {
			out = s.CheckOut.In(loc).Format("15:04")
		}
		rows = append(rows, []string{
			s.Date.Format(model.DateLayout),
			s.EmployeeCode,
			fmt.Sprintf("%d", s.Sequence),
			s.CheckIn.In(loc).Format("15:04"),
			out,
			arrivalLabel(s),
			departureLabel(s),
			fmt.Sprintf("%.2fh", s.CreditedHours),
			overtimeLabel(s.OvertimeHours),
			ApprovalBadge(s.OvertimeApprovalState),
			fmt.Sprintf("v%d", s.ProcessingVersion),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	render := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
	}

	lines := []string{render(headers, TableHeaderStyle)}
	for i, row := range rows {
		lines = append(lines, render(row, lipgloss.NewStyle()))
		if verbose {
			for _, note := range sessions[i].Notes {
				lines = append(lines, SubtleStyle.Render("    "+note))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func arrivalLabel(s *model.AttendanceSession) string {
	text := string(s.ArrivalStatus)
	switch s.ArrivalStatus {
	case model.ArrivalEarly:
		text = fmt.Sprintf("early %dm", s.EarlyMinutes)
	case model.ArrivalLate:
		text = fmt.Sprintf("late %dm", s.LateMinutes)
	}
	return styleArrival(s.ArrivalStatus, text)
}

func departureLabel(s *model.AttendanceSession) string {
	text := string(s.DepartureStatus)
	switch s.DepartureStatus {
	case model.DepartureEarly:
		text = fmt.Sprintf("early %dm", s.EarlyDepartureMinutes)
	case model.DepartureLate:
		text = fmt.Sprintf("late %dm", s.LateDepartureMinutes)
	case model.DepartureIncomplete:
		text = IncompleteIcon + " incomplete"
	}
	return styleDeparture(s.DepartureStatus, text)
}

func overtimeLabel(hours float64) string {
	text := fmt.Sprintf("%.2fh", hours)
	if hours > 0 {
		return OvertimeStyle.Render(text)
	}
	return text
}

// FormatSyncStatus heads the cursor list with the number of punches stored
// across every feed.
func FormatSyncStatus(cursors []model.SyncCursor, storedPunches int) string {
	complete := 0
	for _, c := range cursors {
		if c.Completed {
			complete++
		}
	}
	header := FormatTitle(fmt.Sprintf("%d punches stored, %d of %d sync windows complete",
		storedPunches, complete, len(cursors)))
	return header + "\n" + FormatCursors(cursors)
}

// FormatCursors lists feed sync cursors, newest window first.
func FormatCursors(cursors []model.SyncCursor) string {
	if len(cursors) == 0 {
		return SubtleStyle.Render("No sync windows recorded")
	}

	var b strings.Builder
	for i, c := range cursors {
		if i > 0 {
			b.WriteString("\n")
		}
		state := WarningStyle.Render(fmt.Sprintf("%s page %d pending", PendingIcon, c.Page))
		if c.Completed {
			state = SuccessStyle.Render(SuccessIcon + " complete")
		}
		fmt.Fprintf(&b, "%s  %s → %s  %d/%d records  %s",
			BoldStyle.Render(c.Feed),
			c.WindowStart.Format(time.RFC3339), c.WindowEnd.Format(time.RFC3339),
			c.RecordsProcessed, c.RecordsTotal, state)
		if c.LastExternalID != "" {
			b.WriteString(SubtleStyle.Render("  last " + c.LastExternalID))
		}
	}
	return b.String()
}

// FormatEmployees lists the roster with each employee's shift.
func FormatEmployees(employees []model.Employee) string {
	if len(employees) == 0 {
		return SubtleStyle.Render("No employees in roster")
	}

	var b strings.Builder
	for i, e := range employees {
		if i > 0 {
			b.WriteString("\n")
		}
		shift := SubtleStyle.Render("default shift")
		if e.Shift != nil {
			shift = fmt.Sprintf("%s %s-%s", e.Shift.Name, e.Shift.Start, e.Shift.End)
		}
		fmt.Fprintf(&b, "%s  %s  %s  %s", BoldStyle.Render(e.Code), e.Name, e.Department, shift)
		if e.TimeZone != "" {
			b.WriteString(SubtleStyle.Render("  " + e.TimeZone))
		}
		if e.IsFieldDepartment {
			b.WriteString(InfoStyle.Render("  field"))
		}
	}
	return b.String()
}
