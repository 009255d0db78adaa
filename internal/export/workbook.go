// internal/export/workbook.go
package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/tbeckett/slotwizard/internal/optimizer"
	"github.com/tbeckett/slotwizard/internal/planner"
	"github.com/tbeckett/slotwizard/internal/wizard"
)

const (
	slotPlanSheet = "Slot Plan"
	scheduleSheet = "Master Schedule"
	issuesSheet   = "Issues"
)

// BuildWorkbook renders a session snapshot as an Excel workbook. The slot
// plan grid is always present; the schedule and issues sheets are added only
// when the session holds a preview or apply result. The caller owns the
// returned file and must Close it.
func BuildWorkbook(view wizard.View) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetDefaultFont("Calibri")

	if err := writeSlotPlanSheet(f, view.Patterns); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing slot plan sheet: %w", err)
	}
	if view.Result != nil {
		if err := writeScheduleSheet(f, *view.Result); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing schedule sheet: %w", err)
		}
		if err := writeIssuesSheet(f, *view.Result); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing issues sheet: %w", err)
		}
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

func writeSlotPlanSheet(f *excelize.File, patterns []planner.Pattern) error {
	f.NewSheet(slotPlanSheet)

	headers := []string{"Day", "Start", "End", "Field", "Slots", "Score", "Type", "Rank"}
	for i, h := range headers {
		f.SetCellValue(slotPlanSheet, cell(i+1, 1), h)
	}
	if err := styleHeaderRow(f, slotPlanSheet, len(headers)); err != nil {
		return err
	}

	for i, p := range patterns {
		row := i + 2
		f.SetCellValue(slotPlanSheet, cell(1, row), p.Key.WeekdayName())
		f.SetCellValue(slotPlanSheet, cell(2, row), p.StartTime)
		f.SetCellValue(slotPlanSheet, cell(3, row), p.EndTime)
		f.SetCellValue(slotPlanSheet, cell(4, row), p.Key.FieldKey)
		f.SetCellValue(slotPlanSheet, cell(5, row), p.Count)
		f.SetCellValue(slotPlanSheet, cell(6, row), p.Score)
		f.SetCellValue(slotPlanSheet, cell(7, row), string(p.SlotType))
		if p.PriorityRank > 0 {
			f.SetCellValue(slotPlanSheet, cell(8, row), p.PriorityRank)
		}
	}

	widths := map[string]float64{"A": 12, "B": 9, "C": 9, "D": 24, "E": 8, "F": 8, "G": 10, "H": 8}
	for col, w := range widths {
		f.SetColWidth(slotPlanSheet, col, col, w)
	}
	return nil
}

func writeScheduleSheet(f *excelize.File, result optimizer.Result) error {
	assignments, err := result.DecodeAssignments()
	if err != nil {
		return err
	}
	f.NewSheet(scheduleSheet)

	// Field columns come from the assignments themselves so the grid only
	// carries fields that actually host a game.
	fieldSet := make(map[string]bool)
	for _, a := range assignments {
		fieldSet[a.FieldKey] = true
	}
	fields := make([]string, 0, len(fieldSet))
	for fk := range fieldSet {
		fields = append(fields, fk)
	}
	sort.Strings(fields)

	headers := append([]string{"Date", "Day", "Time"}, fields...)
	for i, h := range headers {
		f.SetCellValue(scheduleSheet, cell(i+1, 1), h)
	}
	if err := styleHeaderRow(f, scheduleSheet, len(headers)); err != nil {
		return err
	}

	type rowKey struct {
		date string
		time string
	}
	byCell := make(map[rowKey]map[string]optimizer.Assignment)
	var rows []rowKey
	for _, a := range assignments {
		rk := rowKey{a.GameDate, a.StartTime}
		if byCell[rk] == nil {
			byCell[rk] = make(map[string]optimizer.Assignment)
			rows = append(rows, rk)
		}
		byCell[rk][a.FieldKey] = a
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].date != rows[j].date {
			return rows[i].date < rows[j].date
		}
		return rows[i].time < rows[j].time
	})

	gameStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("game cell style: %w", err)
	}

	for i, rk := range rows {
		row := i + 2
		f.SetCellValue(scheduleSheet, cell(1, row), rk.date)
		f.SetCellValue(scheduleSheet, cell(2, row), dayAbbrev(rk.date))
		f.SetCellValue(scheduleSheet, cell(3, row), rk.time)
		for fi, fk := range fields {
			col := fi + 4
			if a, ok := byCell[rk][fk]; ok {
				f.SetCellValue(scheduleSheet, cell(col, row), fmt.Sprintf("%s @ %s", a.AwayTeam, a.HomeTeam))
			}
			f.SetCellStyle(scheduleSheet, cell(col, row), cell(col, row), gameStyle)
		}
	}

	f.SetColWidth(scheduleSheet, "A", "A", 12)
	f.SetColWidth(scheduleSheet, "B", "B", 8)
	f.SetColWidth(scheduleSheet, "C", "C", 9)
	for i := range fields {
		col := column(i + 4)
		f.SetColWidth(scheduleSheet, col, col, 26)
	}
	return nil
}

func writeIssuesSheet(f *excelize.File, result optimizer.Result) error {
	issues, err := result.DecodeIssues()
	if err != nil {
		return err
	}
	f.NewSheet(issuesSheet)

	headers := []string{"Severity", "Phase", "Message"}
	for i, h := range headers {
		f.SetCellValue(issuesSheet, cell(i+1, 1), h)
	}
	if err := styleHeaderRow(f, issuesSheet, len(headers)); err != nil {
		return err
	}

	for i, issue := range issues {
		row := i + 2
		f.SetCellValue(issuesSheet, cell(1, row), issue.Severity)
		f.SetCellValue(issuesSheet, cell(2, row), issue.Phase)
		f.SetCellValue(issuesSheet, cell(3, row), issue.Message)
	}

	f.SetColWidth(issuesSheet, "A", "A", 12)
	f.SetColWidth(issuesSheet, "B", "B", 14)
	f.SetColWidth(issuesSheet, "C", "C", 70)
	return nil
}

func styleHeaderRow(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	return f.SetCellStyle(sheet, cell(1, 1), cell(cols, 1), style)
}

func dayAbbrev(date string) string {
	d, err := planner.ParseDate(date)
	if err != nil {
		return ""
	}
	return d.Format("Mon")
}

func cell(col, row int) string {
	ref, _ := excelize.CoordinatesToCellName(col, row)
	return ref
}

func column(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}
