// Package exportsvc renders ledger and schedule data as downloadable documents.
package exportsvc

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/teacher"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	CSVContentType  = "text/csv"

	hoursSheet = "Hours"
)

// HoursRow is one line of the hours CSV export.
type HoursRow struct {
	Date       string `csv:"date"`
	Weekday    string `csv:"weekday"`
	HoursAdded int    `csv:"hours_added"`
}

// HoursFilename is the download name of a monthly export, e.g. "hours-dlevi-2024-03.xlsx".
func HoursFilename(t teacher.Teacher, month core.Month, ext string) string {
	return fmt.Sprintf("hours-%s-%s.%s", t.Username, month, ext)
}

// HoursCSV lists the daily entries of a month, one row per date with hours logged.
func HoursCSV(entries []ledger.DailyHourEntry) ([]byte, error) {
	rows := make([]*HoursRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, &HoursRow{
			Date:       e.Date.String(),
			Weekday:    e.Date.Weekday().String(),
			HoursAdded: e.HoursAdded,
		})
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling hours csv")
	}
	return out, nil
}

// HoursWorkbook builds the monthly statement of a teacher: a header block with the totals
// followed by the daily breakdown.
func HoursWorkbook(t teacher.Teacher, report ledger.MonthlyReport) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", hoursSheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	_ = f.SetColWidth(hoursSheet, "A", "A", 16)
	_ = f.SetColWidth(hoursSheet, "B", "C", 14)

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "creating style")
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating style")
	}

	header := [][]interface{}{
		{"Teacher", t.FullName()},
		{"Username", t.Username},
		{"Month", report.Month.String()},
		{"Total hours", report.Total},
	}
	for i, row := range header {
		if err := f.SetSheetRow(hoursSheet, cell("A", i+1), &row); err != nil {
			return nil, errors.Wrap(err, "writing header")
		}
	}
	_ = f.SetCellStyle(hoursSheet, "A1", cell("A", len(header)), boldStyle)

	tableRow := len(header) + 2
	if err := f.SetSheetRow(hoursSheet, cell("A", tableRow), &[]interface{}{"Date", "Weekday", "Hours"}); err != nil {
		return nil, errors.Wrap(err, "writing table header")
	}
	_ = f.SetCellStyle(hoursSheet, cell("A", tableRow), cell("C", tableRow), headerStyle)

	for i, e := range report.Entries {
		row := []interface{}{e.Date.String(), e.Date.Weekday().String(), e.HoursAdded}
		if err := f.SetSheetRow(hoursSheet, cell("A", tableRow+1+i), &row); err != nil {
			return nil, errors.Wrap(err, "writing entry")
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf, nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
