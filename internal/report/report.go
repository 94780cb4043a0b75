// Package report exports the points ledger as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/finedu/internal/ledger"
)

// Sheet names of the exported workbook.
const (
	EventsSheet = "Pontos"
	DailySheet  = "Por dia"
)

// ContentType is the MIME type of the exported workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WritePoints writes a workbook with one row per ledger event and one row per
// day of the daily series. Event times are rendered in loc.
func WritePoints(w io.Writer, events []ledger.Event, days []ledger.DayTotal, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", EventsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(DailySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	total := 0
	rows := [][]any{{"Data", "Motivo", "Pontos", "Acumulado"}}
	for _, e := range events {
		total += e.Points
		rows = append(rows, []any{
			e.Timestamp.In(loc).Format(time.DateTime),
			e.Reason.Label(),
			e.Points,
			total,
		})
	}
	if err := writeRows(f, EventsSheet, rows, header); err != nil {
		return err
	}

	rows = [][]any{{"Dia", "Pontos"}}
	for _, d := range days {
		rows = append(rows, []any{d.Date, d.Points})
	}
	if err := writeRows(f, DailySheet, rows, header); err != nil {
		return err
	}

	if err := f.SetColWidth(EventsSheet, "A", "B", 20); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}
