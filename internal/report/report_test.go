package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/finedu/internal/ledger"
	"github.com/p-n-ai/finedu/internal/report"
)

func TestWritePoints(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	events := []ledger.Event{
		{Points: 50, Timestamp: day1, Reason: ledger.ReasonQuizPassed},
		{Points: 100, Timestamp: day1.Add(time.Minute), Reason: ledger.ReasonCourseCompleted},
		{Points: 25, Timestamp: day2, Reason: ledger.ReasonGoalCompleted},
	}
	days := ledger.New(events).DailyTotals(time.UTC)

	var buf bytes.Buffer
	require.NoError(t, report.WritePoints(&buf, events, days, time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{report.EventsSheet, report.DailySheet}, f.GetSheetList())

	rows, err := f.GetRows(report.EventsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Data", "Motivo", "Pontos", "Acumulado"}, rows[0])
	assert.Equal(t, []string{"2024-03-01 10:00:00", "Quiz Passou", "50", "50"}, rows[1])
	assert.Equal(t, []string{"2024-03-02 09:30:00", "Meta Completa", "25", "175"}, rows[3])

	daily, err := f.GetRows(report.DailySheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Dia", "Pontos"},
		{"2024-03-01", "150"},
		{"2024-03-02", "25"},
	}, daily)
}

func TestWritePoints_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WritePoints(&buf, nil, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.EventsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
