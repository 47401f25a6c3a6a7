// Package testlog builds event logs for tests.
package testlog

import (
	"testing"
	"time"

	"github.com/logflow/procmap/internal/model"
	"github.com/logflow/procmap/pkg/validate"
)

// T0 is the reference start time used by fixtures.
var T0 = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

// Event describes one fixture event relative to T0.
type Event struct {
	Case     string
	Activity string
	Offset   time.Duration
}

// Table converts fixture events into a raw table with default column names.
func Table(events ...Event) *model.Table {
	cols := validate.DefaultColumns()
	table := &model.Table{Columns: cols.Required()}
	for _, e := range events {
		table.Rows = append(table.Rows, model.Row{
			cols.CaseID:    e.Case,
			cols.Activity:  e.Activity,
			cols.Timestamp: T0.Add(e.Offset).Format(time.RFC3339),
		})
	}
	return table
}

// Log validates fixture events into an event log, failing the test on error.
func Log(t testing.TB, events ...Event) *model.EventLog {
	t.Helper()
	log, err := validate.New(validate.DefaultColumns()).Validate(Table(events...))
	if err != nil {
		t.Fatalf("build event log: %v", err)
	}
	return log
}

// OrderScenario returns the two-case order-to-ship log:
// CASE-001 Receive Order -> Validate Order (1h);
// CASE-002 Receive Order -> Validate Order (2h) -> Ship (5h).
func OrderScenario() []Event {
	return []Event{
		{"CASE-001", "Receive Order", 0},
		{"CASE-001", "Validate Order", time.Hour},
		{"CASE-002", "Receive Order", 0},
		{"CASE-002", "Validate Order", 2 * time.Hour},
		{"CASE-002", "Ship", 5 * time.Hour},
	}
}
