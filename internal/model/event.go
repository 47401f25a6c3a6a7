// Package model defines core data structures for procmap.
package model

import "time"

// Row is one raw input row keyed by column name.
// A missing key means the value is null.
type Row map[string]string

// Table is the raw tabular input produced by a reader.
type Table struct {
	// Columns is the header in input order.
	Columns []string

	// Rows holds the data rows in input order.
	Rows []Row
}

// HasColumn reports whether name is part of the header.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// EventRecord is a single validated event.
type EventRecord struct {
	// CaseID identifies the process instance (trace).
	CaseID string

	// Activity is the event name/activity label.
	Activity string

	// Timestamp is when the event was observed.
	Timestamp time.Time

	// Row is the 0-based position of the record in the raw input.
	Row int
}

// EventLog is an immutable sequence of events sorted by (CaseID, Timestamp),
// ties kept in input order.
type EventLog struct {
	events []EventRecord
}

// NewEventLog wraps events that are already sorted. The slice is owned by the log.
func NewEventLog(sorted []EventRecord) *EventLog {
	return &EventLog{events: sorted}
}

// Len returns the number of events.
func (l *EventLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.events)
}

// At returns the i-th event in log order.
func (l *EventLog) At(i int) EventRecord {
	return l.events[i]
}

// Events returns a copy of the events in log order.
func (l *EventLog) Events() []EventRecord {
	if l == nil {
		return nil
	}
	out := make([]EventRecord, len(l.events))
	copy(out, l.events)
	return out
}

// Case is a contiguous run of events sharing a case ID.
type Case struct {
	ID     string
	Events []EventRecord
}

// First returns the first event of the case.
func (c Case) First() EventRecord { return c.Events[0] }

// Last returns the last event of the case.
func (c Case) Last() EventRecord { return c.Events[len(c.Events)-1] }

// ForEachCase calls fn for every case in log order. Cases are found by
// detecting where the case ID changes between consecutive records.
// fn must not modify c.Events.
func (l *EventLog) ForEachCase(fn func(ordinal int, c Case)) {
	if l.Len() == 0 {
		return
	}
	start := 0
	ordinal := 0
	for i := 1; i <= len(l.events); i++ {
		if i < len(l.events) && l.events[i].CaseID == l.events[start].CaseID {
			continue
		}
		fn(ordinal, Case{ID: l.events[start].CaseID, Events: l.events[start:i:i]})
		ordinal++
		start = i
	}
}

// CaseCount returns the number of distinct cases.
func (l *EventLog) CaseCount() int {
	n := 0
	l.ForEachCase(func(int, Case) { n++ })
	return n
}
