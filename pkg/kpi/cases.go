package kpi

import (
	"time"

	"github.com/logflow/procmap/internal/model"
)

// CaseStat summarizes one case.
type CaseStat struct {
	CaseID          string    `json:"case_id"`
	Events          int       `json:"events"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	ThroughputHours float64   `json:"throughput_hours"`
}

// Cases returns per-case statistics in case order.
func Cases(log *model.EventLog) []CaseStat {
	out := make([]CaseStat, 0, log.CaseCount())
	log.ForEachCase(func(_ int, c model.Case) {
		first, last := c.First().Timestamp, c.Last().Timestamp
		out = append(out, CaseStat{
			CaseID:          c.ID,
			Events:          len(c.Events),
			Start:           first,
			End:             last,
			ThroughputHours: last.Sub(first).Hours(),
		})
	})
	return out
}
