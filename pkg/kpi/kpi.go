// Package kpi computes case, activity and time statistics over an event log.
package kpi

import (
	"sort"
	"time"

	"github.com/logflow/procmap/internal/model"
)

// TopN is the number of activities kept in the frequency ranking.
const TopN = 10

// TimeWindow bounds the observed timestamps.
type TimeWindow struct {
	FirstEvent time.Time `json:"first_event"`
	LastEvent  time.Time `json:"last_event"`
}

// Throughput holds per-case throughput statistics in hours.
// All fields are nil when the log has no cases.
type Throughput struct {
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	P95    *float64 `json:"p95"`
}

// ActivityCount is one entry of the frequency ranking.
type ActivityCount struct {
	Activity string `json:"activity"`
	Count    int    `json:"count"`
}

// Summary aggregates the KPIs of one event log.
type Summary struct {
	Cases            int         `json:"cases"`
	Events           int         `json:"events"`
	UniqueActivities int         `json:"unique_activities"`
	AvgEventsPerCase float64     `json:"avg_events_per_case"`
	TimeWindow       *TimeWindow `json:"time_window"`
	Throughput       Throughput  `json:"throughput_hours"`
	TopActivities    Ranking     `json:"activity_frequency_top10"`
}

// Compute derives the summary. It is a pure function of the log.
func Compute(log *model.EventLog) *Summary {
	s := &Summary{Events: log.Len()}

	var (
		throughputs []float64
		counts      = make(map[string]int)
		firstSeen   []string
	)

	log.ForEachCase(func(_ int, c model.Case) {
		s.Cases++
		throughputs = append(throughputs, c.Last().Timestamp.Sub(c.First().Timestamp).Hours())

		for _, e := range c.Events {
			if _, ok := counts[e.Activity]; !ok {
				firstSeen = append(firstSeen, e.Activity)
			}
			counts[e.Activity]++

			if s.TimeWindow == nil {
				s.TimeWindow = &TimeWindow{FirstEvent: e.Timestamp, LastEvent: e.Timestamp}
				continue
			}
			if e.Timestamp.Before(s.TimeWindow.FirstEvent) {
				s.TimeWindow.FirstEvent = e.Timestamp
			}
			if e.Timestamp.After(s.TimeWindow.LastEvent) {
				s.TimeWindow.LastEvent = e.Timestamp
			}
		}
	})

	s.UniqueActivities = len(counts)
	if s.Cases > 0 {
		s.AvgEventsPerCase = float64(s.Events) / float64(s.Cases)
	}
	s.Throughput = describe(throughputs)
	s.TopActivities = topActivities(counts, firstSeen, TopN)
	return s
}

// describe computes the throughput statistics; empty input yields all nil.
func describe(values []float64) Throughput {
	if len(values) == 0 {
		return Throughput{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return Throughput{
		Mean:   ptr(sum / float64(len(sorted))),
		Median: ptr(Percentile(sorted, 0.5)),
		Min:    ptr(sorted[0]),
		Max:    ptr(sorted[len(sorted)-1]),
		P95:    ptr(Percentile(sorted, 0.95)),
	}
}

// topActivities ranks by count descending; ties keep first-seen order.
func topActivities(counts map[string]int, firstSeen []string, n int) Ranking {
	ranked := make(Ranking, 0, len(firstSeen))
	for _, a := range firstSeen {
		ranked = append(ranked, ActivityCount{Activity: a, Count: counts[a]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func ptr(v float64) *float64 {
	return &v
}
