// Package discovery derives a Directly-Follows Graph from an event log.
//
// Cases are reconstructed from the log's (case, timestamp) order by detecting
// where the case ID changes, so no per-case structure is built.
package discovery

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/logflow/procmap/internal/model"
)

// Edge is a directly-follows relation: Target immediately followed Source
// within the same case Frequency times across the log.
type Edge struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Frequency int     `json:"frequency"`
	MeanHours float64 `json:"mean_hours"`
}

// Node holds per-activity statistics.
type Node struct {
	Activity    string `json:"activity"`
	Occurrences int    `json:"occurrences"`
	Cases       int    `json:"cases"`
}

// ActivitySet is a sorted set of activity names.
type ActivitySet []string

// Contains reports whether activity is in the set.
func (s ActivitySet) Contains(activity string) bool {
	i := sort.SearchStrings(s, activity)
	return i < len(s) && s[i] == activity
}

// DFG is the discovered process map.
type DFG struct {
	// Edges sorted by frequency descending, then (source, target) ascending.
	Edges []Edge `json:"edges"`

	// StartActivities holds activities that begin at least one case.
	StartActivities ActivitySet `json:"start_activities"`

	// EndActivities holds activities that end at least one case.
	EndActivities ActivitySet `json:"end_activities"`

	// Nodes sorted by occurrences descending, then activity ascending.
	Nodes []Node `json:"nodes"`
}

type pair struct {
	source, target string
}

type edgeStats struct {
	count int
	hours float64
}

// Discover computes the DFG. It is total over any event log, including the
// empty one, and never modifies the log.
func Discover(log *model.EventLog) *DFG {
	counts := make(map[pair]*edgeStats)
	starts := make(map[string]struct{})
	ends := make(map[string]struct{})
	occurrences := make(map[string]int)
	coverage := make(map[string]*roaring.Bitmap)

	log.ForEachCase(func(ordinal int, c model.Case) {
		starts[c.First().Activity] = struct{}{}
		ends[c.Last().Activity] = struct{}{}

		for i, e := range c.Events {
			occurrences[e.Activity]++
			bm, ok := coverage[e.Activity]
			if !ok {
				bm = roaring.New()
				coverage[e.Activity] = bm
			}
			bm.Add(uint32(ordinal))

			if i == 0 {
				continue
			}
			prev := c.Events[i-1]
			key := pair{prev.Activity, e.Activity}
			st, ok := counts[key]
			if !ok {
				st = &edgeStats{}
				counts[key] = st
			}
			st.count++
			st.hours += e.Timestamp.Sub(prev.Timestamp).Hours()
		}
	})

	dfg := &DFG{
		Edges:           make([]Edge, 0, len(counts)),
		StartActivities: toSet(starts),
		EndActivities:   toSet(ends),
		Nodes:           make([]Node, 0, len(occurrences)),
	}

	for k, st := range counts {
		dfg.Edges = append(dfg.Edges, Edge{
			Source:    k.source,
			Target:    k.target,
			Frequency: st.count,
			MeanHours: st.hours / float64(st.count),
		})
	}
	SortEdges(dfg.Edges)

	for activity, n := range occurrences {
		dfg.Nodes = append(dfg.Nodes, Node{
			Activity:    activity,
			Occurrences: n,
			Cases:       int(coverage[activity].GetCardinality()),
		})
	}
	sort.Slice(dfg.Nodes, func(i, j int) bool {
		if dfg.Nodes[i].Occurrences != dfg.Nodes[j].Occurrences {
			return dfg.Nodes[i].Occurrences > dfg.Nodes[j].Occurrences
		}
		return dfg.Nodes[i].Activity < dfg.Nodes[j].Activity
	})

	return dfg
}

// SortEdges orders edges by frequency descending, then source and target ascending.
func SortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})
}

// OutgoingFrequency sums edge frequencies leaving activity.
func (d *DFG) OutgoingFrequency(activity string) int {
	total := 0
	for _, e := range d.Edges {
		if e.Source == activity {
			total += e.Frequency
		}
	}
	return total
}

func toSet(m map[string]struct{}) ActivitySet {
	out := make(ActivitySet, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
