package mechanism

import (
	"time"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
)

// Counts are the per-mechanism status counters. Overdue overlaps the status buckets.
type Counts struct {
	NotStarted int
	InProgress int
	Completed  int
	Overdue    int
	Total      int
}

// Tally counts obligations by status as of today.
func Tally(obligations []obligation.Obligation, today time.Time) Counts {
	var c Counts
	for _, o := range obligations {
		c.Total++
		switch o.Status {
		case obligation.StatusNotStarted:
			c.NotStarted++
		case obligation.StatusInProgress:
			c.InProgress++
		case obligation.StatusCompleted:
			c.Completed++
		}
		if o.IsOverdue(today) {
			c.Overdue++
		}
	}
	return c
}

type StatusCount struct {
	Label string
	Count int
}

// StatusData is the dashboard breakdown in display order. Overdue obligations are moved out of "Not Started".
func (c Counts) StatusData() []StatusCount {
	return []StatusCount{
		{Label: "Not Started", Count: max(c.NotStarted-c.Overdue, 0)},
		{Label: "In Progress", Count: c.InProgress},
		{Label: "Completed", Count: c.Completed},
		{Label: "Overdue", Count: c.Overdue},
	}
}
