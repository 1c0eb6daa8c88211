package mechanism

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
)

func TestTally(t *testing.T) {
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	counts := Tally([]obligation.Obligation{
		{Status: obligation.StatusNotStarted, ActionDueDate: &past},
		{Status: obligation.StatusNotStarted, ActionDueDate: &future},
		{Status: obligation.StatusInProgress, ActionDueDate: &past},
		{Status: obligation.StatusCompleted, ActionDueDate: &past},
		{Status: obligation.StatusCompleted},
	}, today)

	require.Equal(t, Counts{NotStarted: 2, InProgress: 1, Completed: 2, Overdue: 2, Total: 5}, counts)
}

func TestTally_Empty(t *testing.T) {
	require.Equal(t, Counts{}, Tally(nil, time.Now()))
}

func TestCounts_StatusData(t *testing.T) {
	data := Counts{NotStarted: 5, InProgress: 3, Completed: 2, Overdue: 1, Total: 10}.StatusData()
	require.Equal(t, []StatusCount{
		{Label: "Not Started", Count: 4},
		{Label: "In Progress", Count: 3},
		{Label: "Completed", Count: 2},
		{Label: "Overdue", Count: 1},
	}, data)

	require.Equal(t, 0, Counts{NotStarted: 1, Overdue: 3}.StatusData()[0].Count)
}
