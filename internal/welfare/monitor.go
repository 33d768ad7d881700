package welfare

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
)

// NeverVisitedDays is the sentinel recency for residents with no recorded
// visit. It sorts above any finite days-since-visit value, so never-visited
// residents always top the alert list.
const NeverVisitedDays int64 = math.MaxInt32

// Monitor computes the at-risk subset of the registry. Pure read side:
// it keeps no state of its own.
type Monitor struct {
	store SeniorStore
}

// NewMonitor creates an inactivity monitor over the registry store.
func NewMonitor(s SeniorStore) *Monitor {
	return &Monitor{store: s}
}

// AtRisk returns the residents whose days since last visit meet or exceed
// thresholdDays, ordered descending by recency gap. Residents who never
// visited (or whose stored date is unparseable) carry NeverVisitedDays and
// therefore sort first.
func (m *Monitor) AtRisk(ctx context.Context, thresholdDays int, now time.Time) ([]models.AtRiskSenior, error) {
	seniors, err := m.store.ListSeniors(ctx)
	if err != nil {
		return nil, err
	}

	today := truncateToDate(now)

	var atRisk []models.AtRiskSenior
	for _, s := range seniors {
		days, never := daysSinceVisit(s.LastVisitDate, today)
		if days < int64(thresholdDays) {
			continue
		}
		atRisk = append(atRisk, models.AtRiskSenior{
			Senior:         s,
			DaysSinceVisit: days,
			NeverVisited:   never,
		})
	}

	sort.SliceStable(atRisk, func(i, j int) bool {
		return atRisk[i].DaysSinceVisit > atRisk[j].DaysSinceVisit
	})

	return atRisk, nil
}

func daysSinceVisit(lastVisitDate string, today time.Time) (days int64, never bool) {
	if lastVisitDate == "" {
		return NeverVisitedDays, true
	}
	last, err := time.ParseInLocation(models.DateLayout, lastVisitDate, time.UTC)
	if err != nil {
		return NeverVisitedDays, true
	}
	return int64(today.Sub(last).Hours() / 24), false
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
