// Package snapshot builds immutable statistics snapshots from the backend.
//
// A DataSnapshot captures the aggregate counts and derived insights at one
// point in time. The stats view fetches one snapshot when it is entered and
// swaps it into the UI model; there is no polling.
package snapshot

import (
	"context"
	"time"

	mstats "github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/daviddao/casedesk/internal/model"
)

// Source is the part of the API client a snapshot needs.
type Source interface {
	Stats(ctx context.Context) (model.Stats, error)
	Insights(ctx context.Context) (model.Insights, error)
}

// DataSnapshot is an immutable, self-contained view of the case statistics.
type DataSnapshot struct {
	Stats    model.Stats
	Insights model.Insights

	// InsightsErr is set when /cases/insights failed. Insights are optional;
	// the snapshot is still usable without them.
	InsightsErr error

	// Derived values.
	TopCategory      string
	TopCategoryCount int
	ResolvedPercent  float64

	// Cases per day across the daily breakdown. Zero without daily data.
	DailyMean   float64
	DailyMedian float64
	DailyPeak   model.Entry

	// Timestamp of snapshot creation.
	BuiltAt time.Time
}

// Build fetches stats and insights concurrently and returns a complete
// snapshot. A stats failure fails the build; an insights failure does not.
func Build(ctx context.Context, src Source) (*DataSnapshot, error) {
	var (
		stats       model.Stats
		insights    model.Insights
		insightsErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = src.Stats(gctx)
		return err
	})
	g.Go(func() error {
		insights, insightsErr = src.Insights(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemble(stats, insights, insightsErr), nil
}

// Empty is the zero snapshot shown when the stats fetch fails.
func Empty() *DataSnapshot {
	return assemble(model.EmptyStats(), model.Insights{}, nil)
}

func assemble(stats model.Stats, insights model.Insights, insightsErr error) *DataSnapshot {
	if stats.ByCategory == nil {
		stats.ByCategory = model.Breakdown{}
	}
	if stats.ByPriority == nil {
		stats.ByPriority = model.Breakdown{}
	}
	if stats.Daily == nil {
		stats.Daily = model.Breakdown{}
	}

	snap := &DataSnapshot{
		Stats:       stats,
		Insights:    insights,
		InsightsErr: insightsErr,
		BuiltAt:     time.Now(),
	}

	// Prefer the backend's answer; fall back to the breakdown.
	if insightsErr == nil && insights.TopCategory != "" {
		snap.TopCategory = insights.TopCategory
		snap.TopCategoryCount = insights.TopCategoryCount
	} else if sorted := stats.ByCategory.Sorted(); len(sorted) > 0 {
		snap.TopCategory = sorted[0].Label
		snap.TopCategoryCount = sorted[0].Count
	}

	if stats.Total > 0 {
		snap.ResolvedPercent = 100 * float64(stats.Resolved) / float64(stats.Total)
	}
	snap.summarizeDaily()
	return snap
}

func (s *DataSnapshot) summarizeDaily() {
	days := s.Stats.Daily.ByLabel()
	if len(days) == 0 {
		return
	}
	volumes := make(mstats.Float64Data, 0, len(days))
	for _, d := range days {
		volumes = append(volumes, float64(d.Count))
		if d.Count > s.DailyPeak.Count {
			s.DailyPeak = d
		}
	}
	// Errors only signal empty input, ruled out above.
	s.DailyMean, _ = mstats.Mean(volumes)
	s.DailyMedian, _ = mstats.Median(volumes)
}

// AvgResolutionDays returns the stats figure, or the insights figure when
// the stats payload did not carry one.
func (s *DataSnapshot) AvgResolutionDays() float64 {
	if s.Stats.AvgResolutionDays > 0 {
		return s.Stats.AvgResolutionDays
	}
	return s.Insights.AvgResolutionDays
}
