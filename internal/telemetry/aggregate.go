package telemetry

import (
	"context"
	"fmt"
	"time"
)

// Period selects the time window for sales statistics.
// Unlike Interval (a label on stored reports), a Period maps
// deterministically to a since-cutoff at query time.
type Period string

// Statistics periods.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Stats is the result of a windowed sales query.
type Stats struct {
	Period  Period        `json:"period"`
	Total   float64       `json:"total"`
	Count   int           `json:"count"`
	Reports []SalesReport `json:"data"`
}

// SalesSource is the slice of Store the aggregator needs.
type SalesSource interface {
	QuerySalesSince(ctx context.Context, deviceID string, since time.Time) ([]SalesReport, error)
}

// Aggregator computes sum-over-interval sales statistics from the event
// store. There is no caching layer: call volume is low (dashboard polls at
// multi-second intervals) and correctness wins over latency.
type Aggregator struct {
	source SalesSource
	loc    *time.Location
	now    func() time.Time // injectable for tests
}

// NewAggregator creates an aggregator reading from source.
// Cutoffs for the daily period use the supplied location's day boundary;
// a nil location means time.Local.
func NewAggregator(source SalesSource, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		source: source,
		loc:    loc,
		now:    time.Now,
	}
}

// SumSince returns the total sales amount for the device within the period.
func (a *Aggregator) SumSince(ctx context.Context, deviceID string, period Period) (float64, error) {
	stats, err := a.StatsSince(ctx, deviceID, period)
	if err != nil {
		return 0, err
	}
	return stats.Total, nil
}

// StatsSince returns the total, count, and matching reports for the device
// within the period. An unknown device yields empty stats, not an error:
// upsert semantics apply on the ingest side, so "no reports yet" is a
// normal state.
func (a *Aggregator) StatsSince(ctx context.Context, deviceID string, period Period) (Stats, error) {
	period = normalisePeriod(period)
	since := a.cutoff(period)

	reports, err := a.source.QuerySalesSince(ctx, deviceID, since)
	if err != nil {
		return Stats{}, fmt.Errorf("querying sales since %s: %w", since.Format(time.RFC3339), err)
	}

	var total float64
	for _, r := range reports {
		total += r.Amount
	}

	return Stats{
		Period:  period,
		Total:   total,
		Count:   len(reports),
		Reports: reports,
	}, nil
}

// cutoff maps a period to its since-timestamp.
//
//	daily   → start of the current local day
//	weekly  → now − 7 days
//	monthly → now − 1 calendar month
func (a *Aggregator) cutoff(period Period) time.Time {
	now := a.now().In(a.loc)

	switch period {
	case PeriodWeekly:
		return now.AddDate(0, 0, -7)
	case PeriodMonthly:
		return now.AddDate(0, -1, 0)
	default: // daily
		year, month, day := now.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, a.loc)
	}
}

// normalisePeriod maps unknown period values to daily.
// Explicit policy, not a silent bug: dashboards sometimes send free-form
// period strings and the cheapest window is the safest default.
func normalisePeriod(p Period) Period {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p
	default:
		return PeriodDaily
	}
}
