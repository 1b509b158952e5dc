package telemetry

import "time"

// Interval is the reporting-period label a device attaches to a sales
// report. It is a label only, not a computed window: a device decides for
// itself whether it is pushing a daily, weekly, or monthly figure.
type Interval string

// Sales report interval labels.
const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// ValidInterval reports whether i is a recognised interval label.
func ValidInterval(i Interval) bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	default:
		return false
	}
}

// SalesReport is one sales figure pushed by a device.
// Reports are immutable once written; the store is append-only.
type SalesReport struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Interval  Interval  `json:"interval"`
	Amount    float64   `json:"sales_amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert status values.
const (
	AlertStatusActive   = "active"
	AlertStatusResolved = "resolved"
)

// IntrusionAlert records one intrusion-sensor trigger.
//
// DeviceID may be empty: some sensors raise alerts that are not scoped to a
// particular machine. Resolved is the only mutable field, flipped by the
// disable-alarm action.
type IntrusionAlert struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id,omitempty"`
	TriggeredBy string    `json:"triggered_by"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Resolved    bool      `json:"resolved"`
}
