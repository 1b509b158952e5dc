package mqtt

import "fmt"

// Topic scheme: vendwatch/{category}/{kind}.
//
// Devices push reports to vendwatch/report/{kind}; the hub publishes its
// own liveness to vendwatch/system/status (retained plus LWT).
const (
	// TopicPrefix is the base for all vendwatch topics.
	TopicPrefix = "vendwatch"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "vendwatch/system"
)

// Topics provides builders for vendwatch MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// Report returns the topic devices publish a given report kind on.
//
// Example: vendwatch/report/sales
func (Topics) Report(kind string) string {
	return fmt.Sprintf("%s/report/%s", TopicPrefix, kind)
}

// SalesReport returns the sales report ingest topic.
func (t Topics) SalesReport() string { return t.Report("sales") }

// IntrusionReport returns the intrusion report ingest topic.
func (t Topics) IntrusionReport() string { return t.Report("intrusion") }

// SystemStatus returns the hub liveness topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
