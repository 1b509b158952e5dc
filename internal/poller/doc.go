// Package poller pulls sales summaries from an external HTTP data source
// on a fixed interval and republishes them to dashboard clients through
// the broadcast hub.
package poller
