package alarmfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vendwatch/vendwatch-core/internal/infrastructure/config"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/logging"
	"github.com/vendwatch/vendwatch-core/internal/ingest"
	"github.com/vendwatch/vendwatch-core/internal/telemetry"
)

type fakeGateway struct {
	mu     sync.Mutex
	raises []string
	clears int
}

func (f *fakeGateway) IntrusionAlert(_ context.Context, req ingest.IntrusionRequest) (*telemetry.IntrusionAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raises = append(f.raises, req.TriggeredBy)
	return &telemetry.IntrusionAlert{TriggeredBy: req.TriggeredBy}, nil
}

func (f *fakeGateway) DisableAlarm(_ context.Context, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return 1, nil
}

func (f *fakeGateway) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.raises), f.clears
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func writeFlag(t *testing.T, path, value string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
		t.Fatalf("writing flag file: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestWatcher(t *testing.T, path string, gw Gateway) *Watcher {
	t.Helper()
	w := New(config.AlarmConfig{Enabled: true, Path: path, PollInterval: 1}, gw, testLogger())
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_RaisesOnTransitionToOn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarm.txt")
	writeFlag(t, path, "off")

	gw := &fakeGateway{}
	w := newTestWatcher(t, path, gw)
	w.Start(context.Background())

	writeFlag(t, path, "on")
	waitFor(t, func() bool { r, _ := gw.counts(); return r == 1 })

	gw.mu.Lock()
	trigger := gw.raises[0]
	gw.mu.Unlock()
	if trigger != "alarm_file" {
		t.Errorf("triggered_by = %q, want alarm_file", trigger)
	}
}

func TestWatcher_ClearsOnTransitionToOff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarm.txt")
	writeFlag(t, path, "off")

	gw := &fakeGateway{}
	w := newTestWatcher(t, path, gw)
	w.Start(context.Background())

	writeFlag(t, path, "on")
	waitFor(t, func() bool { r, _ := gw.counts(); return r == 1 })

	writeFlag(t, path, "off")
	waitFor(t, func() bool { _, c := gw.counts(); return c == 1 })
}

func TestWatcher_StaleOnFileDoesNotRefire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarm.txt")
	writeFlag(t, path, "on")

	gw := &fakeGateway{}
	w := newTestWatcher(t, path, gw)
	w.Start(context.Background())

	// Initial "on" is adopted, not fired.
	time.Sleep(1500 * time.Millisecond)
	if r, _ := gw.counts(); r != 0 {
		t.Errorf("raises = %d, want 0 for a pre-existing flag", r)
	}
}

func TestWatcher_MissingFileIsOff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarm.txt")

	gw := &fakeGateway{}
	w := newTestWatcher(t, path, gw)
	w.Start(context.Background())

	writeFlag(t, path, "on")
	waitFor(t, func() bool { r, _ := gw.counts(); return r == 1 })

	if err := os.Remove(path); err != nil {
		t.Fatalf("removing flag file: %v", err)
	}
	waitFor(t, func() bool { _, c := gw.counts(); return c == 1 })
}

func TestWatcher_SteadyStateDoesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarm.txt")
	writeFlag(t, path, "off")

	gw := &fakeGateway{}
	w := newTestWatcher(t, path, gw)
	w.Start(context.Background())

	time.Sleep(1500 * time.Millisecond)
	r, c := gw.counts()
	if r != 0 || c != 0 {
		t.Errorf("raises=%d clears=%d, want 0/0 for steady off", r, c)
	}
}
