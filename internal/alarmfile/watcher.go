package alarmfile

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vendwatch/vendwatch-core/internal/infrastructure/config"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/logging"
	"github.com/vendwatch/vendwatch-core/internal/ingest"
	"github.com/vendwatch/vendwatch-core/internal/telemetry"
)

// triggeredBy identifies the flag file as the alert origin in stored alerts.
const triggeredBy = "alarm_file"

// Gateway is the slice of the ingestion gateway the watcher drives.
type Gateway interface {
	IntrusionAlert(ctx context.Context, req ingest.IntrusionRequest) (*telemetry.IntrusionAlert, error)
	DisableAlarm(ctx context.Context, deviceID string) (int, error)
}

// Watcher polls a flag file whose contents are "on" or "off" and feeds
// transitions into the ingestion gateway. Site alarm panels that cannot
// speak HTTP or MQTT write this file; it is an independent publisher into
// the broadcast hub.
//
// A missing or unreadable file counts as "off". Only transitions act: a
// file that stays "on" raises exactly one alert.
type Watcher struct {
	cfg     config.AlarmConfig
	gateway Gateway
	logger  *logging.Logger

	armed        bool
	readWarnOnce sync.Once

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a watcher. Call Start to begin polling.
func New(cfg config.AlarmConfig, gateway Gateway, logger *logging.Logger) *Watcher {
	return &Watcher{
		cfg:     cfg,
		gateway: gateway,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start begins the poll loop. The initial file state is adopted without
// firing, so a restart with a stale "on" file does not re-raise.
func (w *Watcher) Start(ctx context.Context) {
	w.armed = w.readState()
	w.wg.Add(1)
	go w.watchLoop(ctx)
}

// Stop shuts the poll loop down and waits for it to finish.
// Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Duration(w.cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check(ctx)
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// check fires the gateway on an on/off transition.
func (w *Watcher) check(ctx context.Context) {
	armed := w.readState()
	if armed == w.armed {
		return
	}
	w.armed = armed

	if armed {
		w.logger.Warn("alarm flag raised", "path", w.cfg.Path)
		if _, err := w.gateway.IntrusionAlert(ctx, ingest.IntrusionRequest{TriggeredBy: triggeredBy}); err != nil {
			w.logger.Error("alarm flag alert failed", "error", err)
		}
		return
	}

	w.logger.Info("alarm flag cleared", "path", w.cfg.Path)
	if _, err := w.gateway.DisableAlarm(ctx, ""); err != nil {
		w.logger.Error("alarm flag clear failed", "error", err)
	}
}

// readState reads the flag file; anything but the literal "on" is off.
// A missing file is the normal disarmed state. Other read errors are
// logged once so a permissions mistake is visible without flooding.
func (w *Watcher) readState() bool {
	data, err := os.ReadFile(w.cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.readWarnOnce.Do(func() {
				w.logger.Warn("alarm flag file unreadable", "path", w.cfg.Path, "error", err)
			})
		}
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(data)), "on")
}
