package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/vendwatch/vendwatch-core/internal/hub"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/config"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/logging"
)

// maxResponseSize caps the external summary body (1MB).
const maxResponseSize = 1 << 20

// Publisher fans events out to live dashboard clients.
type Publisher interface {
	Publish(eventType string, payload any)
}

// summary is the external data source's sales summary document. All fields
// are optional; absent intervals stay absent in the broadcast.
type summary struct {
	Daily   *float64 `json:"daily"`
	Weekly  *float64 `json:"weekly"`
	Monthly *float64 `json:"monthly"`
}

// Poller periodically fetches a sales summary from an external HTTP source
// and republishes it through the broadcast hub. It shares the fan-out path
// with the ingestion gateway; subscribers cannot tell the origins apart.
//
// A fetch failure is logged and retried once after a short delay, then
// abandoned until the next scheduled tick. The poller never stops on error.
type Poller struct {
	cfg        config.PollerConfig
	httpClient *http.Client
	pub        Publisher
	logger     *logging.Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a poller. Call Start to begin fetching.
func New(cfg config.PollerConfig, pub Publisher, logger *logging.Logger) *Poller {
	return &Poller{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.FetchTimeout) * time.Second,
		},
		pub:    pub,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start begins the periodic fetch loop. Call Stop to shut down.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.pollLoop(ctx)
}

// Stop shuts the fetch loop down and waits for it to finish.
// Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// pollLoop fetches on every tick. One timer failure never delays the next
// scheduled tick: the single fast retry runs inside the same tick window.
func (p *Poller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Duration(p.cfg.Interval) * time.Second)
	defer ticker.Stop()

	// Initial fetch so dashboards are not empty for a full interval.
	p.fetchAndPublish(ctx)

	for {
		select {
		case <-ticker.C:
			p.fetchAndPublish(ctx)
		case <-p.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// fetchAndPublish performs one fetch attempt plus at most one fast retry.
func (p *Poller) fetchAndPublish(ctx context.Context) {
	s, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("sales summary fetch failed", "url", p.cfg.URL, "error", err)

		if p.cfg.RetryDelay <= 0 {
			return
		}

		select {
		case <-time.After(time.Duration(p.cfg.RetryDelay) * time.Second):
		case <-p.done:
			return
		case <-ctx.Done():
			return
		}

		if s, err = p.fetch(ctx); err != nil {
			p.logger.Warn("sales summary retry failed, waiting for next tick", "url", p.cfg.URL, "error", err)
			return
		}
	}

	if s.Daily == nil && s.Weekly == nil && s.Monthly == nil {
		p.logger.Debug("sales summary empty, nothing to publish")
		return
	}

	p.pub.Publish(hub.EventSalesUpdate, hub.SalesUpdate{
		Daily:   s.Daily,
		Weekly:  s.Weekly,
		Monthly: s.Monthly,
	})
	p.logger.Debug("sales summary published")
}

// fetch retrieves and parses the external summary document.
func (p *Poller) fetch(ctx context.Context) (*summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching summary: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on read path

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, p.cfg.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading summary body: %w", err)
	}

	var s summary
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}
	return &s, nil
}
