package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// write-through mutations: every mutation goes to the repository first (the
// durable record) and the cache is updated from the result.
//
// All public methods are thread-safe. Per-device atomicity comes from the
// repository's single-writer SQLite connection; the cache mutex only guards
// the in-memory map.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.Clone()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// Upsert creates the device with defaults on first contact, otherwise
// touches last_seen and marks it online. The returned device is a copy.
func (r *Registry) Upsert(ctx context.Context, id string) (*Device, error) {
	dev, err := r.repo.Upsert(ctx, id, time.Now())
	if err != nil {
		return nil, err
	}

	r.storeInCache(dev)
	return dev.Clone(), nil
}

// Get retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.Clone(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	dev, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.storeInCache(dev)
	return dev.Clone(), nil
}

// List retrieves all devices.
// The returned devices are copies; callers can safely modify them.
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.Clone())
		}
		r.cacheMu.RUnlock()
		return devices, nil
	}
	r.cacheMu.RUnlock()

	return r.repo.List(ctx)
}

// SetStatus updates a device's status.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status) error {
	if err := r.repo.SetStatus(ctx, id, status, time.Now()); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.Status = status
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device status updated", "device_id", id, "status", status)
	return nil
}

// UpdateSettings merges only the provided settings fields, creating the
// device with defaults first if absent. The returned device is a copy.
func (r *Registry) UpdateSettings(ctx context.Context, id string, patch SettingsPatch) (*Device, error) {
	dev, err := r.repo.UpdateSettings(ctx, id, patch, time.Now())
	if err != nil {
		return nil, err
	}

	r.storeInCache(dev)
	r.logger.Debug("device settings updated", "device_id", id)
	return dev.Clone(), nil
}

// DeviceCount returns the number of cached devices.
func (r *Registry) DeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// storeInCache writes an independent copy of dev into the cache.
func (r *Registry) storeInCache(dev *Device) {
	r.cacheMu.Lock()
	r.cache[dev.ID] = dev.Clone()
	r.cacheMu.Unlock()
}
