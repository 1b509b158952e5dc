package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	db := setupTestDB(t)
	return NewRegistry(NewSQLiteRepository(db))
}

func TestRegistry_Upsert(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	dev, err := reg.Upsert(ctx, "vend-001")
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if dev.Status != StatusOnline {
		t.Errorf("Status = %q, want %q", dev.Status, StatusOnline)
	}

	// Cached after upsert
	if reg.DeviceCount() != 1 {
		t.Errorf("DeviceCount() = %d, want 1", reg.DeviceCount())
	}
}

func TestRegistry_Upsert_Concurrent(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Upsert(ctx, "vend-001"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Upsert() error = %v", err)
	}

	devices, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("len(devices) = %d, want 1", len(devices))
	}
}

func TestRegistry_Get(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Upsert(ctx, "vend-001"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	t.Run("returns copy", func(t *testing.T) {
		dev, err := reg.Get(ctx, "vend-001")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}

		dev.Status = StatusAlert // mutate the copy

		again, err := reg.Get(ctx, "vend-001")
		if err != nil {
			t.Fatalf("second Get() error = %v", err)
		}
		if again.Status != StatusOnline {
			t.Error("mutating a returned device leaked into the cache")
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := reg.Get(ctx, "missing")
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
		}
	})
}

func TestRegistry_SetStatus(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Upsert(ctx, "vend-001"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := reg.SetStatus(ctx, "vend-001", StatusAlert); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	dev, err := reg.Get(ctx, "vend-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if dev.Status != StatusAlert {
		t.Errorf("Status = %q, want %q", dev.Status, StatusAlert)
	}
}

func TestRegistry_UpdateSettings_RoundTrip(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Upsert(ctx, "vend-001"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	coinOn := true
	if _, err := reg.UpdateSettings(ctx, "vend-001", SettingsPatch{CoinRejection: &coinOn}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	dev, err := reg.Get(ctx, "vend-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !dev.Settings.CoinRejection {
		t.Error("CoinRejection = false, want true")
	}
	if !dev.Settings.SensorsEnabled {
		t.Error("SensorsEnabled = false, want unchanged true")
	}
}

func TestRegistry_RefreshCache(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	// Seed through a separate registry so the cache starts cold.
	seed := NewRegistry(repo)
	for _, id := range []string{"vend-a", "vend-b"} {
		if _, err := seed.Upsert(ctx, id); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.DeviceCount() != 2 {
		t.Errorf("DeviceCount() = %d, want 2", reg.DeviceCount())
	}
}
