package location

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/logger"
)

var (
	// ErrNoFix is returned by Refresh when the fix file does not exist yet.
	ErrNoFix = errors.New("no location fix available")
	// ErrInvalidCoordinates is returned for latitude/longitude out of range.
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// Tracker holds the most recent location sample.
type Tracker struct {
	// path is the fix file, empty for manual-only tracking.
	path string
	// now returns the current time.
	now func() time.Time

	// mu guards sample.
	mu sync.RWMutex
	// sample is the last known position, nil until the first fix.
	sample *alert.LocationSample
}

// NewTracker creates a tracker with no fix. An empty path disables file refreshes.
func NewTracker(path string) *Tracker {
	if path != "" {
		path = filepath.Clean(path)
	}

	return &Tracker{
		path: path,
		now:  time.Now,
	}
}

// Current returns a copy of the last known sample, or nil.
func (t *Tracker) Current() *alert.LocationSample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.sample.Clone()
}

// Set records a manual fix.
func (t *Tracker) Set(lat, lng float64) error {
	if err := validate(lat, lng); err != nil {
		return err
	}

	t.store(alert.NewLocationSample(lat, lng, t.now()))

	return nil
}

// Clear forgets the current fix, e.g. when location permission is revoked.
func (t *Tracker) Clear() {
	t.store(nil)
}

// Refresh re-reads the fix file. The previous sample is kept when the file is
// missing or malformed.
func (t *Tracker) Refresh(ctx context.Context) error {
	if t.path == "" {
		return nil
	}

	contents, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoFix
		}

		return fmt.Errorf("read location fix: %w", err)
	}

	var sample alert.LocationSample
	if err = yaml.Unmarshal(contents, &sample); err != nil {
		return fmt.Errorf("decode location fix: %w", err)
	}

	if err = validate(sample.Latitude, sample.Longitude); err != nil {
		return err
	}

	if sample.Timestamp == "" {
		sample.Timestamp = t.now().UTC().Format(time.RFC3339)
	}

	t.store(&sample)

	logger.DebugKV(ctx, "Location refreshed", "latitude", sample.Latitude, "longitude", sample.Longitude)

	return nil
}

// store replaces the sample.
func (t *Tracker) store(sample *alert.LocationSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sample = sample
}

// validate checks WGS84 ranges.
func validate(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("lat %g, lng %g: %w", lat, lng, ErrInvalidCoordinates)
	}

	return nil
}
