package location

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestTracker_Manual checks manual fixes, copies and clearing.
func TestTracker_Manual(t *testing.T) {
	t.Parallel()

	tr := NewTracker("")
	tr.now = func() time.Time { return time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC) }

	require.Nil(t, tr.Current())
	require.NoError(t, tr.Refresh(context.Background()))

	require.NoError(t, tr.Set(12.97, 77.59))

	got := tr.Current()
	require.InDelta(t, 12.97, got.Latitude, 1e-9)
	require.Equal(t, "2026-10-18T10:00:00Z", got.Timestamp)

	got.Latitude = 0
	require.InDelta(t, 12.97, tr.Current().Latitude, 1e-9)

	require.ErrorIs(t, tr.Set(91, 0), ErrInvalidCoordinates)
	require.ErrorIs(t, tr.Set(0, -181), ErrInvalidCoordinates)

	tr.Clear()
	require.Nil(t, tr.Current())
}

// TestTracker_RefreshFromFile reads the YAML fix and keeps the last good one.
func TestTracker_RefreshFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fix.yaml")
	tr := NewTracker(path)

	require.ErrorIs(t, tr.Refresh(context.Background()), ErrNoFix)
	require.Nil(t, tr.Current())

	fix := "latitude: 12.97\nlongitude: 77.59\naddress: MG Road\naccuracy: 15\ntimestamp: \"2026-10-18T10:00:00Z\"\n"
	require.NoError(t, os.WriteFile(path, []byte(fix), 0o600))
	require.NoError(t, tr.Refresh(context.Background()))

	got := tr.Current()
	require.Equal(t, "MG Road", got.Address)
	require.NotNil(t, got.Accuracy)
	require.InDelta(t, 15.0, *got.Accuracy, 1e-9)
	require.Equal(t, "2026-10-18T10:00:00Z", got.Timestamp)

	// A malformed fix keeps the previous sample.
	require.NoError(t, os.WriteFile(path, []byte("latitude: [\n"), 0o600))
	require.Error(t, tr.Refresh(context.Background()))
	require.Equal(t, "MG Road", tr.Current().Address)

	require.NoError(t, os.WriteFile(path, []byte("latitude: 100\nlongitude: 0\n"), 0o600))
	require.ErrorIs(t, tr.Refresh(context.Background()), ErrInvalidCoordinates)
	require.Equal(t, "MG Road", tr.Current().Address)
}

// countingRefresher counts refreshes.
type countingRefresher struct {
	calls atomic.Int32
}

// Refresh increments the counter.
func (c *countingRefresher) Refresh(context.Context) error {
	c.calls.Add(1)

	return nil
}

// TestScheduler runs an immediate refresh and then follows the schedule.
func TestScheduler(t *testing.T) {
	t.Parallel()

	source := new(countingRefresher)

	_, err := NewScheduler(context.Background(), "every so often", source)
	require.Error(t, err)

	s, err := NewScheduler(context.Background(), "@every 1s", source)
	require.NoError(t, err)
	require.Equal(t, int32(1), source.calls.Load())

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return source.calls.Load() >= 2
	}, 5*time.Second, 50*time.Millisecond)
}
