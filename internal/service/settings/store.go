package settings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/logger"
)

// Fetcher reads the settings document from the API.
type Fetcher interface {
	GetSettings(ctx context.Context) (*alert.Settings, error)
}

// Store holds the current settings snapshot.
type Store struct {
	mu      sync.RWMutex
	current *alert.Settings
	// syncedAt is the time of the last successful pull, zero if never.
	syncedAt time.Time
}

var errFetcherRequired = errors.New("settings fetcher must be provided")

// NewStore creates a store seeded with local values.
func NewStore(initial *alert.Settings) *Store {
	if initial == nil {
		initial = &alert.Settings{}
	}

	return &Store{current: initial.Clone()}
}

// Settings returns a copy of the current snapshot.
func (s *Store) Settings() *alert.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current.Clone()
}

// SyncedAt returns the time of the last successful pull.
func (s *Store) SyncedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.syncedAt
}

// Apply merges remote settings. Blank phrase or message keep the local value.
func (s *Store) Apply(remote *alert.Settings) {
	if remote == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()

	if phrase := strings.TrimSpace(remote.ActivationPhrase); phrase != "" {
		next.ActivationPhrase = phrase
	}

	if message := strings.TrimSpace(remote.EmergencyMessage); message != "" {
		next.EmergencyMessage = remote.EmergencyMessage
	}

	next.VoiceMonitoringEnabled = remote.VoiceMonitoringEnabled

	s.current = next
	s.syncedAt = time.Now()
}

// Refresh pulls settings once and applies them.
func (s *Store) Refresh(ctx context.Context, fetcher Fetcher) error {
	if fetcher == nil {
		return errFetcherRequired
	}

	remote, err := fetcher.GetSettings(ctx)
	if err != nil {
		return err
	}

	s.Apply(remote)

	return nil
}

// Sync pulls settings immediately and then every interval until ctx is done.
// Errors are logged and the previous snapshot stays in place.
func (s *Store) Sync(ctx context.Context, fetcher Fetcher, interval time.Duration) {
	ctx = logger.WithName(ctx, "settings-sync")

	s.refreshLogged(ctx, fetcher)

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshLogged(ctx, fetcher)
		}
	}
}

func (s *Store) refreshLogged(ctx context.Context, fetcher Fetcher) {
	if err := s.Refresh(ctx, fetcher); err != nil {
		if ctx.Err() == nil {
			logger.WarnKV(ctx, "Settings sync failed, keeping previous values", "error", err)
		}

		return
	}

	current := s.Settings()
	logger.DebugKV(ctx, "Settings synced",
		"activation_phrase", current.ActivationPhrase,
		"voice_monitoring_enabled", current.VoiceMonitoringEnabled)
}
