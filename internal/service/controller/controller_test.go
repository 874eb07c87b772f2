package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-button/internal/config"
	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/repository/history"
)

// fakeAPI is a safety API double counting alert submissions.
type fakeAPI struct {
	*httptest.Server

	alerts   atomic.Int32
	failing  atomic.Bool
	mu       sync.Mutex
	received []alert.AlertRequest
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	api := new(fakeAPI)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/alerts", func(w http.ResponseWriter, r *http.Request) {
		var req alert.AlertRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		api.mu.Lock()
		api.received = append(api.received, req)
		api.mu.Unlock()

		api.alerts.Add(1)

		if api.failing.Load() {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "gateway down"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"id": "alert-1", "status": "active"})
	})
	mux.HandleFunc("GET /api/settings", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"voice_activation_phrase": "help me"})
	})
	mux.HandleFunc("GET /api/contacts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "c1", "name": "Asha", "phone_number": "+911234567890", "relationship": "family", "is_primary": true},
		})
	})
	mux.HandleFunc("GET /api/alerts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "a2", "type": "voice_sos", "status": "active", "contacts_notified": []string{"c1"}, "created_at": "2026-10-18T10:05:00"},
			{"id": "a1", "type": "panic_button", "status": "resolved", "created_at": "2026-10-18T10:00:00"},
		})
	})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /api/emergency-numbers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "maintenance"})
	})

	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)

	return api
}

func (a *fakeAPI) lastMessage() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.received) == 0 {
		return ""
	}

	return a.received[len(a.received)-1].Message
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errchkjson // Test helper.
}

// testConfig returns a fast configuration against api with a temp journal.
func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.APIURL = apiURL
	cfg.Timeout = 2 * time.Second
	cfg.HoldDelay = 50 * time.Millisecond
	cfg.DecoyDuration = 50 * time.Millisecond
	cfg.SettingsSyncInterval = 0
	cfg.ControlAddress = ""
	cfg.HistoryDB = filepath.Join(t.TempDir(), "history.db")

	require.NoError(t, config.Validate(cfg))

	return cfg
}

// writeConfig saves cfg and returns its path.
func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, cfg))

	return path
}

// blockingReader never returns until closed, like an idle terminal.
type blockingReader struct {
	done chan struct{}
}

func newBlockingReader(t *testing.T) *blockingReader {
	t.Helper()

	r := &blockingReader{done: make(chan struct{})}
	t.Cleanup(func() { close(r.done) })

	return r
}

func (r *blockingReader) Read([]byte) (int, error) {
	<-r.done
	return 0, io.EOF
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func journalAttempts(t *testing.T, path string) []*alert.Attempt {
	t.Helper()

	journal, err := history.Open(path)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, journal.Close())
	}()

	attempts, err := journal.List(context.Background(), 10)
	require.NoError(t, err)

	return attempts
}

// TestPanic_Sent holds until the alert fires and journals it.
func TestPanic_Sent(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	out := new(syncBuffer)

	err := Panic(context.Background(), &PanicOptions{
		Options:     Options{ConfigPath: writeConfig(t, cfg), Out: out},
		Latitude:    12.9716,
		Longitude:   77.5946,
		HasLocation: true,
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), api.alerts.Load())
	require.Contains(t, api.lastMessage(), "Lat: 12.9716, Lng: 77.5946")
	require.Contains(t, out.String(), "Emergency alert sent")

	attempts := journalAttempts(t, cfg.HistoryDB)
	require.Len(t, attempts, 1)
	require.Equal(t, alert.OutcomeSent, attempts[0].Outcome)
	require.Equal(t, "alert-1", attempts[0].AlertID)
}

// TestPanic_ReleasedEarly cancels without contacting the API.
func TestPanic_ReleasedEarly(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	cfg.HoldDelay = time.Second

	err := Panic(context.Background(), &PanicOptions{
		Options:     Options{ConfigPath: writeConfig(t, cfg), Out: io.Discard},
		Hold:        10 * time.Millisecond,
		HasLocation: true,
	})
	require.ErrorIs(t, err, ErrCancelled)
	require.Zero(t, api.alerts.Load())
}

// TestPanic_NoLocation fails locally and never reaches the API.
func TestPanic_NoLocation(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	out := new(syncBuffer)

	err := Panic(context.Background(), &PanicOptions{
		Options: Options{ConfigPath: writeConfig(t, cfg), Out: out},
	})
	require.ErrorIs(t, err, ErrAlertNotSent)
	require.Zero(t, api.alerts.Load())
	require.Contains(t, out.String(), "Location not available")

	attempts := journalAttempts(t, cfg.HistoryDB)
	require.Len(t, attempts, 1)
	require.Equal(t, alert.OutcomeRejected, attempts[0].Outcome)
}

// TestPanic_ServerError reports the failure once.
func TestPanic_ServerError(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.failing.Store(true)
	cfg := testConfig(t, api.URL)

	err := Panic(context.Background(), &PanicOptions{
		Options:     Options{ConfigPath: writeConfig(t, cfg), Out: io.Discard},
		Latitude:    1,
		Longitude:   2,
		HasLocation: true,
	})
	require.ErrorIs(t, err, ErrAlertNotSent)
	require.Contains(t, err.Error(), "call emergency services directly")
	require.Equal(t, int32(1), api.alerts.Load())
}

// TestVoice_PhraseDetected sends a voice alert for the first matching line.
func TestVoice_PhraseDetected(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	cfg.LocationFile = filepath.Join(t.TempDir(), "fix.yaml")
	require.NoError(t, writeFix(cfg.LocationFile))

	in := io.MultiReader(strings.NewReader("good morning\nplease HELP ME now\n"), newBlockingReader(t))

	err := Voice(context.Background(), &Options{ConfigPath: writeConfig(t, cfg), In: in, Out: io.Discard})
	require.NoError(t, err)
	require.Equal(t, int32(1), api.alerts.Load())
	require.Equal(t, `Voice SOS activated. Detected phrase: "please help me now"`, api.lastMessage())
}

// TestVoice_PhraseOnLastLine sends the alert when the phrase is the final line of input.
func TestVoice_PhraseOnLastLine(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	cfg.LocationFile = filepath.Join(t.TempDir(), "fix.yaml")
	require.NoError(t, writeFix(cfg.LocationFile))

	for range 10 {
		err := Voice(context.Background(), &Options{
			ConfigPath: writeConfig(t, cfg),
			In:         strings.NewReader("please help me now\n"),
			Out:        io.Discard,
		})
		require.NoError(t, err)
	}

	require.Equal(t, int32(10), api.alerts.Load())
}

// TestVoice_InputEnded stops listening without an alert.
func TestVoice_InputEnded(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)

	err := Voice(context.Background(), &Options{
		ConfigPath: writeConfig(t, cfg),
		In:         strings.NewReader("nothing to see here\n"),
		Out:        io.Discard,
	})
	require.ErrorIs(t, err, ErrCancelled)
	require.Zero(t, api.alerts.Load())
}

// TestVoice_Disabled reports the missing capability.
func TestVoice_Disabled(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	cfg.VoiceEnabled = false

	err := Voice(context.Background(), &Options{ConfigPath: writeConfig(t, cfg), Out: io.Discard})
	require.ErrorIs(t, err, errNoFeed)
}

// TestFakeCall_AutoDismiss returns once the call times out.
func TestFakeCall_AutoDismiss(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	out := new(syncBuffer)

	err := FakeCall(context.Background(), &Options{
		ConfigPath: writeConfig(t, cfg),
		In:         newBlockingReader(t),
		Out:        out,
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "Incoming call from Dad")
	require.Contains(t, out.String(), "Fake call ended.")
}

// TestFakeCall_DismissedByInput ends on the first line.
func TestFakeCall_DismissedByInput(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	cfg.DecoyDuration = time.Minute

	err := FakeCall(context.Background(), &Options{
		ConfigPath: writeConfig(t, cfg),
		In:         strings.NewReader("\n"),
		Out:        io.Discard,
	})
	require.NoError(t, err)
}

// TestHistory prints journaled attempts.
func TestHistory(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)

	journal, err := history.Open(cfg.HistoryDB)
	require.NoError(t, err)
	require.NoError(t, journal.Record(context.Background(), &alert.Attempt{
		Kind:     alert.KindPanic,
		Outcome:  alert.OutcomeSent,
		AlertID:  "alert-7",
		Location: alert.NewLocationSample(1, 2, time.Now()),
		At:       time.Now(),
	}))
	require.NoError(t, journal.Close())

	out := new(syncBuffer)
	require.NoError(t, History(context.Background(), &HistoryOptions{
		Options: Options{ConfigPath: writeConfig(t, cfg), Out: out},
	}))
	require.Contains(t, out.String(), "alert-7")
	require.Contains(t, out.String(), "panic_button")
}

// TestNumbers_FallsBack prints the built-in list when the API fails.
func TestNumbers_FallsBack(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	out := new(syncBuffer)

	require.NoError(t, Numbers(context.Background(), &NumbersOptions{
		Options: Options{ConfigPath: writeConfig(t, testConfig(t, api.URL)), Out: out},
	}))
	require.Contains(t, out.String(), "Built-in india numbers")
	require.Contains(t, out.String(), "police")
	require.Contains(t, out.String(), "1091")
}

// TestNumbers_OtherRegionHasNoFallback fails instead of printing another country's numbers.
func TestNumbers_OtherRegionHasNoFallback(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	out := new(syncBuffer)

	err := Numbers(context.Background(), &NumbersOptions{
		Options: Options{ConfigPath: writeConfig(t, testConfig(t, api.URL)), Out: out},
		Region:  "us",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "emergency numbers for us")
	require.Empty(t, out.String())
}

// TestContacts prints the contacts table.
func TestContacts(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	out := new(syncBuffer)

	require.NoError(t, Contacts(context.Background(), &Options{
		ConfigPath: writeConfig(t, testConfig(t, api.URL)),
		Out:        out,
	}))

	text := out.String()
	require.Contains(t, text, "NAME")
	require.Contains(t, text, "Asha")
	require.Contains(t, text, "+911234567890")
	require.Contains(t, text, "yes")
}

// TestRemoteAlerts prints the newest server alerts up to the limit.
func TestRemoteAlerts(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	out := new(syncBuffer)

	require.NoError(t, RemoteAlerts(context.Background(), &RemoteAlertsOptions{
		Options: Options{ConfigPath: writeConfig(t, testConfig(t, api.URL)), Out: out},
		Limit:   1,
	}))

	text := out.String()
	require.Contains(t, text, "voice_sos")
	require.NotContains(t, text, "panic_button")
	require.Contains(t, text, "unknown location")
}

// TestPing reports a healthy API.
func TestPing(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	out := new(syncBuffer)

	require.NoError(t, Ping(context.Background(), &Options{
		ConfigPath: writeConfig(t, testConfig(t, api.URL)),
		Out:        out,
	}))
	require.Contains(t, out.String(), "healthy")
}

// TestRun_Console drives the controller from scripted input.
func TestRun_Console(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	out := new(syncBuffer)

	script := strings.Join([]string{
		"status",
		"location 12.97 77.59",
		"hold 5ms",
		"bogus",
		"listen",
		"call",
		"call",
		"dismiss",
		"quit",
		"status",
	}, "\n")

	err := Run(context.Background(), &Options{
		ConfigPath: writeConfig(t, cfg),
		NoControl:  true,
		In:         strings.NewReader(script),
		Out:        out,
	})
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "panic: idle")
	require.Contains(t, text, "last alert: none")
	require.Contains(t, text, "Location set to Lat: 12.97, Lng: 77.59")
	require.Contains(t, text, "Released early, panic alert cancelled")
	require.Contains(t, text, `error: "bogus": unknown command`)
	require.Contains(t, text, `Listening for "help me"`)
	require.Contains(t, text, "A fake call is already on screen")
	require.Equal(t, 1, strings.Count(text, "panic: idle"))
	require.Zero(t, api.alerts.Load())
}

// TestConsole_StatusReportsJournal prints the newest attempt and the settings sync time.
func TestConsole_StatusReportsJournal(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	cfg := testConfig(t, api.URL)
	ctx := context.Background()

	rt, err := Open(ctx, cfg)
	require.NoError(t, err)

	defer rt.Close(ctx)

	require.NoError(t, rt.journal.Record(ctx, &alert.Attempt{
		RequestID: "req-1",
		Kind:      alert.KindVoice,
		Outcome:   alert.OutcomeRejected,
		At:        time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, rt.Settings.Refresh(ctx, rt.Client))

	out := new(syncBuffer)
	require.NoError(t, NewConsole(rt, out).Execute(ctx, "status"))

	text := out.String()
	require.Contains(t, text, "last alert: voice_sos rejected at ")
	require.NotContains(t, text, "settings synced: never")
}

func writeFix(path string) error {
	return os.WriteFile(path, []byte("latitude: 12.9716\nlongitude: 77.5946\naddress: MG Road, Bengaluru\n"), 0o600)
}
