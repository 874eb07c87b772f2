package controller

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/oshokin/sos-button/internal/api/http/control"
	"github.com/oshokin/sos-button/internal/api/rest/safety"
	"github.com/oshokin/sos-button/internal/config"
	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/location"
	"github.com/oshokin/sos-button/internal/logger"
	"github.com/oshokin/sos-button/internal/recognition"
	"github.com/oshokin/sos-button/internal/repository/history"
	"github.com/oshokin/sos-button/internal/service/settings"
	"github.com/oshokin/sos-button/internal/trigger"
)

// Runtime is a trigger controller with every collaborator attached.
type Runtime struct {
	// Config is the validated configuration.
	Config *config.Config
	// Controller owns the triggers.
	Controller *trigger.Controller
	// Tracker is the location provider.
	Tracker *location.Tracker
	// Feed pushes utterances to the recognition engine, nil when voice is disabled.
	Feed *recognition.FeedEngine
	// Settings is the synced settings snapshot.
	Settings *settings.Store
	// Client talks to the safety API.
	Client *safety.Client
	// Notices keeps recent notices for the control surface.
	Notices *control.NoticeLog

	journal   *history.SQLRepository
	scheduler *location.Scheduler
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Open builds a runtime from cfg. Every notice is logged, kept in Notices and
// forwarded to sinks.
func Open(ctx context.Context, cfg *config.Config, sinks ...trigger.Notifier) (*Runtime, error) {
	client, err := safety.New(cfg.APIURL,
		safety.WithCallTimeout(cfg.Timeout),
		safety.WithToken(cfg.APIToken))
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	rt := &Runtime{
		Config:  cfg,
		Tracker: location.NewTracker(cfg.LocationFile),
		Client:  client,
		Notices: control.NewNoticeLog(control.DefaultNoticeCapacity),
		Settings: settings.NewStore(&alert.Settings{
			ActivationPhrase: cfg.ActivationPhrase,
			EmergencyMessage: cfg.EmergencyMessage,
		}),
		cancel: cancel,
	}

	if cfg.LocationFile != "" {
		rt.scheduler, err = location.NewScheduler(bgCtx, cfg.LocationRefresh, rt.Tracker)
		if err != nil {
			cancel()
			return nil, err
		}

		rt.scheduler.Start()
	}

	deps := trigger.Deps{
		Sender:   client,
		Location: rt.Tracker,
		Settings: rt.Settings,
		Engine:   recognition.Unsupported{},
		Notifier: notifiers(append([]trigger.Notifier{logNotifier{}, rt.Notices}, sinks...)),
	}

	if cfg.VoiceEnabled {
		rt.Feed = recognition.NewFeedEngine()
		deps.Engine = rt.Feed
	}

	if cfg.HistoryDB != "" {
		rt.journal, err = history.Open(cfg.HistoryDB)
		if err != nil {
			// Alerts still go out without a journal.
			logger.WarnKV(ctx, "Alert journal unavailable", "path", cfg.HistoryDB, "error", err)
		} else {
			deps.Journal = rt.journal
		}
	}

	rt.Controller = trigger.New(trigger.Options{
		HoldDelay:         cfg.HoldDelay,
		DecoyDuration:     cfg.DecoyDuration,
		DecoyCaller:       cfg.DecoyCaller,
		RecognitionLocale: cfg.RecognitionLocale,
	}, deps)

	rt.wg.Add(1)

	go func() {
		defer rt.wg.Done()
		rt.Settings.Sync(bgCtx, client, cfg.SettingsSyncInterval)
	}()

	return rt, nil
}

// Close tears the controller down, waits for alerts in flight and releases
// every collaborator.
func (r *Runtime) Close(ctx context.Context) {
	r.Controller.Close(ctx)
	r.cancel()
	r.wg.Wait()

	if r.scheduler != nil {
		r.scheduler.Stop()
	}

	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			logger.WarnKV(ctx, "Close alert journal", "error", err)
		}
	}
}

// notifiers fans a notice out to several notifiers.
type notifiers []trigger.Notifier

// Notify implements trigger.Notifier.
func (n notifiers) Notify(ctx context.Context, notice trigger.Notice) {
	for _, notifier := range n {
		notifier.Notify(ctx, notice)
	}
}

// logNotifier writes notices to the context logger.
type logNotifier struct{}

// Notify implements trigger.Notifier.
func (logNotifier) Notify(ctx context.Context, notice trigger.Notice) {
	kvs := []any{"kind", notice.Kind.String(), "text", notice.Text}
	if notice.Err != nil {
		kvs = append(kvs, "error", notice.Err)
	}

	switch notice.Level {
	case trigger.LevelError:
		logger.ErrorKV(ctx, "Notice", kvs...)
	case trigger.LevelWarning:
		logger.WarnKV(ctx, "Notice", kvs...)
	default:
		logger.InfoKV(ctx, "Notice", kvs...)
	}
}

// writerNotifier prints notices for a person at a terminal.
type writerNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// Notify implements trigger.Notifier.
func (w *writerNotifier) Notify(_ context.Context, notice trigger.Notice) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefix := "*"

	switch notice.Level {
	case trigger.LevelError:
		prefix = "!!"
	case trigger.LevelWarning:
		prefix = "!"
	case trigger.LevelInfo:
	}

	_, _ = fmt.Fprintf(w.out, "%s %s\n", prefix, notice.Text)
}
