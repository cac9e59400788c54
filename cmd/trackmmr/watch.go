package main

import (
	"context"
	"time"

	"github.com/escrow-tf/trackmmr"
	"github.com/escrow-tf/trackmmr/config"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// runWatch fetches on a fixed interval until the process is signalled. It never prompts, so
// the first fetch needs a saved login or a configured shared secret.
func runWatch(cfg *config.Config, logger zerolog.Logger) error {
	fx.New(
		fx.NopLogger,
		fx.Supply(cfg, logger),
		fx.Provide(newWatchApp),
		fx.Invoke(registerWatcher),
	).Run()
	return nil
}

func newWatchApp(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a, err := newApp(context.Background(), cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return a.Close()
		},
	})
	return a, nil
}

type watcher struct {
	app        *app
	interval   time.Duration
	shutdowner fx.Shutdowner
	logger     zerolog.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

func registerWatcher(lc fx.Lifecycle, shutdowner fx.Shutdowner, a *app, cfg *config.Config, logger zerolog.Logger) {
	w := &watcher{
		app:        a,
		interval:   cfg.WatchInterval,
		shutdowner: shutdowner,
		logger:     logger.With().Str("component", "watch").Logger(),
		done:       make(chan struct{}),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			w.cancel = cancel
			go w.run(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			w.cancel()
			select {
			case <-w.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.done)

	w.logger.Info().Dur("interval", w.interval).Msg("watching rating history")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if !w.once(ctx) {
			if err := w.shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
				w.logger.Error().Err(err).Msg("couldn't stop")
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// once runs a single fetch and reports whether watching can continue.
func (w *watcher) once(ctx context.Context) bool {
	credentials, err := w.app.credentials.Load(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("couldn't load saved login")
		return false
	}
	if !credentials.CanLogOn() {
		w.logger.Error().Msg("no saved login, run `trackmmr login` first")
		return false
	}

	authn, err := w.app.authenticator(false)
	if err != nil {
		w.logger.Error().Err(err).Msg("couldn't set up steam guard")
		return false
	}

	result, err := w.app.fetch(ctx, credentials, authn)
	switch {
	case ctx.Err() != nil:
		return true
	case trackmmr.ReauthRequired(err):
		w.logger.Error().Err(err).Msg("saved login was rejected, run `trackmmr login`")
		return false
	case err != nil:
		w.logger.Warn().Err(err).Msg("fetch failed, retrying next interval")
		return true
	}

	event := w.logger.Info().Int("fetched", len(result.Records)).Int("inserted", result.Inserted)
	if len(result.Records) > 0 {
		event = event.Int("rating", result.Records[0].Rating)
	}
	event.Msg("fetched rating history")
	return true
}
