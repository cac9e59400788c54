package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/escrow-tf/trackmmr"
	"github.com/escrow-tf/trackmmr/api"
	"github.com/escrow-tf/trackmmr/api/twofactor"
	"github.com/escrow-tf/trackmmr/authenticator"
	"github.com/escrow-tf/trackmmr/cm"
	"github.com/escrow-tf/trackmmr/config"
	"github.com/escrow-tf/trackmmr/credstore"
	"github.com/escrow-tf/trackmmr/store"
	"github.com/rs/zerolog"
)

// cmListTTL bounds how long a CM directory lookup is reused across fetches.
const cmListTTL = 30 * time.Minute

type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	out         io.Writer
	location    *time.Location
	store       *store.SQLite
	credentials *credstore.File
	cache       *api.MemoryCache
	webAPI      api.Transport
	console     *authenticator.Console

	newTransport func() trackmmr.Transport
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, out io.Writer) (*app, error) {
	location := time.Local

	sqlite, err := store.Open(ctx, cfg.DBPath, store.Options{Location: location, Logger: logger})
	if err != nil {
		return nil, err
	}

	cache := api.NewMemoryCache(cmListTTL)
	webAPI := api.NewTransport(api.HttpTransportOptions{
		WebApiKey:     cfg.WebAPIKey,
		ResponseCache: cache,
		Logger:        logger.With().Str("component", "webapi").Logger(),
	})

	a := &app{
		cfg:         cfg,
		logger:      logger,
		out:         out,
		location:    location,
		store:       sqlite,
		credentials: credstore.NewFile(cfg.CredentialsPath),
		cache:       cache,
		webAPI:      webAPI,
		console:     authenticator.NewConsole(os.Stdin, os.Stderr),
	}
	a.newTransport = func() trackmmr.Transport {
		return cm.NewClient(webAPI, cm.Options{Endpoint: cfg.CMEndpoint, Logger: logger})
	}
	return a, nil
}

func (a *app) Close() error {
	a.cache.Close()
	return a.store.Close()
}

// authenticator picks who answers steam guard. A configured shared secret always wins; without
// one, unattended runs can only use a saved token.
func (a *app) authenticator(interactive bool) (trackmmr.Authenticator, error) {
	if a.cfg.SharedSecret != "" {
		return authenticator.NewTOTP(a.cfg.SharedSecret, twofactor.NewClient(a.webAPI))
	}
	if interactive {
		return a.console, nil
	}
	return authenticator.Unattended{}, nil
}

type fetchResult struct {
	Records  []trackmmr.RatingRecord
	Inserted int
}

// fetch runs one session, saves what it returned and logs the run, failed or not.
func (a *app) fetch(ctx context.Context, credentials trackmmr.Credentials, authn trackmmr.Authenticator) (fetchResult, error) {
	run := store.FetchRun{StartedAt: time.Now()}

	orchestrator := trackmmr.NewOrchestrator(a.newTransport(), a.credentials, a.logger, a.cfg.OrchestratorOptions(a.location))
	records, err := orchestrator.FetchRatingHistory(ctx, credentials, authn)
	run.Fetched = len(records)

	inserted := 0
	if err == nil {
		inserted, err = a.store.SaveRecords(ctx, records)
	}
	run.Inserted = inserted
	run.FinishedAt = time.Now()
	if err != nil {
		run.Error = err.Error()
	}

	if _, recordErr := a.store.RecordRun(context.WithoutCancel(ctx), run); recordErr != nil {
		a.logger.Warn().Err(recordErr).Msg("couldn't record fetch run")
	}
	if err != nil {
		return fetchResult{}, err
	}

	a.logger.Debug().
		Int("fetched", len(records)).
		Int("inserted", inserted).
		Int("transitions", len(orchestrator.Transitions())).
		Msg("fetch complete")
	return fetchResult{Records: records, Inserted: inserted}, nil
}
