package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/escrow-tf/trackmmr/config"
	"github.com/escrow-tf/trackmmr/logger"
	"github.com/rs/zerolog"
)

func main() {
	cmd := "fetch"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "help", "-h", "--help":
		printUsage()
		return
	case "fetch", "login", "history", "status", "watch":
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err := run(cmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	cfg, err := config.Load(bootLogger)
	if err != nil {
		return err
	}

	log, err := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	if cmd == "watch" {
		return runWatch(cfg, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing")
		}
	}()

	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "history":
		return a.history(ctx, args)
	case "status":
		return a.status(ctx)
	default:
		return a.fetchAndReport(ctx)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: trackmmr [command]

commands:
  fetch           fetch recent ranked matches and show the last 30 days (default)
  login           log in with a username and password, then fetch
  history [days]  show stored rating history, all of it when days is omitted
  status          show the saved login and the last fetch
  watch           fetch every TRACKMMR_WATCH_INTERVAL until interrupted
`)
}
