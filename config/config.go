package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/escrow-tf/trackmmr"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const envPrefix = "TRACKMMR_"

var ErrInvalidValue = errors.New("invalid configuration value")

type Config struct {
	DataDir         string
	DBPath          string
	CredentialsPath string
	LogLevel        string
	LogFormat       string
	WatchInterval   time.Duration

	// CMEndpoint skips the CM directory lookup when set, e.g. "cmp1-fra1.steamserver.net:443".
	CMEndpoint   string
	SharedSecret string
	WebAPIKey    string

	MatchesRequested   int
	MaxReconnects      int
	LaunchDelay        time.Duration
	ConnectTimeout     time.Duration
	AuthTimeout        time.Duration
	LogonTimeout       time.Duration
	CoordinatorTimeout time.Duration
	HistoryTimeout     time.Duration
}

// Load reads a .env file from the working directory, if there is one, and then the
// environment.
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg, err := parse(os.LookupEnv)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("db_path", cfg.DBPath).
		Str("credentials_path", cfg.CredentialsPath).
		Str("cm_endpoint", cfg.CMEndpoint).
		Bool("shared_secret", cfg.SharedSecret != "").
		Dur("watch_interval", cfg.WatchInterval).
		Msg("configuration loaded")

	return cfg, nil
}

func parse(lookup func(string) (string, bool)) (*Config, error) {
	env := environment{lookup: lookup}
	defaults := trackmmr.DefaultOptions()

	dataDir := env.get("DATA_DIR", "")
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("%w: %sDATA_DIR is unset and there is no user config directory: %v", ErrInvalidValue, envPrefix, err)
		}
		dataDir = filepath.Join(base, "trackmmr")
	}

	cfg := &Config{
		DataDir:         dataDir,
		DBPath:          env.get("DB_PATH", filepath.Join(dataDir, "trackmmr.db")),
		CredentialsPath: env.get("CREDENTIALS_PATH", filepath.Join(dataDir, "credentials.json")),
		LogLevel:        env.get("LOG_LEVEL", "info"),
		LogFormat:       env.get("LOG_FORMAT", "console"),
		WatchInterval:   env.getDuration("WATCH_INTERVAL", 5*time.Minute),

		CMEndpoint:   env.get("CM_ENDPOINT", ""),
		SharedSecret: env.get("SHARED_SECRET", ""),
		WebAPIKey:    env.get("WEB_API_KEY", ""),

		MatchesRequested:   env.getInt("MATCHES_REQUESTED", int(defaults.MatchesRequested)),
		MaxReconnects:      env.getInt("MAX_RECONNECTS", defaults.MaxReconnects),
		LaunchDelay:        env.getDuration("LAUNCH_DELAY", defaults.LaunchDelay),
		ConnectTimeout:     env.getDuration("CONNECT_TIMEOUT", defaults.ConnectTimeout),
		AuthTimeout:        env.getDuration("AUTH_TIMEOUT", defaults.AuthTimeout),
		LogonTimeout:       env.getDuration("LOGON_TIMEOUT", defaults.LogonTimeout),
		CoordinatorTimeout: env.getDuration("COORDINATOR_TIMEOUT", defaults.CoordinatorTimeout),
		HistoryTimeout:     env.getDuration("HISTORY_TIMEOUT", defaults.HistoryTimeout),
	}
	if env.err != nil {
		return nil, env.err
	}

	switch cfg.LogFormat {
	case "console", "json":
	default:
		return nil, fmt.Errorf("%w: %sLOG_FORMAT=%q, want console or json", ErrInvalidValue, envPrefix, cfg.LogFormat)
	}
	if cfg.WatchInterval <= 0 {
		return nil, fmt.Errorf("%w: %sWATCH_INTERVAL must be positive", ErrInvalidValue, envPrefix)
	}
	if cfg.MatchesRequested <= 0 {
		return nil, fmt.Errorf("%w: %sMATCHES_REQUESTED must be positive", ErrInvalidValue, envPrefix)
	}

	return cfg, nil
}

// OrchestratorOptions returns the session settings, expressed in location.
func (c *Config) OrchestratorOptions(location *time.Location) trackmmr.Options {
	options := trackmmr.DefaultOptions()
	options.Location = location
	options.MatchesRequested = uint32(c.MatchesRequested)
	options.MaxReconnects = c.MaxReconnects
	options.LaunchDelay = c.LaunchDelay
	options.ConnectTimeout = c.ConnectTimeout
	options.AuthTimeout = c.AuthTimeout
	options.LogonTimeout = c.LogonTimeout
	options.CoordinatorTimeout = c.CoordinatorTimeout
	options.HistoryTimeout = c.HistoryTimeout
	return options
}

// environment keeps the first parse error so a whole Config can be read before checking it.
type environment struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *environment) get(key, fallback string) string {
	if v, ok := e.lookup(envPrefix + key); ok && v != "" {
		return v
	}
	return fallback
}

func (e *environment) getDuration(key string, fallback time.Duration) time.Duration {
	raw := e.get(key, "")
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(key, raw, err)
		return fallback
	}
	return value
}

func (e *environment) getInt(key string, fallback int) int {
	raw := e.get(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(key, raw, err)
		return fallback
	}
	return value
}

func (e *environment) fail(key, raw string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidValue, envPrefix, key, raw, err)
	}
}
