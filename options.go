package trackmmr

import (
	"time"

	"github.com/escrow-tf/trackmmr/gc"
)

type Options struct {
	AppID            uint32
	MatchesRequested uint32
	// Location is the zone record timestamps are converted to.
	Location *time.Location

	// LaunchDelay separates the games played notification from the coordinator hello. It
	// can't be disabled; steam drops a hello that arrives too early.
	LaunchDelay    time.Duration
	ReconnectDelay time.Duration
	// MaxReconnects bounds reconnects before logon. Negative disables reconnecting.
	MaxReconnects   int
	MaxCodeAttempts int

	ConnectTimeout     time.Duration
	AuthTimeout        time.Duration
	LogonTimeout       time.Duration
	CoordinatorTimeout time.Duration
	HistoryTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		AppID:              gc.DotaAppID,
		MatchesRequested:   20,
		Location:           time.Local,
		LaunchDelay:        5 * time.Second,
		ReconnectDelay:     5 * time.Second,
		MaxReconnects:      5,
		MaxCodeAttempts:    3,
		ConnectTimeout:     30 * time.Second,
		AuthTimeout:        5 * time.Minute,
		LogonTimeout:       30 * time.Second,
		CoordinatorTimeout: 60 * time.Second,
		HistoryTimeout:     30 * time.Second,
	}
}

// withDefaults fills every zero field from DefaultOptions.
func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.AppID == 0 {
		o.AppID = defaults.AppID
	}
	if o.MatchesRequested == 0 {
		o.MatchesRequested = defaults.MatchesRequested
	}
	if o.Location == nil {
		o.Location = defaults.Location
	}
	if o.LaunchDelay <= 0 {
		o.LaunchDelay = defaults.LaunchDelay
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = defaults.ReconnectDelay
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = defaults.MaxReconnects
	} else if o.MaxReconnects < 0 {
		o.MaxReconnects = 0
	}
	if o.MaxCodeAttempts <= 0 {
		o.MaxCodeAttempts = defaults.MaxCodeAttempts
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaults.ConnectTimeout
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = defaults.AuthTimeout
	}
	if o.LogonTimeout <= 0 {
		o.LogonTimeout = defaults.LogonTimeout
	}
	if o.CoordinatorTimeout <= 0 {
		o.CoordinatorTimeout = defaults.CoordinatorTimeout
	}
	if o.HistoryTimeout <= 0 {
		o.HistoryTimeout = defaults.HistoryTimeout
	}
	return o
}
