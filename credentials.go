// Package trackmmr drives a Steam session through logon and the Dota 2 game coordinator
// handshake to read a player's ranked rating history.
package trackmmr

import "context"

// Credentials identify the account to log on with. Password is only held in memory until a
// refresh token has been issued for it.
type Credentials struct {
	Username     string
	Password     string
	RefreshToken string
}

func (c Credentials) CanLogOn() bool {
	return c.Username != "" && (c.Password != "" || c.RefreshToken != "")
}

func (c Credentials) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// WithoutToken is what gets persisted once a refresh token stops being accepted.
func (c Credentials) WithoutToken() Credentials {
	return Credentials{Username: c.Username}
}

type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, credentials Credentials) error
}
