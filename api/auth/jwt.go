package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

// TokenInfo is what can be read from a steam-issued JWT without verifying it.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now. Tokens without an
// expiry never expire.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// InspectToken decodes the claims of a steam access, refresh or weak token. Steam signs
// these with keys we don't have, so the signature is not checked.
func InspectToken(token string) (TokenInfo, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return TokenInfo{}, eris.Wrap(err, "token is not a valid JWT")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return TokenInfo{}, eris.Wrap(err, "token is missing subject claim")
	}

	info := TokenInfo{Subject: subject}

	expiresAt, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return TokenInfo{}, eris.Wrap(err, "token has a malformed expiration claim")
	}
	if expiresAt != nil {
		info.ExpiresAt = expiresAt.Time
	}

	return info, nil
}

func TokenSubject(token string) (string, error) {
	info, err := InspectToken(token)
	if err != nil {
		return "", err
	}
	if info.Subject == "" {
		return "", eris.New("token subject is empty")
	}
	return info.Subject, nil
}
