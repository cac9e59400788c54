// Package credstore keeps the steam username and refresh token between runs.
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/escrow-tf/trackmmr"
	"github.com/rotisserie/eris"
)

// fileCredentials is the on-disk shape. It has no password field so a password can never
// be written out.
type fileCredentials struct {
	Username     string `json:"username"`
	RefreshToken string `json:"refresh_token"`
}

type File struct {
	path string
}

var _ trackmmr.CredentialStore = (*File)(nil)

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Load returns empty credentials when nothing has been saved yet.
func (f *File) Load(_ context.Context) (trackmmr.Credentials, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return trackmmr.Credentials{}, nil
	}
	if err != nil {
		return trackmmr.Credentials{}, eris.Wrapf(err, "couldn't read %s", f.path)
	}

	var stored fileCredentials
	if err := json.Unmarshal(data, &stored); err != nil {
		return trackmmr.Credentials{}, eris.Wrapf(err, "couldn't parse %s", f.path)
	}

	return trackmmr.Credentials{Username: stored.Username, RefreshToken: stored.RefreshToken}, nil
}

// Save replaces the file atomically so a crash never leaves half a token behind.
func (f *File) Save(_ context.Context, credentials trackmmr.Credentials) error {
	data, err := json.MarshalIndent(fileCredentials{
		Username:     credentials.Username,
		RefreshToken: credentials.RefreshToken,
	}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "couldn't encode credentials")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return eris.Wrapf(err, "couldn't create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return eris.Wrap(err, "couldn't create temporary credentials file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "couldn't write credentials")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "couldn't write credentials")
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return eris.Wrap(err, "couldn't restrict credentials file")
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return eris.Wrapf(err, "couldn't replace %s", f.path)
	}
	return nil
}
