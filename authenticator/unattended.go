package authenticator

import (
	"context"

	"github.com/escrow-tf/trackmmr"
	"github.com/rotisserie/eris"
)

// ErrInteractionRequired is returned when steam asks for input nobody is around to give.
var ErrInteractionRequired = eris.New("steam guard needs interactive input, run the login command")

// Unattended refuses every code and confirmation, for runs that must rely on a stored token.
type Unattended struct{}

var _ trackmmr.Authenticator = Unattended{}

func (Unattended) GetDeviceCode(context.Context, bool) (string, error) {
	return "", ErrInteractionRequired
}

func (Unattended) GetEmailCode(context.Context, string, bool) (string, error) {
	return "", ErrInteractionRequired
}

func (Unattended) AcceptDeviceConfirmation(context.Context) (bool, error) {
	return false, nil
}
