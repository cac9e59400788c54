package authenticator

import (
	"context"

	"github.com/escrow-tf/trackmmr"
	"github.com/escrow-tf/trackmmr/api/twofactor"
	"github.com/escrow-tf/trackmmr/totp"
	"github.com/rotisserie/eris"
)

// TOTP generates device codes from the account's shared secret, so logins run unattended.
type TOTP struct {
	state  *totp.State
	clock  twofactor.Api
	synced bool
}

var _ trackmmr.Authenticator = (*TOTP)(nil)

func NewTOTP(sharedSecret string, clock twofactor.Api) (*TOTP, error) {
	state, err := totp.NewState(sharedSecret)
	if err != nil {
		return nil, err
	}
	return &TOTP{state: state, clock: clock}, nil
}

// GetDeviceCode resyncs with steam's clock when the last code was rejected, since a skewed
// clock is the usual reason.
func (a *TOTP) GetDeviceCode(ctx context.Context, previousCodeWasIncorrect bool) (string, error) {
	if !a.synced || previousCodeWasIncorrect {
		if err := a.clock.AlignTime(ctx); err != nil {
			return "", eris.Wrap(err, "couldn't align with steam time")
		}
		a.synced = true
	}

	now, err := a.clock.SteamTime()
	if err != nil {
		return "", err
	}
	return a.state.GenerateAuthCode(now), nil
}

func (a *TOTP) GetEmailCode(context.Context, string, bool) (string, error) {
	return "", eris.New("account uses email steam guard, a shared secret can't answer it")
}

func (a *TOTP) AcceptDeviceConfirmation(context.Context) (bool, error) {
	return false, nil
}
