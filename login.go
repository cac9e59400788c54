package trackmmr

import (
	"context"
	"errors"
	"time"

	"github.com/escrow-tf/trackmmr/api/auth"
	"github.com/rotisserie/eris"
)

const defaultPollInterval = 5 * time.Second

// authenticate trades a password for a refresh token. The returned credentials never carry
// the password.
func (o *Orchestrator) authenticate(
	ctx context.Context,
	service AuthService,
	credentials Credentials,
	authenticator Authenticator,
) (Credentials, error) {
	logger := o.logger.With().Str("username", credentials.Username).Logger()
	logger.Info().Msg("starting credential authentication")

	session, err := service.BeginAuthSession(ctx, credentials.Username, credentials.Password)
	if err != nil {
		return Credentials{}, eris.Wrap(err, "couldn't start auth session")
	}

	if err := o.confirm(ctx, session, authenticator); err != nil {
		return Credentials{}, err
	}

	result, err := pollForToken(ctx, session)
	if err != nil {
		return Credentials{}, err
	}

	if info, err := auth.InspectToken(result.RefreshToken); err != nil {
		logger.Warn().Err(err).Msg("refresh token is not a readable JWT")
	} else {
		logger.Info().Str("steamid", info.Subject).Time("expires", info.ExpiresAt).Msg("received refresh token")
	}

	username := result.AccountName
	if username == "" {
		username = credentials.Username
	}
	return Credentials{Username: username, RefreshToken: result.RefreshToken}, nil
}

// confirm satisfies the first confirmation steam lists that this client can handle.
func (o *Orchestrator) confirm(ctx context.Context, session AuthSession, authenticator Authenticator) error {
	confirmations := session.Confirmations()
	if len(confirmations) == 0 {
		return nil
	}

	for _, confirmation := range confirmations {
		switch confirmation.Type {
		case auth.NoneGuardType:
			return nil

		case auth.DeviceCodeGuardType:
			if authenticator == nil {
				return eris.New("steam guard requires a mobile authenticator code")
			}
			return o.submitCodes(ctx, session, confirmation.Type, func(previousCodeWasIncorrect bool) (string, error) {
				return authenticator.GetDeviceCode(ctx, previousCodeWasIncorrect)
			})

		case auth.EmailCodeGuardType:
			if authenticator == nil {
				return eris.New("steam guard requires a code sent by email")
			}
			return o.submitCodes(ctx, session, confirmation.Type, func(previousCodeWasIncorrect bool) (string, error) {
				return authenticator.GetEmailCode(ctx, confirmation.Message, previousCodeWasIncorrect)
			})

		case auth.DeviceConfirmationGuardType:
			if authenticator == nil {
				continue
			}
			accepted, err := authenticator.AcceptDeviceConfirmation(ctx)
			if err != nil {
				return eris.Wrap(err, "device confirmation")
			}
			if accepted {
				o.logger.Info().Msg("waiting for the login to be approved in the steam mobile app")
				return nil
			}

		case auth.EmailConfirmationGuardType:
			o.logger.Info().Str("email", confirmation.Message).Msg("waiting for the login to be approved by email")
			return nil
		}
	}

	return eris.Errorf("none of the allowed confirmations %v can be completed", confirmationTypes(confirmations))
}

func (o *Orchestrator) submitCodes(
	ctx context.Context,
	session AuthSession,
	codeType auth.GuardType,
	nextCode func(previousCodeWasIncorrect bool) (string, error),
) error {
	for attempt := 0; attempt < o.options.MaxCodeAttempts; attempt++ {
		code, err := nextCode(attempt > 0)
		if err != nil {
			return eris.Wrapf(err, "couldn't get %v", codeType)
		}

		err = session.SubmitCode(ctx, code, codeType)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrIncorrectCode) {
			return eris.Wrapf(err, "couldn't submit %v", codeType)
		}
		o.logger.Warn().Int("attempt", attempt+1).Stringer("type", codeType).Msg("steam guard code rejected")
	}

	return eris.Errorf("%v rejected %d times", codeType, o.options.MaxCodeAttempts)
}

func pollForToken(ctx context.Context, session AuthSession) (PollResult, error) {
	interval := session.PollInterval()
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := session.Poll(ctx)
		if err != nil {
			return PollResult{}, eris.Wrap(err, "couldn't poll auth session")
		}
		if result.RefreshToken != "" {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return PollResult{}, eris.Wrap(ctx.Err(), "login was not approved in time")
		case <-ticker.C:
		}
	}
}

func confirmationTypes(confirmations []Confirmation) []string {
	names := make([]string, len(confirmations))
	for i, confirmation := range confirmations {
		names[i] = confirmation.Type.String()
	}
	return names
}
