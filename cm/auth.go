package cm

import (
	"context"
	"fmt"
	"time"

	"github.com/escrow-tf/trackmmr"
	"github.com/escrow-tf/trackmmr/api/auth"
	"github.com/escrow-tf/trackmmr/steamid"
	"github.com/escrow-tf/trackmmr/steamlang"
	"github.com/rotisserie/eris"
)

// authService runs IAuthenticationService logins whose refresh tokens a CM accepts.
type authService struct {
	client     auth.Api
	deviceName string
}

func (s authService) BeginAuthSession(ctx context.Context, username, password string) (trackmmr.AuthSession, error) {
	encryptedPassword, err := s.client.EncryptAccountPassword(ctx, username, password)
	if err != nil {
		return nil, eris.Wrap(err, "EncryptAccountPassword failed")
	}

	response, err := s.client.StartSessionWithCredentials(ctx, username, encryptedPassword, auth.ClientDeviceDetails(s.deviceName))
	if err != nil {
		return nil, eris.Wrap(err, "StartSessionWithCredentials failed")
	}

	steamID, err := response.SessionSteamID()
	if err != nil {
		return nil, err
	}

	confirmations := make([]trackmmr.Confirmation, len(response.Response.AllowedConfirmations))
	for i, allowed := range response.Response.AllowedConfirmations {
		confirmations[i] = trackmmr.Confirmation{
			Type:    allowed.ConfirmationType,
			Message: allowed.AssociatedMessage,
		}
	}

	return &authSession{
		client:        s.client,
		clientID:      response.Response.ClientId,
		requestID:     response.Response.RequestId,
		steamID:       steamID,
		interval:      time.Duration(response.Response.Interval * float64(time.Second)),
		confirmations: confirmations,
	}, nil
}

type authSession struct {
	client        auth.Api
	clientID      string
	requestID     string
	steamID       steamid.SteamID
	interval      time.Duration
	confirmations []trackmmr.Confirmation
}

func (s *authSession) Confirmations() []trackmmr.Confirmation {
	return s.confirmations
}

func (s *authSession) SubmitCode(ctx context.Context, code string, codeType auth.GuardType) error {
	err := s.client.SubmitSteamGuardCode(ctx, s.clientID, s.steamID, code, codeType)
	if err != nil && steamlang.ResultOf(err).IsCodeRejection() {
		return fmt.Errorf("%w: %v", trackmmr.ErrIncorrectCode, err)
	}
	return err
}

func (s *authSession) Poll(ctx context.Context) (trackmmr.PollResult, error) {
	response, err := s.client.PollSessionStatus(ctx, s.clientID, s.requestID)
	if err != nil {
		return trackmmr.PollResult{}, err
	}

	// steam may move the session to a new client id mid login
	if response.Response.NewClientID != "" {
		s.clientID = response.Response.NewClientID
	}

	return trackmmr.PollResult{
		AccountName:  response.Response.AccountName,
		RefreshToken: response.Response.RefreshToken,
	}, nil
}

func (s *authSession) PollInterval() time.Duration {
	return s.interval
}
