package auth

import (
	"context"

	"github.com/escrow-tf/trackmmr/steamid"
)

type Api interface {
	GetPublicRsaKey(ctx context.Context, accountName string) (PublicRsaKey, error)
	EncryptAccountPassword(ctx context.Context, accountName string, password string) (EncryptedPassword, error)
	StartSessionWithCredentials(
		ctx context.Context,
		accountName string,
		password EncryptedPassword,
		deviceDetails DeviceDetails,
	) (StartSessionResponse, error)
	SubmitSteamGuardCode(ctx context.Context, clientID string, steamID steamid.SteamID, code string, codeType GuardType) error
	PollSessionStatus(ctx context.Context, clientID string, requestID string) (PollSessionStatusResponse, error)
}

var _ Api = (*Client)(nil)
