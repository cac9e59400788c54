package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/escrow-tf/trackmmr/api"
	"github.com/escrow-tf/trackmmr/steamid"
	"github.com/rotisserie/eris"
)

type Persistence int

//goland:noinspection GoUnusedConst
const (
	InvalidSessionPersistence    Persistence = -1
	EphemeralSessionPersistence  Persistence = 0
	PersistentSessionPersistence Persistence = 1
)

type PlatformType int

//goland:noinspection GoUnusedConst
const (
	UnknownPlatformType PlatformType = iota
	SteamClientPlatformType
	WebBrowserPlatformType
	MobileAppPlatformType
)

type GuardType int

//goland:noinspection GoUnusedConst
const (
	UnknownGuardType GuardType = iota
	NoneGuardType
	EmailCodeGuardType
	DeviceCodeGuardType
	DeviceConfirmationGuardType
	EmailConfirmationGuardType
	MachineTokenGuardType
	LegacyMachineAuthGuardType
)

func (g GuardType) String() string {
	switch g {
	case NoneGuardType:
		return "none"
	case EmailCodeGuardType:
		return "email code"
	case DeviceCodeGuardType:
		return "device code"
	case DeviceConfirmationGuardType:
		return "device confirmation"
	case EmailConfirmationGuardType:
		return "email confirmation"
	case MachineTokenGuardType:
		return "machine token"
	case LegacyMachineAuthGuardType:
		return "legacy machine auth"
	}
	return "unknown"
}

//goland:noinspection GoUnusedConst
const (
	MacOSUnknownOsType      int = -102
	DefaultGamingDeviceType     = 1
)

type DeviceDetails struct {
	FriendlyName     string       `json:"device_friendly_name"`
	PlatformType     PlatformType `json:"platform_type"`
	OsType           int          `json:"os_type"`
	GamingDeviceType int          `json:"gaming_device_type"`
}

// ClientDeviceDetails identifies the session as a desktop Steam client, which is the only
// platform whose refresh tokens are accepted by a CM logon.
func ClientDeviceDetails(friendlyName string) DeviceDetails {
	return DeviceDetails{
		FriendlyName:     friendlyName,
		PlatformType:     SteamClientPlatformType,
		OsType:           MacOSUnknownOsType,
		GamingDeviceType: DefaultGamingDeviceType,
	}
}

// postRequest carries the settings shared by every IAuthenticationService call.
type postRequest struct{}

func (postRequest) Retryable() bool {
	return false
}

func (postRequest) CacheTTL() time.Duration {
	return 0
}

func (postRequest) RequiresApiKey() bool {
	return false
}

func (postRequest) Method() string {
	return http.MethodPost
}

type GetRsaKeyRequest struct {
	accountName string
}

func (g GetRsaKeyRequest) Retryable() bool {
	return true
}

func (g GetRsaKeyRequest) CacheTTL() time.Duration {
	return 0
}

func (g GetRsaKeyRequest) RequiresApiKey() bool {
	return false
}

func (g GetRsaKeyRequest) Method() string {
	return http.MethodGet
}

func (g GetRsaKeyRequest) Values() (url.Values, error) {
	values := make(url.Values)
	values.Add("account_name", g.accountName)
	return values, nil
}

func (g GetRsaKeyRequest) Url() string {
	return fmt.Sprintf("%v/IAuthenticationService/GetPasswordRSAPublicKey/v1/", api.BaseURL)
}

type PublicRsaKey struct {
	PublicKey rsa.PublicKey
	Timestamp string
}

type GetRsaKeyResponse struct {
	Response struct {
		PublicKeyMod string `json:"publickey_mod"`
		PublicKeyExp string `json:"publickey_exp"`
		Timestamp    string `json:"timestamp"`
	} `json:"response"`
}

func (r GetRsaKeyResponse) PublicKey() (PublicRsaKey, error) {
	exponent, err := strconv.ParseInt(r.Response.PublicKeyExp, 16, 64)
	if err != nil {
		return PublicRsaKey{}, eris.Wrap(err, "error parsing public key exponent")
	}

	modulus, ok := new(big.Int).SetString(r.Response.PublicKeyMod, 16)
	if !ok {
		return PublicRsaKey{}, eris.New("error parsing public key modulus")
	}

	return PublicRsaKey{
		PublicKey: rsa.PublicKey{
			E: int(exponent),
			N: modulus,
		},
		Timestamp: r.Response.Timestamp,
	}, nil
}

type Client struct {
	transport api.Transport
}

func NewClient(transport api.Transport) *Client {
	return &Client{transport: transport}
}

func (c Client) GetPublicRsaKey(ctx context.Context, accountName string) (PublicRsaKey, error) {
	request := GetRsaKeyRequest{accountName: accountName}
	var response GetRsaKeyResponse
	if err := c.transport.Send(ctx, request, &response); err != nil {
		return PublicRsaKey{}, err
	}

	return response.PublicKey()
}

type EncryptedPassword struct {
	Base64    string
	TimeStamp string
}

// EncryptAccountPassword
// Retrieves the RSA key for the specified accountName, and encrypts the given password using the RSA key.
func (c Client) EncryptAccountPassword(ctx context.Context, accountName string, password string) (EncryptedPassword, error) {
	publicKey, err := c.GetPublicRsaKey(ctx, accountName)
	if err != nil {
		return EncryptedPassword{}, eris.Wrap(err, "GetPublicRsaKey failed")
	}

	encryptedPassword, err := rsa.EncryptPKCS1v15(rand.Reader, &publicKey.PublicKey, []byte(password))
	if err != nil {
		return EncryptedPassword{}, eris.Wrap(err, "rsa.EncryptPKCS1v15 failed")
	}

	return EncryptedPassword{
		Base64:    base64.StdEncoding.EncodeToString(encryptedPassword),
		TimeStamp: publicKey.Timestamp,
	}, nil
}

type StartSessionRequest struct {
	postRequest
	AccountName         string
	EncryptedPassword   string
	EncryptionTimestamp string
	Persistence         Persistence
	DeviceDetails       DeviceDetails
	Language            int
	QosLevel            int
}

func (r StartSessionRequest) Values() (url.Values, error) {
	deviceDetailsBytes, err := json.Marshal(r.DeviceDetails)
	if err != nil {
		return nil, eris.Wrap(err, "json marshal failed")
	}

	values := make(url.Values)
	values.Add("account_name", r.AccountName)
	values.Add("encrypted_password", r.EncryptedPassword)
	values.Add("encryption_timestamp", r.EncryptionTimestamp)
	values.Add("remember_login", "true")
	values.Add("platform_type", strconv.Itoa(int(r.DeviceDetails.PlatformType)))
	values.Add("persistence", strconv.Itoa(int(r.Persistence)))
	values.Add("website_id", "Client")
	values.Add("device_friendly_name", r.DeviceDetails.FriendlyName)
	values.Add("language", strconv.Itoa(r.Language))
	values.Add("qos_level", strconv.Itoa(r.QosLevel))
	values.Add("device_details", string(deviceDetailsBytes))
	return values, nil
}

func (r StartSessionRequest) Url() string {
	return fmt.Sprintf("%v/IAuthenticationService/BeginAuthSessionViaCredentials/v1/", api.BaseURL)
}

type AllowedConfirmation struct {
	ConfirmationType  GuardType `json:"confirmation_type"`
	AssociatedMessage string    `json:"associated_message,omitempty"`
}

type StartSessionResponse struct {
	Response struct {
		ClientId             string                `json:"client_id"`
		RequestId            string                `json:"request_id"`
		Interval             float64               `json:"interval"`
		SteamId              string                `json:"steamid"`
		WeakToken            string                `json:"weak_token,omitempty"`
		AgreementSessionUrl  string                `json:"agreement_session_url,omitempty"`
		ExtendedErrorMessage string                `json:"extended_error_message,omitempty"`
		AllowedConfirmations []AllowedConfirmation `json:"allowed_confirmations,omitempty"`
	} `json:"response"`
}

// SessionSteamID returns the account the session belongs to. Older responses only carry
// it as the subject of the weak token.
func (r StartSessionResponse) SessionSteamID() (steamid.SteamID, error) {
	if r.Response.SteamId != "" {
		return steamid.ParseSteamID64(r.Response.SteamId)
	}

	subject, err := TokenSubject(r.Response.WeakToken)
	if err != nil {
		return steamid.SteamID{}, eris.Wrap(err, "weak token was invalid, credentials probably incorrect")
	}

	return steamid.ParseSteamID64(subject)
}

func (c Client) StartSessionWithCredentials(
	ctx context.Context,
	accountName string,
	password EncryptedPassword,
	deviceDetails DeviceDetails,
) (StartSessionResponse, error) {
	request := StartSessionRequest{
		AccountName:         accountName,
		EncryptedPassword:   password.Base64,
		EncryptionTimestamp: password.TimeStamp,
		Persistence:         PersistentSessionPersistence,
		DeviceDetails:       deviceDetails,
		Language:            0,
		QosLevel:            2,
	}
	var response StartSessionResponse
	if err := c.transport.Send(ctx, request, &response); err != nil {
		return StartSessionResponse{}, err
	}

	if response.Response.ClientId == "" {
		return StartSessionResponse{}, eris.Errorf("BeginAuthSessionViaCredentials returned no client id: %s", response.Response.ExtendedErrorMessage)
	}

	return response, nil
}

type UpdateSessionWithSteamGuardCodeRequest struct {
	postRequest
	ClientID string
	SteamID  string
	Code     string
	CodeType GuardType
}

func (r UpdateSessionWithSteamGuardCodeRequest) Values() (url.Values, error) {
	values := make(url.Values)
	values.Add("client_id", r.ClientID)
	values.Add("steamid", r.SteamID)
	values.Add("code", r.Code)
	values.Add("code_type", strconv.Itoa(int(r.CodeType)))
	return values, nil
}

func (r UpdateSessionWithSteamGuardCodeRequest) Url() string {
	return fmt.Sprintf("%v/IAuthenticationService/UpdateAuthSessionWithSteamGuardCode/v1/", api.BaseURL)
}

func (c Client) SubmitSteamGuardCode(ctx context.Context, clientID string, steamID steamid.SteamID, code string, codeType GuardType) error {
	if !steamID.IsValidIndividual() {
		return eris.Errorf("steamID is not valid individual: %v", steamID.String())
	}

	if codeType != DeviceCodeGuardType && codeType != EmailCodeGuardType {
		return eris.Errorf("%v is not a code confirmation", codeType)
	}

	request := UpdateSessionWithSteamGuardCodeRequest{
		ClientID: clientID,
		SteamID:  steamID.String(),
		Code:     code,
		CodeType: codeType,
	}
	return c.transport.Send(ctx, request, nil)
}

type PollSessionStatusRequest struct {
	postRequest
	ClientID  string
	RequestID string
}

func (r PollSessionStatusRequest) Values() (url.Values, error) {
	values := make(url.Values)
	values.Add("client_id", r.ClientID)
	values.Add("request_id", r.RequestID)
	return values, nil
}

func (r PollSessionStatusRequest) Url() string {
	return fmt.Sprintf("%v/IAuthenticationService/PollAuthSessionStatus/v1/", api.BaseURL)
}

type PollSessionStatusResponse struct {
	Response struct {
		NewClientID          string `json:"new_client_id,omitempty"`
		NewChallenge         string `json:"new_challenge,omitempty"`
		RefreshToken         string `json:"refresh_token,omitempty"`
		AccessToken          string `json:"access_token,omitempty"`
		HadRemoteInteraction bool   `json:"had_remote_interaction,omitempty"`
		AccountName          string `json:"account_name,omitempty"`
	} `json:"response"`
}

func (c Client) PollSessionStatus(ctx context.Context, clientID string, requestID string) (PollSessionStatusResponse, error) {
	request := PollSessionStatusRequest{
		ClientID:  clientID,
		RequestID: requestID,
	}
	var response PollSessionStatusResponse
	if err := c.transport.Send(ctx, request, &response); err != nil {
		return PollSessionStatusResponse{}, err
	}
	return response, nil
}
