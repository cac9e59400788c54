package trackmmr

import (
	"context"
	"time"

	"github.com/escrow-tf/trackmmr/api/auth"
	"github.com/escrow-tf/trackmmr/steamid"
	"github.com/escrow-tf/trackmmr/steamlang"
)

// Transport is a connection to a Steam connection manager. Events are delivered in the order
// the connection produced them; the channel outlives individual connections.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, msg Message) error
	Events() <-chan Event
	Authentication() AuthService
}

// Message is one of LogOnMessage, GamesPlayedMessage or CoordinatorMessage.
type Message interface {
	message()
}

type LogOnMessage struct {
	Username    string
	AccessToken string
}

type GamesPlayedMessage struct {
	AppIDs []uint32
}

// CoordinatorMessage travels to or from the game coordinator of AppID. Kind excludes the
// protobuf mask.
type CoordinatorMessage struct {
	AppID   uint32
	Kind    uint32
	Payload []byte
}

func (LogOnMessage) message()       {}
func (GamesPlayedMessage) message() {}
func (CoordinatorMessage) message() {}

type EventKind int

const (
	ConnectedEvent EventKind = iota + 1
	DisconnectedEvent
	LogonResultEvent
	CoordinatorMessageEvent
)

func (k EventKind) String() string {
	switch k {
	case ConnectedEvent:
		return "connected"
	case DisconnectedEvent:
		return "disconnected"
	case LogonResultEvent:
		return "logon result"
	case CoordinatorMessageEvent:
		return "coordinator message"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	// Result and SteamID are set on LogonResultEvent.
	Result  steamlang.EResult
	SteamID steamid.SteamID
	// Coordinator is set on CoordinatorMessageEvent.
	Coordinator CoordinatorMessage
	// Err optionally explains a DisconnectedEvent.
	Err error
}

// AuthService exchanges a password for a refresh token.
type AuthService interface {
	BeginAuthSession(ctx context.Context, username, password string) (AuthSession, error)
}

type Confirmation struct {
	Type auth.GuardType
	// Message is the hint steam shows with the confirmation, the email domain for email codes.
	Message string
}

type AuthSession interface {
	// Confirmations lists what steam accepts for this session, most preferred first.
	Confirmations() []Confirmation
	// SubmitCode returns an error wrapping ErrIncorrectCode when the code was rejected.
	SubmitCode(ctx context.Context, code string, codeType auth.GuardType) error
	Poll(ctx context.Context) (PollResult, error)
	PollInterval() time.Duration
}

// PollResult has an empty RefreshToken until the session is confirmed.
type PollResult struct {
	AccountName  string
	RefreshToken string
}

// Authenticator supplies steam guard input, typically by asking the user.
type Authenticator interface {
	GetDeviceCode(ctx context.Context, previousCodeWasIncorrect bool) (string, error)
	GetEmailCode(ctx context.Context, email string, previousCodeWasIncorrect bool) (string, error)
	AcceptDeviceConfirmation(ctx context.Context) (bool, error)
}
