package trackmmr

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	TransportConnectFailed ErrorKind = iota + 1
	AuthenticationFailed
	LogonFailed
	CoordinatorUnreachable
	HistoryRequestFailed
	MalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case TransportConnectFailed:
		return "transport connect failed"
	case AuthenticationFailed:
		return "authentication failed"
	case LogonFailed:
		return "logon failed"
	case CoordinatorUnreachable:
		return "coordinator unreachable"
	case HistoryRequestFailed:
		return "history request failed"
	case MalformedResponse:
		return "malformed response"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// FetchError is the only error FetchRatingHistory returns once a fetch has started.
type FetchError struct {
	Kind  ErrorKind
	State State
	Err   error
	// StaleToken is set when the stored refresh token was rejected and has been cleared.
	StaleToken bool
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	if e.State == Idle {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v while %v: %v", e.Kind, e.State, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches any FetchError of the same kind, so callers can compare with the Err* values.
func (e *FetchError) Is(target error) bool {
	other, ok := target.(*FetchError)
	return ok && other.Kind == e.Kind
}

var (
	ErrTransportConnectFailed = &FetchError{Kind: TransportConnectFailed}
	ErrAuthenticationFailed   = &FetchError{Kind: AuthenticationFailed}
	ErrLogonFailed            = &FetchError{Kind: LogonFailed}
	ErrCoordinatorUnreachable = &FetchError{Kind: CoordinatorUnreachable}
	ErrHistoryRequestFailed   = &FetchError{Kind: HistoryRequestFailed}
	ErrMalformedResponse      = &FetchError{Kind: MalformedResponse}
)

var (
	ErrOrchestratorUsed = errors.New("orchestrator has already run a fetch")
	// ErrIncorrectCode is wrapped by AuthSession.SubmitCode when steam rejects a guard code.
	ErrIncorrectCode = errors.New("steam guard code was not accepted")
)

// ReauthRequired reports whether err means the saved login is gone and the user has to
// authenticate with a password again.
func ReauthRequired(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.StaleToken
}
