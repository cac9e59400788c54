package trackmmr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/escrow-tf/trackmmr/api/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeAuthService struct {
	t       *testing.T
	mu      sync.Mutex
	begun   int
	session *fakeSession
}

func (s *fakeAuthService) BeginAuthSession(_ context.Context, username, password string) (AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begun++
	require.Equal(s.t, "gaben", username)
	require.Equal(s.t, "hunter2", password)
	return s.session, nil
}

type fakeSession struct {
	confirmations []Confirmation
	// rejections is how many submitted codes are refused before one is accepted.
	rejections int
	// pendingPolls is how many polls return no token.
	pendingPolls int

	mu        sync.Mutex
	submitted []string
	polls     int
}

func (s *fakeSession) Confirmations() []Confirmation {
	return s.confirmations
}

func (s *fakeSession) SubmitCode(_ context.Context, code string, _ auth.GuardType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, code)
	if len(s.submitted) <= s.rejections {
		return fmt.Errorf("%w: TwoFactorCodeMismatch", ErrIncorrectCode)
	}
	return nil
}

func (s *fakeSession) Poll(context.Context) (PollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.polls <= s.pendingPolls {
		return PollResult{}, nil
	}
	return PollResult{AccountName: "gaben", RefreshToken: "fresh-token"}, nil
}

func (s *fakeSession) PollInterval() time.Duration {
	return time.Millisecond
}

type scriptedAuthenticator struct {
	mu               sync.Mutex
	previousWasWrong []bool
	emails           []string
	acceptDevice     bool
}

func (a *scriptedAuthenticator) GetDeviceCode(_ context.Context, previousCodeWasIncorrect bool) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.previousWasWrong = append(a.previousWasWrong, previousCodeWasIncorrect)
	return fmt.Sprintf("CODE%d", len(a.previousWasWrong)), nil
}

func (a *scriptedAuthenticator) GetEmailCode(_ context.Context, email string, previousCodeWasIncorrect bool) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.emails = append(a.emails, email)
	a.previousWasWrong = append(a.previousWasWrong, previousCodeWasIncorrect)
	return "MAIL1", nil
}

func (a *scriptedAuthenticator) AcceptDeviceConfirmation(context.Context) (bool, error) {
	return a.acceptDevice, nil
}

var passwordCredentials = Credentials{Username: "gaben", Password: "hunter2"}

func TestPasswordLoginRetriesIncorrectCode(t *testing.T) {
	session := &fakeSession{
		confirmations: []Confirmation{{Type: auth.DeviceCodeGuardType}},
		rejections:    1,
		pendingPolls:  2,
	}
	transport := newFakeTransport()
	transport.auth = &fakeAuthService{t: t, session: session}
	transport.onSend = coordinator(t)
	store := &memoryCredentials{}
	authenticator := &scriptedAuthenticator{}

	orchestrator := NewOrchestrator(transport, store, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), passwordCredentials, authenticator)
	require.NoError(t, err)

	require.Equal(t, []bool{false, true}, authenticator.previousWasWrong)
	require.Equal(t, []string{"CODE1", "CODE2"}, session.submitted)
	require.Equal(t, 3, session.polls)

	require.Equal(t, []Credentials{{Username: "gaben", RefreshToken: "fresh-token"}}, store.saved)
	require.Equal(t, LogOnMessage{Username: "gaben", AccessToken: "fresh-token"}, transport.sentMessages()[0])
}

func TestPasswordLoginGivesUpAfterRepeatedRejections(t *testing.T) {
	session := &fakeSession{
		confirmations: []Confirmation{{Type: auth.DeviceCodeGuardType}},
		rejections:    10,
	}
	transport := newFakeTransport()
	transport.auth = &fakeAuthService{t: t, session: session}
	store := &memoryCredentials{}

	orchestrator := NewOrchestrator(transport, store, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), passwordCredentials, &scriptedAuthenticator{})

	require.ErrorIs(t, err, ErrAuthenticationFailed)
	require.Len(t, session.submitted, 3)
	require.Empty(t, store.saved)
	require.Equal(t, 1, transport.disconnects)
	require.Empty(t, transport.sentMessages())
}

func TestPasswordLoginWithEmailCode(t *testing.T) {
	session := &fakeSession{
		confirmations: []Confirmation{{Type: auth.EmailCodeGuardType, Message: "example.com"}},
	}
	transport := newFakeTransport()
	transport.auth = &fakeAuthService{t: t, session: session}
	transport.onSend = coordinator(t)
	authenticator := &scriptedAuthenticator{}

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), passwordCredentials, authenticator)
	require.NoError(t, err)
	require.Equal(t, []string{"example.com"}, authenticator.emails)
	require.Equal(t, []string{"MAIL1"}, session.submitted)
}

func TestDeviceConfirmationFallsBackToCode(t *testing.T) {
	session := &fakeSession{
		confirmations: []Confirmation{
			{Type: auth.DeviceConfirmationGuardType},
			{Type: auth.DeviceCodeGuardType},
		},
	}
	transport := newFakeTransport()
	transport.auth = &fakeAuthService{t: t, session: session}
	transport.onSend = coordinator(t)
	authenticator := &scriptedAuthenticator{acceptDevice: false}

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), passwordCredentials, authenticator)
	require.NoError(t, err)
	require.Equal(t, []string{"CODE1"}, session.submitted)
}

func TestDeviceConfirmationAcceptedPollsOnly(t *testing.T) {
	session := &fakeSession{
		confirmations: []Confirmation{{Type: auth.DeviceConfirmationGuardType}},
		pendingPolls:  1,
	}
	transport := newFakeTransport()
	transport.auth = &fakeAuthService{t: t, session: session}
	transport.onSend = coordinator(t)

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), passwordCredentials, &scriptedAuthenticator{acceptDevice: true})
	require.NoError(t, err)
	require.Empty(t, session.submitted)
	require.Equal(t, 2, session.polls)
}

func TestDeviceConfirmationDeclinedFails(t *testing.T) {
	session := &fakeSession{
		confirmations: []Confirmation{{Type: auth.DeviceConfirmationGuardType}},
	}
	transport := newFakeTransport()
	transport.auth = &fakeAuthService{t: t, session: session}

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), passwordCredentials, &scriptedAuthenticator{})
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	require.False(t, ReauthRequired(err))
}

// silentAuthenticator never answers and ignores its context, like a prompt nobody is watching.
type silentAuthenticator struct {
	release chan struct{}
}

func (a silentAuthenticator) GetDeviceCode(context.Context, bool) (string, error) {
	<-a.release
	return "", errors.New("released")
}

func (a silentAuthenticator) GetEmailCode(context.Context, string, bool) (string, error) {
	<-a.release
	return "", errors.New("released")
}

func (a silentAuthenticator) AcceptDeviceConfirmation(context.Context) (bool, error) {
	<-a.release
	return false, nil
}

func TestUnansweredAuthenticatorTimesOut(t *testing.T) {
	session := &fakeSession{confirmations: []Confirmation{{Type: auth.DeviceCodeGuardType}}}
	transport := newFakeTransport()
	transport.auth = &fakeAuthService{t: t, session: session}
	store := &memoryCredentials{}

	authenticator := silentAuthenticator{release: make(chan struct{})}
	t.Cleanup(func() { close(authenticator.release) })

	options := testOptions()
	options.AuthTimeout = 50 * time.Millisecond

	orchestrator := NewOrchestrator(transport, store, zerolog.Nop(), options)

	done := make(chan error, 1)
	go func() {
		_, err := orchestrator.FetchRatingHistory(context.Background(), passwordCredentials, authenticator)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrAuthenticationFailed)
		require.ErrorContains(t, err, "no authentication result within")
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch still running after AuthTimeout, state %v", orchestrator.State())
	}

	require.Equal(t, Failed, orchestrator.State())
	require.Equal(t, 1, transport.disconnects)
	require.Empty(t, store.saved)
	require.Empty(t, transport.sentMessages())
}
