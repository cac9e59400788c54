package trackmmr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/escrow-tf/trackmmr/gc"
	"github.com/escrow-tf/trackmmr/internal/protofield"
	"github.com/escrow-tf/trackmmr/steamid"
	"github.com/escrow-tf/trackmmr/steamlang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testAccountID = 22202

// fakeTransport replays scripted events. Hooks run on the orchestrator goroutine.
type fakeTransport struct {
	mu          sync.Mutex
	events      chan Event
	sent        []Message
	connects    int
	disconnects int
	auth        AuthService

	onConnect func(t *fakeTransport, attempt int) error
	onSend    func(t *fakeTransport, msg Message)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan Event, 32)}
}

func (t *fakeTransport) Connect(context.Context) error {
	t.mu.Lock()
	t.connects++
	attempt := t.connects
	t.mu.Unlock()

	if t.onConnect != nil {
		return t.onConnect(t, attempt)
	}
	t.emit(Event{Kind: ConnectedEvent})
	return nil
}

func (t *fakeTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnects++
	return nil
}

func (t *fakeTransport) Send(_ context.Context, msg Message) error {
	t.mu.Lock()
	t.sent = append(t.sent, msg)
	t.mu.Unlock()

	if t.onSend != nil {
		t.onSend(t, msg)
	}
	return nil
}

func (t *fakeTransport) Events() <-chan Event {
	return t.events
}

func (t *fakeTransport) Authentication() AuthService {
	return t.auth
}

func (t *fakeTransport) emit(event Event) {
	t.events <- event
}

func (t *fakeTransport) sentMessages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

type memoryCredentials struct {
	mu    sync.Mutex
	saved []Credentials
}

func (m *memoryCredentials) Load(context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return Credentials{}, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memoryCredentials) Save(_ context.Context, credentials Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, credentials)
	return nil
}

func testOptions() Options {
	return Options{
		Location:           time.UTC,
		LaunchDelay:        5 * time.Millisecond,
		ReconnectDelay:     5 * time.Millisecond,
		ConnectTimeout:     time.Second,
		AuthTimeout:        time.Second,
		LogonTimeout:       time.Second,
		CoordinatorTimeout: time.Second,
		HistoryTimeout:     time.Second,
	}
}

func historyPayload(requestID uint64, matches ...gc.Match) []byte {
	var payload []byte
	for _, match := range matches {
		var b []byte
		b = protofield.AppendVarint(b, 1, match.MatchID)
		b = protofield.AppendVarint(b, 2, uint64(match.StartTime))
		b = protofield.AppendVarint(b, 3, uint64(match.HeroID))
		b = protofield.AppendBool(b, 4, match.Winner)
		b = protofield.AppendVarint(b, 6, uint64(int64(match.RankChange)))
		b = protofield.AppendVarint(b, 7, uint64(match.PreviousRank))
		payload = protofield.AppendBytes(payload, 1, b)
	}
	return protofield.AppendVarint(payload, 2, requestID)
}

func requestIDOf(t *testing.T, payload []byte) uint64 {
	var requestID uint64
	err := protofield.Range(payload, func(field protofield.Field) error {
		if field.Number == 5 {
			requestID = field.Varint
		}
		return nil
	})
	require.NoError(t, err)
	return requestID
}

// coordinator answers logon, hello and history requests the way steam does.
func coordinator(t *testing.T, matches ...gc.Match) func(*fakeTransport, Message) {
	return func(transport *fakeTransport, msg Message) {
		switch m := msg.(type) {
		case LogOnMessage:
			transport.emit(Event{Kind: LogonResultEvent, Result: steamlang.OKResult, SteamID: steamid.NewIndividual(testAccountID)})
		case CoordinatorMessage:
			switch m.Kind {
			case gc.ClientHello:
				transport.emit(Event{Kind: CoordinatorMessageEvent, Coordinator: CoordinatorMessage{AppID: gc.DotaAppID, Kind: gc.ClientWelcome}})
			case gc.GetPlayerMatchHistory:
				payload := historyPayload(requestIDOf(t, m.Payload), matches...)
				transport.emit(Event{Kind: CoordinatorMessageEvent, Coordinator: CoordinatorMessage{AppID: gc.DotaAppID, Kind: gc.GetPlayerMatchHistoryResponse, Payload: payload}})
			}
		}
	}
}

var tokenCredentials = Credentials{Username: "gaben", RefreshToken: "refresh-token"}

func TestFetchWithRefreshToken(t *testing.T) {
	transport := newFakeTransport()
	transport.auth = &fakeAuthService{t: t}
	transport.onSend = coordinator(t,
		gc.Match{MatchID: 2, StartTime: 1700000100, HeroID: 14, Winner: true, PreviousRank: 6000, RankChange: 25},
		gc.Match{MatchID: 1, StartTime: 1700000000, HeroID: 1},
	)
	store := &memoryCredentials{}

	orchestrator := NewOrchestrator(transport, store, zerolog.Nop(), testOptions())
	records, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)
	require.NoError(t, err)

	require.Equal(t, []RatingRecord{{
		Timestamp:    time.Unix(1700000100, 0).UTC(),
		MatchID:      2,
		Rating:       6025,
		RatingChange: 25,
		HeroID:       14,
		Won:          true,
	}}, records)

	require.Equal(t, []State{
		Idle, Connecting, Authenticating, LoggedOn, LaunchingApp,
		AwaitingCoordinatorReady, RequestingHistory, Completed,
	}, orchestrator.Transitions())

	sent := transport.sentMessages()
	require.Len(t, sent, 4)
	require.Equal(t, LogOnMessage{Username: "gaben", AccessToken: "refresh-token"}, sent[0])
	require.Equal(t, GamesPlayedMessage{AppIDs: []uint32{gc.DotaAppID}}, sent[1])
	require.Equal(t, gc.ClientHello, sent[2].(CoordinatorMessage).Kind)

	request := sent[3].(CoordinatorMessage)
	require.Equal(t, gc.GetPlayerMatchHistory, request.Kind)
	fields := map[int]uint64{}
	require.NoError(t, protofield.Range(request.Payload, func(field protofield.Field) error {
		fields[int(field.Number)] = field.Varint
		return nil
	}))
	require.Equal(t, uint64(testAccountID), fields[1])
	require.Equal(t, uint64(20), fields[3])

	require.Equal(t, 1, transport.disconnects)
	require.Empty(t, store.saved, "a valid token is not rewritten")
	require.Zero(t, transport.auth.(*fakeAuthService).begun)
}

func TestLogonRejectedClearsToken(t *testing.T) {
	transport := newFakeTransport()
	transport.onSend = func(transport *fakeTransport, msg Message) {
		if _, ok := msg.(LogOnMessage); ok {
			transport.emit(Event{Kind: LogonResultEvent, Result: steamlang.AccessDeniedResult})
		}
	}
	store := &memoryCredentials{}

	orchestrator := NewOrchestrator(transport, store, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)

	require.ErrorIs(t, err, ErrLogonFailed)
	require.True(t, ReauthRequired(err))
	require.Equal(t, []Credentials{{Username: "gaben"}}, store.saved)
	require.Equal(t, 1, transport.disconnects)
	require.Equal(t, Failed, orchestrator.State())

	for _, msg := range transport.sentMessages() {
		_, launched := msg.(GamesPlayedMessage)
		require.False(t, launched)
	}
}

func TestCoordinatorWelcomeTimeout(t *testing.T) {
	transport := newFakeTransport()
	transport.onSend = func(transport *fakeTransport, msg Message) {
		if _, ok := msg.(LogOnMessage); ok {
			transport.emit(Event{Kind: LogonResultEvent, Result: steamlang.OKResult, SteamID: steamid.NewIndividual(testAccountID)})
		}
	}

	options := testOptions()
	options.CoordinatorTimeout = 20 * time.Millisecond
	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), options)
	_, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)

	require.ErrorIs(t, err, ErrCoordinatorUnreachable)
	require.False(t, ReauthRequired(err))
	require.Equal(t, 1, transport.disconnects)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, AwaitingCoordinatorReady, fetchErr.State)
}

func TestDisconnectBeforeLogonReconnects(t *testing.T) {
	transport := newFakeTransport()
	transport.onConnect = func(transport *fakeTransport, attempt int) error {
		transport.emit(Event{Kind: ConnectedEvent})
		if attempt == 1 {
			transport.emit(Event{Kind: DisconnectedEvent})
		}
		return nil
	}
	respond := coordinator(t, gc.Match{MatchID: 9, PreviousRank: 3000, RankChange: -20})
	transport.onSend = func(ft *fakeTransport, msg Message) {
		ft.mu.Lock()
		attempt := ft.connects
		ft.mu.Unlock()
		if _, ok := msg.(LogOnMessage); ok && attempt == 1 {
			return
		}
		respond(ft, msg)
	}

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	records, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 2980, records[0].Rating)

	require.Equal(t, 2, transport.connects)
	require.Equal(t, 1, transport.disconnects)
	require.Equal(t, []State{
		Idle, Connecting, Authenticating, Connecting, Authenticating, LoggedOn, LaunchingApp,
		AwaitingCoordinatorReady, RequestingHistory, Completed,
	}, orchestrator.Transitions())
}

func TestDisconnectAfterLogonIsTerminal(t *testing.T) {
	transport := newFakeTransport()
	transport.onSend = func(transport *fakeTransport, msg Message) {
		switch msg.(type) {
		case LogOnMessage:
			transport.emit(Event{Kind: LogonResultEvent, Result: steamlang.OKResult, SteamID: steamid.NewIndividual(testAccountID)})
		case GamesPlayedMessage:
			transport.emit(Event{Kind: DisconnectedEvent})
		}
	}

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)

	require.ErrorIs(t, err, ErrCoordinatorUnreachable)
	require.Equal(t, 1, transport.connects)
	require.Equal(t, 1, transport.disconnects)
	require.NotContains(t, orchestrator.Transitions()[3:], Connecting)
}

func TestDisconnectWhileRequestingHistory(t *testing.T) {
	transport := newFakeTransport()
	respond := coordinator(t)
	transport.onSend = func(ft *fakeTransport, msg Message) {
		if m, ok := msg.(CoordinatorMessage); ok && m.Kind == gc.GetPlayerMatchHistory {
			ft.emit(Event{Kind: DisconnectedEvent})
			return
		}
		respond(ft, msg)
	}

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)
	require.ErrorIs(t, err, ErrHistoryRequestFailed)
	require.Equal(t, 1, transport.connects)
}

func TestReconnectLimit(t *testing.T) {
	transport := newFakeTransport()
	transport.onConnect = func(*fakeTransport, int) error {
		return errors.New("dial tcp: connection refused")
	}

	options := testOptions()
	options.MaxReconnects = 2
	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), options)
	_, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)

	require.ErrorIs(t, err, ErrTransportConnectFailed)
	require.Equal(t, 3, transport.connects)
	require.Equal(t, 1, transport.disconnects)
}

func TestMalformedHistoryResponse(t *testing.T) {
	transport := newFakeTransport()
	respond := coordinator(t)
	transport.onSend = func(ft *fakeTransport, msg Message) {
		if m, ok := msg.(CoordinatorMessage); ok && m.Kind == gc.GetPlayerMatchHistory {
			ft.emit(Event{Kind: CoordinatorMessageEvent, Coordinator: CoordinatorMessage{
				AppID:   gc.DotaAppID,
				Kind:    gc.GetPlayerMatchHistoryResponse,
				Payload: []byte{0x0a, 0x09, 0x08},
			}})
			return
		}
		respond(ft, msg)
	}

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.Equal(t, 1, transport.disconnects)
}

func TestCoordinatorMessageBeforeLogonIgnored(t *testing.T) {
	transport := newFakeTransport()
	respond := coordinator(t, gc.Match{MatchID: 4, PreviousRank: 10, RankChange: 1})
	transport.onConnect = func(ft *fakeTransport, _ int) error {
		ft.emit(Event{Kind: ConnectedEvent})
		ft.emit(Event{Kind: CoordinatorMessageEvent, Coordinator: CoordinatorMessage{AppID: gc.DotaAppID, Kind: gc.ClientWelcome}})
		return nil
	}
	transport.onSend = respond

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	records, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// the early welcome must not have triggered a history request before the hello
	sent := transport.sentMessages()
	require.IsType(t, LogOnMessage{}, sent[0])
	require.IsType(t, GamesPlayedMessage{}, sent[1])
	require.Equal(t, gc.ClientHello, sent[2].(CoordinatorMessage).Kind)
}

func TestFetchRequiresSecret(t *testing.T) {
	transport := newFakeTransport()
	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())

	_, err := orchestrator.FetchRatingHistory(context.Background(), Credentials{Username: "gaben"}, nil)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	require.Zero(t, transport.connects)
}

func TestOrchestratorRunsOnce(t *testing.T) {
	transport := newFakeTransport()
	transport.onSend = coordinator(t)
	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())

	records, err := orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)
	require.NoError(t, err)
	require.Empty(t, records)

	_, err = orchestrator.FetchRatingHistory(context.Background(), tokenCredentials, nil)
	require.ErrorIs(t, err, ErrOrchestratorUsed)
	require.Equal(t, 1, transport.connects)
}

func TestFetchCancelled(t *testing.T) {
	transport := newFakeTransport()
	transport.onConnect = func(*fakeTransport, int) error { return nil }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	orchestrator := NewOrchestrator(transport, &memoryCredentials{}, zerolog.Nop(), testOptions())
	_, err := orchestrator.FetchRatingHistory(ctx, tokenCredentials, nil)
	require.ErrorIs(t, err, ErrTransportConnectFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, transport.disconnects)
}

func TestStateTransitionTable(t *testing.T) {
	require.True(t, canTransition(Authenticating, Connecting))
	require.False(t, canTransition(LoggedOn, Connecting))
	require.False(t, canTransition(Completed, Failed))
	require.False(t, canTransition(Idle, LoggedOn))
	require.Equal(t, "AwaitingCoordinatorReady", AwaitingCoordinatorReady.String())
}
