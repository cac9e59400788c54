package trackmmr

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/escrow-tf/trackmmr/gc"
	"github.com/escrow-tf/trackmmr/steamid"
	"github.com/escrow-tf/trackmmr/steamlang"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

var errConnectionLost = errors.New("connection lost")

// Orchestrator runs a single fetch: connect, log on, launch the game, greet its coordinator
// and request the match history. Build a new one for every fetch.
type Orchestrator struct {
	transport       Transport
	credentialStore CredentialStore
	logger          zerolog.Logger
	options         Options

	used atomic.Bool

	mu          sync.Mutex
	state       State
	transitions []State
}

func NewOrchestrator(transport Transport, credentials CredentialStore, logger zerolog.Logger, options Options) *Orchestrator {
	return &Orchestrator{
		transport:       transport,
		credentialStore: credentials,
		logger:          logger.With().Str("component", "orchestrator").Logger(),
		options:         options.withDefaults(),
		state:           Idle,
		transitions:     []State{Idle},
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Transitions returns every state the orchestrator has been in, starting with Idle.
func (o *Orchestrator) Transitions() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.transitions...)
}

func (o *Orchestrator) enter(next State) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !canTransition(o.state, next) {
		return eris.Errorf("illegal state transition %v -> %v", o.state, next)
	}

	o.logger.Debug().Stringer("from", o.state).Stringer("to", next).Msg("state transition")
	o.state = next
	o.transitions = append(o.transitions, next)
	return nil
}

// FetchRatingHistory logs on with credentials and returns the rating records of the most
// recent matches. authenticator is only consulted when credentials carry no refresh token.
// Failures are *FetchError values.
func (o *Orchestrator) FetchRatingHistory(ctx context.Context, credentials Credentials, authenticator Authenticator) ([]RatingRecord, error) {
	if !o.used.CompareAndSwap(false, true) {
		return nil, ErrOrchestratorUsed
	}

	if !credentials.CanLogOn() {
		_ = o.enter(Failed)
		return nil, &FetchError{
			Kind: AuthenticationFailed,
			Err:  eris.New("a username with a password or refresh token is required"),
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f := &fetch{
		Orchestrator:  o,
		ctx:           ctx,
		credentials:   credentials,
		authenticator: authenticator,
		authResults:   make(chan authResult, 1),
	}
	defer f.stopTimers()

	records, err := f.run()
	if err == nil {
		return records, nil
	}

	f.shutdown()

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		fetchErr = f.fail(o.State().failureKind(), err)
	}
	if enterErr := o.enter(Failed); enterErr != nil {
		o.logger.Error().Err(enterErr).Msg("couldn't record failure")
	}
	o.logger.Warn().Err(fetchErr).Stringer("kind", fetchErr.Kind).Msg("fetch failed")
	return nil, fetchErr
}

type authResult struct {
	credentials Credentials
	err         error
}

// fetch holds the state of one FetchRatingHistory call. Only the goroutine running the
// event loop touches it.
type fetch struct {
	*Orchestrator
	ctx           context.Context
	credentials   Credentials
	authenticator Authenticator

	connected   bool
	reconnects  int
	authRunning bool
	authResults chan authResult
	steamID     steamid.SteamID
	requestID   uint64

	deadline        *time.Timer
	deadlineKind    ErrorKind
	deadlineWhat    string
	deadlineTimeout time.Duration
	reconnect       *time.Timer
	launch          *time.Timer
	// authDeadline bounds the auth sub-flow even when the authenticator ignores its context.
	authDeadline *time.Timer

	disconnected bool
	records      []RatingRecord
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (f *fetch) run() ([]RatingRecord, error) {
	if err := f.enter(Connecting); err != nil {
		return nil, err
	}
	if err := f.connect(); err != nil {
		return nil, err
	}

	events := f.transport.Events()
	for {
		select {
		case <-f.ctx.Done():
			return nil, f.fail(f.State().failureKind(), eris.Wrap(f.ctx.Err(), "fetch cancelled"))

		case event, ok := <-events:
			if !ok {
				return nil, f.fail(f.State().failureKind(), eris.New("transport closed its event stream"))
			}
			done, err := f.handle(event)
			if err != nil {
				return nil, err
			}
			if done {
				return f.records, nil
			}

		case result := <-f.authResults:
			if err := f.handleAuthResult(result); err != nil {
				return nil, err
			}

		case <-timerC(f.reconnect):
			f.reconnect = nil
			if err := f.connect(); err != nil {
				return nil, err
			}

		case <-timerC(f.launch):
			f.launch = nil
			if err := f.sendHello(); err != nil {
				return nil, err
			}

		case <-timerC(f.authDeadline):
			f.authDeadline = nil
			return nil, f.fail(AuthenticationFailed, eris.Errorf("no authentication result within %v", f.options.AuthTimeout))

		case <-timerC(f.deadline):
			f.deadline = nil
			return nil, f.fail(f.deadlineKind, eris.Errorf("no %s within %v", f.deadlineWhat, f.deadlineTimeout))
		}
	}
}

func (f *fetch) handle(event Event) (bool, error) {
	f.logger.Trace().Stringer("event", event.Kind).Stringer("state", f.State()).Msg("transport event")

	switch event.Kind {
	case ConnectedEvent:
		return false, f.onConnected()
	case DisconnectedEvent:
		return false, f.onDisconnected(event.Err)
	case LogonResultEvent:
		return false, f.onLogonResult(event)
	case CoordinatorMessageEvent:
		return f.onCoordinatorMessage(event.Coordinator)
	default:
		f.logger.Warn().Int("kind", int(event.Kind)).Msg("ignoring unknown transport event")
		return false, nil
	}
}

func (f *fetch) fail(kind ErrorKind, err error) *FetchError {
	return &FetchError{Kind: kind, State: f.State(), Err: err}
}

// shutdown disconnects the transport the first time it is called.
func (f *fetch) shutdown() {
	if f.disconnected {
		return
	}
	f.disconnected = true
	f.connected = false

	if err := f.transport.Disconnect(); err != nil {
		f.logger.Warn().Err(err).Msg("disconnect failed")
	}
}

func (f *fetch) arm(timeout time.Duration, kind ErrorKind, what string) {
	f.disarm()
	f.deadline = time.NewTimer(timeout)
	f.deadlineKind = kind
	f.deadlineWhat = what
	f.deadlineTimeout = timeout
}

func (f *fetch) disarm() {
	if f.deadline != nil {
		f.deadline.Stop()
		f.deadline = nil
	}
}

func (f *fetch) stopTimers() {
	f.disarm()
	for _, t := range []*time.Timer{f.reconnect, f.launch, f.authDeadline} {
		if t != nil {
			t.Stop()
		}
	}
}

func (f *fetch) connect() error {
	ctx, cancel := context.WithTimeout(f.ctx, f.options.ConnectTimeout)
	defer cancel()

	if err := f.transport.Connect(ctx); err != nil {
		if f.ctx.Err() != nil {
			return f.fail(TransportConnectFailed, eris.Wrap(f.ctx.Err(), "fetch cancelled while connecting"))
		}
		return f.scheduleReconnect(eris.Wrap(err, "connect failed"))
	}

	f.arm(f.options.ConnectTimeout, TransportConnectFailed, "connection")
	return nil
}

func (f *fetch) scheduleReconnect(cause error) error {
	if f.reconnects >= f.options.MaxReconnects {
		return f.fail(TransportConnectFailed, eris.Wrapf(cause, "gave up after %d reconnects", f.reconnects))
	}

	f.reconnects++
	f.logger.Warn().
		Err(cause).
		Int("attempt", f.reconnects).
		Dur("delay", f.options.ReconnectDelay).
		Msg("not logged on yet, reconnecting")
	f.reconnect = time.NewTimer(f.options.ReconnectDelay)
	return nil
}

func (f *fetch) onConnected() error {
	if f.State() != Connecting {
		f.logger.Warn().Stringer("state", f.State()).Msg("ignoring connected event")
		return nil
	}

	f.connected = true
	f.disarm()
	if err := f.enter(Authenticating); err != nil {
		return err
	}

	if f.credentials.HasRefreshToken() {
		return f.sendLogOn()
	}
	if !f.authRunning {
		f.startAuthentication()
	}
	return nil
}

func (f *fetch) onDisconnected(cause error) error {
	f.connected = false
	if cause == nil {
		cause = errConnectionLost
	}

	state := f.State()
	if state.loggedOn() {
		return f.fail(state.failureKind(), eris.Wrap(cause, "disconnected after logon"))
	}

	// a failed send may already have scheduled this
	if f.reconnect != nil {
		return nil
	}

	f.disarm()
	if state == Authenticating {
		if err := f.enter(Connecting); err != nil {
			return err
		}
	}
	return f.scheduleReconnect(cause)
}

func (f *fetch) sendLogOn() error {
	message := LogOnMessage{
		Username:    f.credentials.Username,
		AccessToken: f.credentials.RefreshToken,
	}
	if err := f.transport.Send(f.ctx, message); err != nil {
		return f.onDisconnected(eris.Wrap(err, "couldn't send logon"))
	}

	f.arm(f.options.LogonTimeout, LogonFailed, "logon result")
	return nil
}

func (f *fetch) startAuthentication() {
	f.authRunning = true
	f.authDeadline = time.NewTimer(f.options.AuthTimeout)

	service := f.transport.Authentication()
	credentials := f.credentials
	authenticator := f.authenticator
	go func() {
		ctx, cancel := context.WithTimeout(f.ctx, f.options.AuthTimeout)
		defer cancel()

		refreshed, err := f.authenticate(ctx, service, credentials, authenticator)
		f.authResults <- authResult{credentials: refreshed, err: err}
	}()
}

func (f *fetch) handleAuthResult(result authResult) error {
	f.authRunning = false
	if f.authDeadline != nil {
		f.authDeadline.Stop()
		f.authDeadline = nil
	}
	if result.err != nil {
		return f.fail(AuthenticationFailed, result.err)
	}

	f.credentials = result.credentials
	if err := f.credentialStore.Save(f.ctx, f.credentials); err != nil {
		return f.fail(AuthenticationFailed, eris.Wrap(err, "couldn't save refresh token"))
	}
	f.logger.Info().Str("username", f.credentials.Username).Msg("saved refresh token")

	if f.connected && f.State() == Authenticating {
		return f.sendLogOn()
	}
	return nil
}

func (f *fetch) onLogonResult(event Event) error {
	if f.State() != Authenticating {
		f.logger.Warn().Stringer("state", f.State()).Stringer("result", event.Result).Msg("ignoring logon result")
		return nil
	}
	f.disarm()

	if event.Result != steamlang.OKResult {
		return f.rejectLogOn(event.Result)
	}

	f.steamID = event.SteamID
	if err := f.enter(LoggedOn); err != nil {
		return err
	}
	f.logger.Info().Stringer("steamid", f.steamID).Msg("logged on")

	return f.launchApp()
}

// rejectLogOn clears the stored refresh token so the next run asks for a password again.
func (f *fetch) rejectLogOn(result steamlang.EResult) error {
	fetchErr := f.fail(LogonFailed, eris.Errorf("steam refused the logon: %v", result))
	if !f.credentials.HasRefreshToken() {
		return fetchErr
	}

	cleared := f.credentials.WithoutToken()
	if err := f.credentialStore.Save(context.WithoutCancel(f.ctx), cleared); err != nil {
		f.logger.Error().Err(err).Msg("couldn't clear the rejected refresh token")
	} else {
		f.logger.Info().Str("username", cleared.Username).Msg("cleared rejected refresh token")
	}
	f.credentials = cleared
	fetchErr.StaleToken = true
	return fetchErr
}

func (f *fetch) launchApp() error {
	if err := f.enter(LaunchingApp); err != nil {
		return err
	}

	message := GamesPlayedMessage{AppIDs: []uint32{f.options.AppID}}
	if err := f.transport.Send(f.ctx, message); err != nil {
		return f.fail(CoordinatorUnreachable, eris.Wrap(err, "couldn't announce the game launch"))
	}

	f.launch = time.NewTimer(f.options.LaunchDelay)
	return nil
}

func (f *fetch) sendHello() error {
	hello := gc.Hello{Engine: gc.Source2Engine}
	message := CoordinatorMessage{AppID: f.options.AppID, Kind: gc.ClientHello, Payload: hello.Marshal()}
	if err := f.transport.Send(f.ctx, message); err != nil {
		return f.fail(CoordinatorUnreachable, eris.Wrap(err, "couldn't send coordinator hello"))
	}

	if err := f.enter(AwaitingCoordinatorReady); err != nil {
		return err
	}
	f.arm(f.options.CoordinatorTimeout, CoordinatorUnreachable, "coordinator welcome")
	return nil
}

func (f *fetch) onCoordinatorMessage(message CoordinatorMessage) (bool, error) {
	state := f.State()
	if !state.loggedOn() {
		f.logger.Debug().Uint32("kind", message.Kind).Stringer("state", state).Msg("ignoring coordinator message before logon")
		return false, nil
	}
	if message.AppID != f.options.AppID {
		return false, nil
	}

	switch {
	case message.Kind == gc.ClientWelcome && state == AwaitingCoordinatorReady:
		return false, f.requestHistory()
	case message.Kind == gc.GetPlayerMatchHistoryResponse && state == RequestingHistory:
		return f.completeHistory(message.Payload)
	}

	f.logger.Debug().Uint32("kind", message.Kind).Stringer("state", state).Msg("ignoring coordinator message")
	return false, nil
}

func (f *fetch) requestHistory() error {
	if err := f.enter(RequestingHistory); err != nil {
		return err
	}

	f.requestID = rand.Uint64() | 1
	request := gc.MatchHistoryRequest{
		AccountID:        f.steamID.AccountId(),
		MatchesRequested: f.options.MatchesRequested,
		RequestID:        f.requestID,
	}
	message := CoordinatorMessage{AppID: f.options.AppID, Kind: gc.GetPlayerMatchHistory, Payload: request.Marshal()}
	if err := f.transport.Send(f.ctx, message); err != nil {
		return f.fail(HistoryRequestFailed, eris.Wrap(err, "couldn't send match history request"))
	}

	f.arm(f.options.HistoryTimeout, HistoryRequestFailed, "match history response")
	return nil
}

func (f *fetch) completeHistory(payload []byte) (bool, error) {
	response, err := gc.UnmarshalMatchHistoryResponse(payload)
	if err != nil {
		return false, f.fail(MalformedResponse, err)
	}
	if response.RequestID != 0 && response.RequestID != f.requestID {
		f.logger.Debug().Uint64("request_id", response.RequestID).Msg("ignoring response to another request")
		return false, nil
	}

	f.disarm()
	if err := f.enter(Completed); err != nil {
		return false, err
	}
	f.shutdown()

	f.records = MapMatchHistory(f.options.Location, rawEntries(response.Matches))
	f.logger.Info().
		Int("matches", len(response.Matches)).
		Int("records", len(f.records)).
		Msg("fetched match history")
	return true, nil
}
