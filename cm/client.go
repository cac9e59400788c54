// Package cm talks to a Steam connection manager over its websocket endpoint.
package cm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/escrow-tf/trackmmr"
	"github.com/escrow-tf/trackmmr/api"
	"github.com/escrow-tf/trackmmr/api/auth"
	"github.com/escrow-tf/trackmmr/api/directory"
	"github.com/escrow-tf/trackmmr/steamid"
	"github.com/escrow-tf/trackmmr/steamlang"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultHeartbeat = 9 * time.Second
	writeTimeout     = 10 * time.Second
	eventBuffer      = 256
)

var ErrNotConnected = errors.New("not connected to a CM")

// errLoggedOff ends the connection it was read from.
var errLoggedOff = errors.New("logged off by steam")

type Options struct {
	// Endpoint is the host:port of a websocket CM. When empty one is picked from the
	// steam directory, rotating through the list on every Connect.
	Endpoint   string
	CellID     uint32
	Language   string
	DeviceName string
	Dialer     *websocket.Dialer
	Logger     zerolog.Logger
}

type Client struct {
	directory *directory.Client
	auth      authService
	options   Options
	dialer    *websocket.Dialer
	logger    zerolog.Logger
	events    chan trackmmr.Event

	mu        sync.Mutex
	conn      *websocket.Conn
	stop      context.CancelFunc
	group     *errgroup.Group
	steamID   steamid.SteamID
	sessionID int32
	next      int
}

var _ trackmmr.Transport = (*Client)(nil)

func NewClient(transport api.Transport, options Options) *Client {
	dialer := options.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		}
	}
	if options.Language == "" {
		options.Language = "english"
	}
	if options.DeviceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		options.DeviceName = fmt.Sprintf("%s (trackmmr)", hostname)
	}

	logger := options.Logger.With().Str("component", "cm").Logger()
	return &Client{
		directory: directory.NewClient(transport),
		auth:      authService{client: auth.NewClient(transport), deviceName: options.DeviceName},
		options:   options,
		dialer:    dialer,
		logger:    logger,
		events:    make(chan trackmmr.Event, eventBuffer),
	}
}

func (c *Client) Events() <-chan trackmmr.Event {
	return c.events
}

func (c *Client) Authentication() trackmmr.AuthService {
	return c.auth
}

func (c *Client) emit(event trackmmr.Event) {
	select {
	case c.events <- event:
	default:
		c.logger.Warn().Stringer("event", event.Kind).Msg("event buffer full, dropping event")
	}
}

func (c *Client) endpoint(ctx context.Context) (string, error) {
	if c.options.Endpoint != "" {
		return c.options.Endpoint, nil
	}

	servers, err := c.directory.WebsocketServers(ctx, c.options.CellID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	server := servers[c.next%len(servers)]
	c.next++
	return server.Endpoint, nil
}

// Connect dials a CM and emits ConnectedEvent once the websocket is open.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if connected {
		return eris.New("already connected")
	}

	endpoint, err := c.endpoint(ctx)
	if err != nil {
		return eris.Wrap(err, "couldn't find a CM")
	}

	conn, _, err := c.dialer.DialContext(ctx, fmt.Sprintf("wss://%s/cmsocket/", endpoint), nil)
	if err != nil {
		return eris.Wrapf(err, "couldn't dial %s", endpoint)
	}

	runCtx, stop := context.WithCancel(context.Background())
	group, runCtx := errgroup.WithContext(runCtx)

	c.mu.Lock()
	c.conn = conn
	c.stop = stop
	c.group = group
	c.steamID = steamid.NewIndividual(0)
	c.sessionID = 0
	c.mu.Unlock()

	c.logger.Info().Str("endpoint", endpoint).Msg("connected")
	c.emit(trackmmr.Event{Kind: trackmmr.ConnectedEvent})

	group.Go(func() error {
		return c.read(runCtx, conn, group)
	})
	return nil
}

// Disconnect closes the current connection. It emits no DisconnectedEvent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn, stop, group := c.conn, c.stop, c.group
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	stop()
	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
	closeErr := conn.Close()

	if err := group.Wait(); err != nil {
		c.logger.Debug().Err(err).Msg("connection goroutine exited with error")
	}
	c.logger.Info().Msg("disconnected")
	return closeErr
}

// drop forgets conn if it is still current and reports whether it was.
func (c *Client) drop(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		return false
	}
	c.conn = nil
	c.stop()
	_ = conn.Close()
	return true
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn, group *errgroup.Group) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !c.drop(conn) {
				return nil
			}
			c.logger.Warn().Err(err).Msg("connection lost")
			c.emit(trackmmr.Event{Kind: trackmmr.DisconnectedEvent, Err: eris.Wrap(err, "CM connection lost")})
			return err
		}

		if messageType != websocket.BinaryMessage {
			continue
		}
		err = c.dispatch(ctx, group, data)
		if errors.Is(err, errLoggedOff) {
			if c.drop(conn) {
				c.logger.Warn().Err(err).Msg("connection closed")
				c.emit(trackmmr.Event{Kind: trackmmr.DisconnectedEvent, Err: err})
			}
			return nil
		}
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping undecodable message")
		}
	}
}

func (c *Client) dispatch(ctx context.Context, group *errgroup.Group, data []byte) error {
	wireType, rawHeader, body, err := decodeFrame(data)
	if err != nil {
		return err
	}

	msg, isProto := steamlang.MsgFromWire(wireType)
	if !isProto {
		c.logger.Trace().Stringer("emsg", msg).Msg("ignoring non-protobuf message")
		return nil
	}

	hdr, err := unmarshalHeader(rawHeader)
	if err != nil {
		return err
	}

	switch msg {
	case steamlang.EMsgMulti:
		packets, err := unpackMulti(body)
		if err != nil {
			return err
		}
		for _, packet := range packets {
			err := c.dispatch(ctx, group, packet)
			if errors.Is(err, errLoggedOff) {
				return err
			}
			if err != nil {
				c.logger.Warn().Err(err).Msg("dropping undecodable packet in multi")
			}
		}

	case steamlang.EMsgClientLogOnResponse:
		return c.onLogOnResponse(ctx, group, hdr, body)

	case steamlang.EMsgClientLoggedOff:
		result, err := unmarshalLoggedOff(body)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %v", errLoggedOff, result)

	case steamlang.EMsgClientFromGC:
		return c.onCoordinatorMessage(body)

	default:
		c.logger.Trace().Stringer("emsg", msg).Msg("ignoring message")
	}
	return nil
}

func (c *Client) onLogOnResponse(ctx context.Context, group *errgroup.Group, hdr header, body []byte) error {
	response, err := unmarshalLogonResponse(body)
	if err != nil {
		return err
	}

	steamID := steamid.FromSteamID64(hdr.SteamID)
	if response.Result == steamlang.OKResult {
		c.mu.Lock()
		c.steamID = steamID
		c.sessionID = hdr.SessionID
		c.mu.Unlock()

		interval := defaultHeartbeat
		if seconds := response.heartbeatSeconds(); seconds > 0 {
			interval = time.Duration(seconds) * time.Second
		}
		group.Go(func() error {
			return c.heartbeat(ctx, interval)
		})
	}

	c.logger.Debug().Stringer("result", response.Result).Stringer("steamid", steamID).Msg("logon response")
	c.emit(trackmmr.Event{Kind: trackmmr.LogonResultEvent, Result: response.Result, SteamID: steamID})
	return nil
}

func (c *Client) onCoordinatorMessage(body []byte) error {
	envelope, err := unmarshalGCMessage(body)
	if err != nil {
		return err
	}

	if envelope.MsgType&steamlang.ProtoMask == 0 {
		c.logger.Trace().Uint32("msgtype", envelope.MsgType).Msg("ignoring non-protobuf GC message")
		return nil
	}

	wireType, _, payload, err := decodeFrame(envelope.Payload)
	if err != nil {
		return eris.Wrap(err, "bad GC payload")
	}

	c.emit(trackmmr.Event{
		Kind: trackmmr.CoordinatorMessageEvent,
		Coordinator: trackmmr.CoordinatorMessage{
			AppID:   envelope.AppID,
			Kind:    wireType &^ steamlang.ProtoMask,
			Payload: payload,
		},
	})
	return nil
}

func (c *Client) heartbeat(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.write(ctx, steamlang.EMsgClientHeartBeat, 0, nil); err != nil {
				return eris.Wrap(err, "heartbeat failed")
			}
		}
	}
}

func (c *Client) Send(ctx context.Context, msg trackmmr.Message) error {
	switch m := msg.(type) {
	case trackmmr.LogOnMessage:
		request := logonRequest{
			AccountName: m.Username,
			AccessToken: m.AccessToken,
			Language:    c.options.Language,
			CellID:      c.options.CellID,
		}
		return c.write(ctx, steamlang.EMsgClientLogon, 0, request.marshal())

	case trackmmr.GamesPlayedMessage:
		return c.write(ctx, steamlang.EMsgClientGamesPlayed, 0, marshalGamesPlayed(m.AppIDs))

	case trackmmr.CoordinatorMessage:
		wireType := m.Kind | steamlang.ProtoMask
		envelope := gcMessage{
			AppID:   m.AppID,
			MsgType: wireType,
			Payload: encodeFrame(wireType, nil, m.Payload),
		}
		return c.write(ctx, steamlang.EMsgClientToGC, m.AppID, envelope.marshal())
	}

	return eris.Errorf("unsupported message %T", msg)
}

func (c *Client) write(ctx context.Context, msg steamlang.EMsg, routingAppID uint32, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	hdr := header{
		SteamID:      c.steamID.Uint64(),
		SessionID:    c.sessionID,
		RoutingAppID: routingAppID,
	}

	deadline := time.Now().Add(writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return eris.Wrap(err, "couldn't set write deadline")
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, encodeFrame(msg.Wire(), hdr.marshal(), body)); err != nil {
		return eris.Wrapf(err, "couldn't write %v", msg)
	}
	return nil
}
