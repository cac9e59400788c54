package twofactor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/escrow-tf/trackmmr/api"
	"github.com/rotisserie/eris"
)

// Client tracks the offset between the local clock and steam's, which Steam Guard
// codes are computed against.
type Client struct {
	mu        sync.Mutex
	aligned   bool
	timeDiff  time.Duration
	transport api.Transport
	now       func() time.Time
}

func NewClient(transport api.Transport) *Client {
	return &Client{
		transport: transport,
		now:       time.Now,
	}
}

func (c *Client) SteamTime() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.aligned {
		return time.Time{}, eris.New("AlignTime must be called before SteamTime can be retrieved")
	}
	return c.now().UTC().Add(c.timeDiff), nil
}

func (c *Client) AlignTime(ctx context.Context) error {
	unixNow := c.now().Unix()
	timeResponse, err := c.QueryTime(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeDiff = time.Second * time.Duration(timeResponse.Response.ServerTime-unixNow)
	c.aligned = true
	return nil
}

type QueryTimeRequest struct{}

func (q QueryTimeRequest) Retryable() bool {
	return true
}

func (q QueryTimeRequest) CacheTTL() time.Duration {
	return 0
}

func (q QueryTimeRequest) RequiresApiKey() bool {
	return false
}

func (q QueryTimeRequest) Method() string {
	return http.MethodPost
}

func (q QueryTimeRequest) Url() string {
	return fmt.Sprintf("%s/ITwoFactorService/QueryTime/v0001", api.BaseURL)
}

func (q QueryTimeRequest) Values() (url.Values, error) {
	return url.Values{
		"steamid": []string{"0"},
	}, nil
}

type QueryTimeResponse struct {
	Response struct {
		ServerTime int64 `json:"server_time,string"`
	} `json:"response"`
}

func (c *Client) QueryTime(ctx context.Context) (*QueryTimeResponse, error) {
	var response QueryTimeResponse
	if err := c.transport.Send(ctx, QueryTimeRequest{}, &response); err != nil {
		return nil, err
	}
	return &response, nil
}
