package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/escrow-tf/trackmmr/api"
	"github.com/rotisserie/eris"
)

const WebsocketServerType = "websockets"

// serverListTTL bounds how long a CM list is reused. Steam rotates load figures far more
// often, but the endpoints themselves are stable for hours.
const serverListTTL = 30 * time.Minute

type Server struct {
	Endpoint       string  `json:"endpoint"`
	LegacyEndpoint string  `json:"legacy_endpoint"`
	Type           string  `json:"type"`
	DataCenter     string  `json:"dc"`
	Realm          string  `json:"realm"`
	Load           int     `json:"load"`
	WeightedLoad   float64 `json:"wtd_load"`
}

type GetCMListRequest struct {
	cellID uint32
}

func (r GetCMListRequest) Retryable() bool {
	return true
}

func (r GetCMListRequest) CacheTTL() time.Duration {
	return serverListTTL
}

func (r GetCMListRequest) RequiresApiKey() bool {
	return false
}

func (r GetCMListRequest) Method() string {
	return http.MethodGet
}

func (r GetCMListRequest) Url() string {
	return fmt.Sprintf("%s/ISteamDirectory/GetCMListForConnect/v1/", api.BaseURL)
}

func (r GetCMListRequest) Values() (url.Values, error) {
	values := make(url.Values)
	values.Add("cellid", strconv.FormatUint(uint64(r.cellID), 10))
	return values, nil
}

type GetCMListResponse struct {
	Response struct {
		ServerList []Server `json:"serverlist"`
		Success    bool     `json:"success"`
		Message    string   `json:"message"`
	} `json:"response"`
}

type Client struct {
	transport api.Transport
}

func NewClient(transport api.Transport) *Client {
	return &Client{transport: transport}
}

// WebsocketServers returns the websocket CMs for cellID, best weighted load first as
// ordered by steam.
func (c *Client) WebsocketServers(ctx context.Context, cellID uint32) ([]Server, error) {
	var response GetCMListResponse
	if err := c.transport.Send(ctx, GetCMListRequest{cellID: cellID}, &response); err != nil {
		return nil, eris.Wrap(err, "GetCMListForConnect failed")
	}

	if !response.Response.Success {
		return nil, eris.Errorf("GetCMListForConnect unsuccessful: %s", response.Response.Message)
	}

	servers := make([]Server, 0, len(response.Response.ServerList))
	for _, server := range response.Response.ServerList {
		if server.Type == WebsocketServerType {
			servers = append(servers, server)
		}
	}

	if len(servers) == 0 {
		return nil, eris.New("steam directory returned no websocket servers")
	}

	return servers, nil
}
