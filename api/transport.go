package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/escrow-tf/trackmmr/steamlang"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

//goland:noinspection GoUnusedConst
const JsonContentType = "application/json"
const FormContentType = "application/x-www-form-urlencoded"

const BaseURL = "https://api.steampowered.com"

// Request describes a single steam web API call.
type Request interface {
	Retryable() bool
	CacheTTL() time.Duration
	RequiresApiKey() bool
	Method() string
	Url() string
	Values() (url.Values, error)
}

type Transport interface {
	Send(ctx context.Context, request Request, response any) error
}

type HttpTransport struct {
	webApiKey   string
	baseURL     string
	client      *http.Client
	retryClient *retryablehttp.Client
	logger      zerolog.Logger
}

type HttpTransportOptions struct {
	WebApiKey string
	// BaseURL replaces BaseURL for every request, used to point clients at a test server.
	BaseURL       string
	ResponseCache CacheAdaptor
	RetryMax      int
	Logger        zerolog.Logger
}

func NewTransport(options HttpTransportOptions) *HttpTransport {
	var roundTripper http.RoundTripper = cleanhttp.DefaultPooledTransport()
	if options.ResponseCache != nil {
		roundTripper = newCachingTransport(roundTripper, options.ResponseCache, options.Logger)
	}

	httpClient := &http.Client{
		Transport: roundTripper,
		Timeout:   30 * time.Second,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.Logger = leveledLogger{options.Logger}
	if options.RetryMax > 0 {
		retryClient.RetryMax = options.RetryMax
	}

	return &HttpTransport{
		webApiKey:   options.WebApiKey,
		baseURL:     strings.TrimSuffix(options.BaseURL, "/"),
		client:      httpClient,
		retryClient: retryClient,
		logger:      options.Logger,
	}
}

// Send sends a specialized HTTP Request to steam and decodes the JSON body into response.
func (c *HttpTransport) Send(ctx context.Context, request Request, response any) error {
	httpMethod := request.Method()

	requestValues, valuesErr := request.Values()
	if valuesErr != nil {
		return eris.Wrap(valuesErr, "couldn't encode request values")
	}

	if request.RequiresApiKey() {
		if c.webApiKey == "" {
			return eris.Errorf("%s requires a web API key", request.Url())
		}
		if requestValues == nil {
			requestValues = make(url.Values)
		}
		requestValues.Add("key", c.webApiKey)
	}

	requestUrl := request.Url()
	if c.baseURL != "" {
		requestUrl = c.baseURL + strings.TrimPrefix(requestUrl, BaseURL)
	}

	var httpBody io.Reader
	if requestValues != nil {
		if httpMethod == http.MethodGet {
			requestUrl += "?" + requestValues.Encode()
		} else {
			httpBody = strings.NewReader(requestValues.Encode())
		}
	}

	if ttl := request.CacheTTL(); ttl > 0 {
		ctx = ContextWithCachingTtl(ctx, ttl)
	}

	httpRequest, httpRequestErr := http.NewRequestWithContext(ctx, httpMethod, requestUrl, httpBody)
	if httpRequestErr != nil {
		return eris.Wrap(httpRequestErr, "couldn't build request")
	}

	httpRequest.Header.Add("Accept", JsonContentType)
	if httpMethod == http.MethodPost {
		httpRequest.Header.Add("Content-Type", FormContentType)
	}

	httpClient := c.client
	if request.Retryable() {
		httpClient = c.retryClient.StandardClient()
	}

	httpResponse, httpResponseErr := httpClient.Do(httpRequest)
	if httpResponseErr != nil {
		return eris.Wrapf(httpResponseErr, "request to Steam failed")
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("error closing steam response body")
		}
	}(httpResponse.Body)

	if err := steamlang.EnsureSuccessResponse(httpResponse); err != nil {
		return eris.Wrap(err, "steam web API returned an error status")
	}

	if err := steamlang.EnsureEResultResponse(httpResponse); err != nil {
		return err
	}

	if response == nil {
		return nil
	}

	responseBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return eris.Wrap(err, "couldn't read response")
	}

	if err := json.Unmarshal(responseBody, response); err != nil {
		return eris.Wrap(err, "couldn't unmarshal response")
	}

	return nil
}

// leveledLogger routes go-retryablehttp's retry chatter through zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
