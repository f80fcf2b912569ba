package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"uw-workbench/internal/common/config"
	"uw-workbench/internal/common/errors"
	"uw-workbench/internal/common/logger"
	"uw-workbench/internal/common/metrics"
)

// Client executes composite calls against the carrier. Authentication is
// resolved per request: a static bearer token wins, then HTTP basic, then a
// client-credentials token fetched from the token endpoint and cached until
// shortly before expiry.
type Client struct {
	baseURL           string
	compositeEndpoint string
	username          string
	password          string
	bearerToken       string
	tokenURL          string
	clientID          string
	clientSecret      string
	tokenBuffer       time.Duration
	httpClient        *http.Client
	logger            logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.CarrierConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		compositeEndpoint: cfg.CompositeEndpoint,
		username:          cfg.Username,
		password:          cfg.Password,
		bearerToken:       cfg.BearerToken,
		tokenURL:          cfg.TokenURL,
		clientID:          cfg.ClientID,
		clientSecret:      cfg.ClientSecret,
		tokenBuffer:       time.Duration(cfg.TokenBuffer) * time.Second,
		httpClient: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
		logger: log,
	}
}

// Execute posts a composite request and returns the positionally aligned
// responses. Network failures come back as *errors.TransportError, non-2xx
// statuses as *errors.APIError.
func (c *Client) Execute(ctx context.Context, req *CompositeRequest) (*CompositeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal composite request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.compositeEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create composite request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if err := c.authorize(ctx, httpReq); err != nil {
		return nil, err
	}

	c.logger.Debug("Sending composite request", map[string]interface{}{
		"steps":    len(req.Requests),
		"endpoint": c.compositeEndpoint,
	})

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.CarrierRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, errors.NewTransportError("composite", isTimeout(err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.CarrierRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, errors.NewTransportError("composite", isTimeout(err), err)
	}

	metrics.CarrierRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.NewAPIError(resp.StatusCode, string(respBody))
	}

	var composite CompositeResponse
	if err := json.Unmarshal(respBody, &composite); err != nil {
		return nil, errors.NewParseError("composite response", err)
	}

	return &composite, nil
}

// Ping verifies connectivity using a lightweight lookup endpoint.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/account/v1/account-organization-types", nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")
	if err := c.authorize(ctx, httpReq); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.NewTransportError("ping", isTimeout(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return errors.NewAPIError(resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	switch {
	case c.bearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	case c.tokenURL != "":
		token, err := c.getAccessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// getAccessToken returns a cached client-credentials token, refreshing it
// when it is within tokenBuffer of expiry.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-c.tokenBuffer)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewTransportError("token", isTimeout(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.NewCarrierAuthError(fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", errors.NewCarrierAuthError(fmt.Sprintf("failed to decode token response: %v", err))
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	c.logger.Info("Refreshed carrier access token", map[string]interface{}{
		"expiresIn": tokenResp.ExpiresIn,
	})

	return c.accessToken, nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}
