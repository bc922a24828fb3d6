package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-square/core"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultRequestTimeout = 20 * time.Second
	maxResponseBodyBytes  = 1 << 20

	squareVersion = "2020-02-26"

	oauthAuthorizePath = "/oauth2/authorize"
	oauthTokenPath     = "/oauth2/token"
	oauthRevokePath    = "/oauth2/revoke"
	ordersPath         = "/v2/orders"
	paymentsPath       = "/v2/payments"
	locationsPath      = "/v2/locations"

	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"

	locationStatusActive     = "ACTIVE"
	capabilityCardProcessing = "CREDIT_CARD_PROCESSING"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
	Now            func() time.Time
	BaseURLFor     func(env core.Environment) (string, error)
	Logger         glog.Logger
}

// Client talks to the Square Connect API. It is stateless; every call
// takes the tenant's resolved gateway view, so one client instance serves
// all tenants and both environments.
type Client struct {
	config     Config
	httpClient HTTPDoer
	logger     glog.Logger
}

func NewClient(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURLFor := cfg.BaseURLFor
	if baseURLFor == nil {
		baseURLFor = BaseURL
	}
	_, logger := glog.Resolve("square-gateway", nil, cfg.Logger)
	logger = glog.Ensure(logger)
	return &Client{
		config: Config{
			RequestTimeout: timeout,
			Now:            now,
			BaseURLFor:     baseURLFor,
		},
		httpClient: httpClient,
		logger:     logger,
	}
}

// BuildAuthorizationURL assembles the provider consent URL. The session
// parameter is pinned to false so the merchant always sees the login
// prompt instead of reusing a browser session for another account.
func (c *Client) BuildAuthorizationURL(env core.Environment, applicationID string, scopes []string, state string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("gateway: client is nil")
	}
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return "", fmt.Errorf("gateway: application id is required")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return "", fmt.Errorf("gateway: state is required")
	}
	base, err := c.config.BaseURLFor(env)
	if err != nil {
		return "", err
	}

	values := url.Values{}
	values.Set("client_id", applicationID)
	values.Set("response_type", "code")
	values.Set("scope", strings.Join(scopes, " "))
	values.Set("session", "false")
	values.Set("state", state)

	return base + oauthAuthorizePath + "?" + values.Encode(), nil
}

func (c *Client) ExchangeCode(ctx context.Context, gw core.Gateway, authorizationCode string) (core.TokenPair, error) {
	authorizationCode = strings.TrimSpace(authorizationCode)
	if authorizationCode == "" {
		return core.TokenPair{}, fmt.Errorf("gateway: authorization code is required: %w", core.ErrAuthExchange)
	}
	return c.obtainToken(ctx, gw, "exchange_code", obtainTokenRequest{
		ClientID:     gw.Credential.ApplicationID,
		ClientSecret: gw.Credential.ApplicationSecret,
		GrantType:    grantTypeAuthorizationCode,
		Code:         authorizationCode,
	})
}

func (c *Client) Refresh(ctx context.Context, gw core.Gateway) (core.TokenPair, error) {
	refreshToken := strings.TrimSpace(gw.Tokens.RefreshToken)
	if refreshToken == "" {
		return core.TokenPair{}, fmt.Errorf("gateway: missing refresh token for tenant %q: %w", gw.TenantID, core.ErrAuthExchange)
	}
	return c.obtainToken(ctx, gw, "refresh", obtainTokenRequest{
		ClientID:     gw.Credential.ApplicationID,
		ClientSecret: gw.Credential.ApplicationSecret,
		GrantType:    grantTypeRefreshToken,
		RefreshToken: refreshToken,
	})
}

func (c *Client) Revoke(ctx context.Context, gw core.Gateway) (bool, error) {
	accessToken := strings.TrimSpace(gw.Tokens.AccessToken)
	if accessToken == "" {
		return false, fmt.Errorf("gateway: missing access token for tenant %q: %w", gw.TenantID, core.ErrAuthExchange)
	}
	base, err := c.config.BaseURLFor(gw.Environment)
	if err != nil {
		return false, err
	}

	statusCode, body, err := c.doJSON(ctx, http.MethodPost, base+oauthRevokePath,
		clientAuthorization(gw.Credential.ApplicationSecret), revokeTokenRequest{
			ClientID:    gw.Credential.ApplicationID,
			AccessToken: accessToken,
		})
	if err != nil {
		return false, transportError("revoke", err)
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return false, exchangeError("revoke", statusCode, string(body))
	}

	response := revokeTokenResponse{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &response); err != nil {
			return false, exchangeError("revoke", statusCode, "undecodable response body")
		}
	}
	return response.Success, nil
}

func (c *Client) CreateOrder(ctx context.Context, gw core.Gateway, req core.ExternalOrderRequest) (core.ExternalOrder, error) {
	base, err := c.config.BaseURLFor(gw.Environment)
	if err != nil {
		return core.ExternalOrder{}, err
	}

	statusCode, body, err := c.doJSON(ctx, http.MethodPost, base+ordersPath,
		bearerAuthorization(gw.Tokens.AccessToken), orderRequestToWire(req))
	if err != nil {
		return core.ExternalOrder{}, transportError("create_order", err)
	}

	response := createOrderResponse{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &response); err != nil {
			return core.ExternalOrder{}, &APIError{Operation: "create_order", StatusCode: statusCode}
		}
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices || len(response.Errors) > 0 {
		return core.ExternalOrder{}, &APIError{Operation: "create_order", StatusCode: statusCode, Details: response.Errors}
	}
	if response.Order == nil {
		return core.ExternalOrder{}, fmt.Errorf("gateway: create_order returned no order: %w", core.ErrEmptyReply)
	}
	return orderFromWire(response.Order), nil
}

func (c *Client) CreatePayment(ctx context.Context, gw core.Gateway, req core.ExternalPaymentRequest) (core.ExternalPayment, error) {
	base, err := c.config.BaseURLFor(gw.Environment)
	if err != nil {
		return core.ExternalPayment{}, err
	}

	payload := createPaymentRequest{
		IdempotencyKey: req.IdempotencyKey,
		SourceID:       req.SourceID,
		AmountMoney:    moneyToWire(req.Amount),
		OrderID:        req.OrderID,
		LocationID:     req.LocationID,
	}
	if strings.TrimSpace(req.ExternalSource) != "" {
		payload.ExternalDetails = &wireExternalDetails{
			Type:   "OTHER",
			Source: req.ExternalSource,
		}
	}

	statusCode, body, err := c.doJSON(ctx, http.MethodPost, base+paymentsPath,
		bearerAuthorization(gw.Tokens.AccessToken), payload)
	if err != nil {
		return core.ExternalPayment{}, transportError("create_payment", err)
	}

	response := createPaymentResponse{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &response); err != nil {
			return core.ExternalPayment{}, &APIError{Operation: "create_payment", StatusCode: statusCode}
		}
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices || len(response.Errors) > 0 {
		return core.ExternalPayment{}, &APIError{Operation: "create_payment", StatusCode: statusCode, Details: response.Errors}
	}
	if response.Payment == nil {
		return core.ExternalPayment{}, fmt.Errorf("gateway: create_payment returned no payment: %w", core.ErrEmptyReply)
	}
	return paymentFromWire(response.Payment), nil
}

// ListActive returns only locations that are active and able to process
// card payments. Inactive or cash-only locations cannot serve submitted
// orders so they are filtered out here.
func (c *Client) ListActive(ctx context.Context, gw core.Gateway) ([]core.Location, error) {
	base, err := c.config.BaseURLFor(gw.Environment)
	if err != nil {
		return nil, err
	}

	statusCode, body, err := c.doJSON(ctx, http.MethodGet, base+locationsPath,
		bearerAuthorization(gw.Tokens.AccessToken), nil)
	if err != nil {
		return nil, transportError("list_locations", err)
	}

	response := listLocationsResponse{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, &APIError{Operation: "list_locations", StatusCode: statusCode}
		}
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices || len(response.Errors) > 0 {
		return nil, &APIError{Operation: "list_locations", StatusCode: statusCode, Details: response.Errors}
	}

	locations := make([]core.Location, 0, len(response.Locations))
	for _, wire := range response.Locations {
		if !strings.EqualFold(strings.TrimSpace(wire.Status), locationStatusActive) {
			continue
		}
		if !hasCapability(wire.Capabilities, capabilityCardProcessing) {
			continue
		}
		locations = append(locations, locationFromWire(wire))
	}
	return locations, nil
}

func (c *Client) obtainToken(ctx context.Context, gw core.Gateway, operation string, payload obtainTokenRequest) (core.TokenPair, error) {
	if c == nil || c.httpClient == nil {
		return core.TokenPair{}, fmt.Errorf("gateway: http client is not configured")
	}
	payload.ClientID = strings.TrimSpace(payload.ClientID)
	payload.ClientSecret = strings.TrimSpace(payload.ClientSecret)
	if payload.ClientID == "" || payload.ClientSecret == "" {
		return core.TokenPair{}, fmt.Errorf("gateway: application id and secret are required: %w", core.ErrAuthExchange)
	}
	base, err := c.config.BaseURLFor(gw.Environment)
	if err != nil {
		return core.TokenPair{}, err
	}

	statusCode, body, err := c.doJSON(ctx, http.MethodPost, base+oauthTokenPath,
		clientAuthorization(payload.ClientSecret), payload)
	if err != nil {
		return core.TokenPair{}, transportError(operation, err)
	}

	// The token endpoint is decoded before the status check: a response
	// carrying both tokens is honored even on a non-success status, and
	// the raw body never reaches error text.
	response := obtainTokenResponse{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &response); err != nil {
			return core.TokenPair{}, exchangeError(operation, statusCode, "undecodable response body")
		}
	}
	if errorCode := strings.TrimSpace(response.ErrorCode); errorCode != "" {
		detail := strings.TrimSpace(errorCode + " " + response.ErrorDescription)
		return core.TokenPair{}, exchangeError(operation, statusCode, detail)
	}

	accessToken := strings.TrimSpace(response.AccessToken)
	refreshToken := strings.TrimSpace(response.RefreshToken)
	if accessToken == "" || refreshToken == "" {
		return core.TokenPair{}, exchangeError(operation, statusCode, "token response missing access or refresh token")
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		c.logger.Warn("token endpoint returned tokens with a non-success status",
			"operation", operation,
			"status_code", statusCode,
		)
	}

	tokens := core.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if expiresAt := strings.TrimSpace(response.ExpiresAt); expiresAt != "" {
		if parsed, parseErr := time.Parse(time.RFC3339, expiresAt); parseErr == nil {
			value := parsed.UTC()
			tokens.ExpiresAt = &value
		}
	}
	return tokens, nil
}

func (c *Client) doJSON(ctx context.Context, method, requestURL, authorization string, payload any) (int, []byte, error) {
	if c == nil || c.httpClient == nil {
		return 0, nil, fmt.Errorf("gateway: http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx := ctx
	cancel := func() {}
	if c.config.RequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
	}
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(requestCtx, method, requestURL, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Square-Version", squareVersion)
	if strings.TrimSpace(authorization) != "" {
		request.Header.Set("Authorization", authorization)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return 0, nil, err
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return response.StatusCode, nil, fmt.Errorf("read response body: %w", readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return response.StatusCode, nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBodyBytes)
	}
	return response.StatusCode, body, nil
}

func clientAuthorization(applicationSecret string) string {
	return "Client " + strings.TrimSpace(applicationSecret)
}

func bearerAuthorization(accessToken string) string {
	return "Bearer " + strings.TrimSpace(accessToken)
}

func hasCapability(capabilities []string, capability string) bool {
	for _, candidate := range capabilities {
		if strings.EqualFold(strings.TrimSpace(candidate), capability) {
			return true
		}
	}
	return false
}

var (
	_ core.TokenExchanger = (*Client)(nil)
	_ core.OrderGateway   = (*Client)(nil)
	_ core.PaymentGateway = (*Client)(nil)
	_ core.LocationLister = (*Client)(nil)
)
