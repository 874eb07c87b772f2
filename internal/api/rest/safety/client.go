package safety

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oshokin/sos-button/internal/domain/alert"
)

const (
	alertsPath           = "/api/alerts"
	settingsPath         = "/api/settings"
	contactsPath         = "/api/contacts"
	emergencyNumbersPath = "/api/emergency-numbers"
	healthPath           = "/api/health"

	// requestIDHeader correlates a submission with the local journal.
	requestIDHeader = "X-Request-ID"

	// DefaultRegion selects the emergency number table.
	DefaultRegion = "india"

	// defaultCallTimeout bounds calls when no timeout option is given.
	defaultCallTimeout = 10 * time.Second
)

var (
	// errBaseURLRequired is returned when the API base URL is missing.
	errBaseURLRequired = errors.New("api base url must be provided")
	// errRequestRequired is returned when SubmitAlert gets a nil request.
	errRequestRequired = errors.New("alert request must be provided")
	// ErrRegionNotFound is returned when the API has no numbers for the region.
	ErrRegionNotFound = errors.New("no emergency numbers for region")
)

// APIError is a non-2xx answer from the safety API.
type APIError struct {
	// StatusCode is the HTTP status.
	StatusCode int `json:"-"`
	// Detail is the server explanation, if any.
	Detail string `json:"detail"`
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("safety api: status %d", e.StatusCode)
	}

	return fmt.Sprintf("safety api: status %d: %s", e.StatusCode, e.Detail)
}

// Health is the /api/health answer.
type Health struct {
	// Status is "healthy" when the API is up.
	Status string `json:"status"`
	// Timestamp is the server time.
	Timestamp string `json:"timestamp"`
}

// Client wraps the safety REST API.
type Client struct {
	// http is the underlying resty client.
	http *resty.Client
	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for API calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithToken attaches an opaque bearer token to every call.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.http.SetAuthToken(token)
		}
	}
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}

	client := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Accept", "application/json"),
		callTimeout: defaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// SubmitAlert posts one alert. It is never retried here: a second request
// would notify the user's contacts a second time.
func (c *Client) SubmitAlert(ctx context.Context, requestID string, req *alert.AlertRequest) (*alert.Ack, error) {
	if req == nil {
		return nil, errRequestRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var ack alert.Ack

	request := c.http.R().
		SetContext(callCtx).
		SetBody(req).
		SetResult(&ack).
		SetError(new(APIError))

	if requestID != "" {
		request.SetHeader(requestIDHeader, requestID)
	}

	response, err := request.Post(alertsPath)
	if err = responseError(response, err); err != nil {
		return nil, fmt.Errorf("submit alert: %w", err)
	}

	return &ack, nil
}

// GetSettings reads the user settings.
func (c *Client) GetSettings(ctx context.Context) (*alert.Settings, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var settings alert.Settings

	response, err := c.http.R().
		SetContext(callCtx).
		SetResult(&settings).
		SetError(new(APIError)).
		Get(settingsPath)
	if err = responseError(response, err); err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	return &settings, nil
}

// Contacts lists the user's emergency contacts.
func (c *Client) Contacts(ctx context.Context) ([]*alert.Contact, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var contacts []*alert.Contact

	response, err := c.http.R().
		SetContext(callCtx).
		SetResult(&contacts).
		SetError(new(APIError)).
		Get(contactsPath)
	if err = responseError(response, err); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	return contacts, nil
}

// Alerts lists the alerts the server holds for the user, newest first.
func (c *Client) Alerts(ctx context.Context) ([]*alert.RemoteAlert, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var alerts []*alert.RemoteAlert

	response, err := c.http.R().
		SetContext(callCtx).
		SetResult(&alerts).
		SetError(new(APIError)).
		Get(alertsPath)
	if err = responseError(response, err); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	return alerts, nil
}

// EmergencyNumbers fetches the emergency numbers for region.
func (c *Client) EmergencyNumbers(ctx context.Context, region string) (alert.EmergencyNumbers, error) {
	if region == "" {
		region = DefaultRegion
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var byRegion map[string]alert.EmergencyNumbers

	response, err := c.http.R().
		SetContext(callCtx).
		SetResult(&byRegion).
		SetError(new(APIError)).
		Get(emergencyNumbersPath)
	if err = responseError(response, err); err != nil {
		return nil, fmt.Errorf("get emergency numbers: %w", err)
	}

	numbers, ok := byRegion[strings.ToLower(region)]
	if !ok || len(numbers) == 0 {
		return nil, fmt.Errorf("%s: %w", region, ErrRegionNotFound)
	}

	return numbers, nil
}

// Health checks that the API is reachable.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var health Health

	response, err := c.http.R().
		SetContext(callCtx).
		SetResult(&health).
		SetError(new(APIError)).
		Get(healthPath)
	if err = responseError(response, err); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	return &health, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// responseError folds transport errors and non-2xx answers into one error.
func responseError(response *resty.Response, err error) error {
	if err != nil {
		return err
	}

	if !response.IsError() {
		return nil
	}

	apiErr, ok := response.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = new(APIError)
	}

	apiErr.StatusCode = response.StatusCode()

	return apiErr
}
