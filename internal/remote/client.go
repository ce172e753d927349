package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Confirmation strings the upstream returns on success. Anything else is a
// semantically unexpected response and must not be treated as success.
const (
	msgUpdated      = "Updated Successfully!"
	msgInserted     = "Inserted Successfully!"
	msgLeadDeclined = "Lead Declined Successfully"
)

var (
	ErrStatus       = errors.New("upstream returned non-2xx status")
	ErrUnconfirmed  = errors.New("upstream did not confirm the operation")
	ErrUnauthorized = errors.New("upstream rejected the token")
)

// Client issues form-encoded POSTs against the marketplace API. Every call
// carries the static token field; every response goes through Normalize.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.SugaredLogger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type messageResponse struct {
	Message string `json:"Message"`
	// Some endpoints use a lower-case key.
	MessageAlt string `json:"message"`
}

func (r messageResponse) text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.MessageAlt
}

func (c *Client) postForm(ctx context.Context, method string, form url.Values) ([]byte, error) {
	form.Set("token", c.token)

	endpoint := c.baseURL + "/APIs/APIs.asmx/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body failed: %w", method, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", method, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %d: %s", method, ErrStatus, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%s: %w: %d", method, ErrStatus, resp.StatusCode)
	}
	return body, nil
}

// callConfirmed posts the form and requires the given confirmation message.
func (c *Client) callConfirmed(ctx context.Context, method string, form url.Values, want string) error {
	body, err := c.postForm(ctx, method, form)
	if err != nil {
		return err
	}

	var msg messageResponse
	if err := DecodeInto(body, &msg); err != nil {
		c.logger.Warnw("undecodable upstream response", "method", method, "body", strings.TrimSpace(string(body)))
		return fmt.Errorf("%s: %w", method, err)
	}
	if msg.text() != want {
		return fmt.Errorf("%s: %w: got %q", method, ErrUnconfirmed, msg.text())
	}
	return nil
}
