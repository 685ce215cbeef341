// Package relay talks to the shared relay server that brokers handle
// registration and epoch publication between devices. The relay is an
// untrusted convenience: everything submitted is signed, and nothing
// local depends on its availability.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gnsd/internal/domain"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.RelayClient = (*Client)(nil)

func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

func (c *Client) IsHandleAvailable(ctx context.Context, handle string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	path := "/api/handles/" + url.PathEscape(handle) + "/availability"
	if err := c.get(ctx, path, &out); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// An unregistered handle is available.
			return true, nil
		}
		return false, err
	}
	return out.Available, nil
}

func (c *Client) SubmitReservation(ctx context.Context, reservation domain.Reservation) error {
	err := c.post(ctx, "/api/handles/reserve", reservation, nil)
	if errors.Is(err, errConflict) {
		return domain.ErrHandleTaken
	}
	return err
}

func (c *Client) SubmitClaim(ctx context.Context, claim domain.HandleClaim) error {
	err := c.post(ctx, "/api/handles/claim", claim, nil)
	if errors.Is(err, errConflict) {
		return domain.ErrHandleTaken
	}
	return err
}

func (c *Client) SubmitRelease(ctx context.Context, release domain.Release) error {
	return c.post(ctx, "/api/handles/release", release, nil)
}

func (c *Client) PublishEpoch(ctx context.Context, epoch domain.SignedEpoch) error {
	err := c.post(ctx, "/api/epochs", epoch, nil)
	if errors.Is(err, errConflict) {
		// The relay already has this epoch hash. Publication is
		// idempotent, so a replayed submit is success.
		return nil
	}
	return err
}

func (c *Client) FetchEpochs(ctx context.Context, identityPublicKey string) ([]domain.Epoch, error) {
	var out struct {
		Epochs []domain.Epoch `json:"epochs"`
	}
	path := "/api/epochs?identity=" + url.QueryEscape(identityPublicKey)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Epochs, nil
}

func (c *Client) PublishRecord(ctx context.Context, record domain.SignedRecord) error {
	return c.post(ctx, "/api/identities", record, nil)
}

var errConflict = errors.New("relay: conflict")

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: no relay URL configured", domain.ErrRelayUnavailable)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("relay request failed",
			"method", req.Method, "path", req.URL.Path, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrRelayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrRelayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return errConflict
	case resp.StatusCode >= 500:
		c.logger.Warn("relay server error",
			"method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", domain.ErrRelayUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("relay rejected request: status %d: %s",
			resp.StatusCode, truncate(body, 200))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("relay response decode: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
