package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://jsonplaceholder.typicode.com"
	maxUserID      = 10
	maxBodySize    = 4 << 20
)

var ErrDecode = errors.New("decode upstream body")

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client whose transport emits a client span per request.
// A zero timeout leaves the invocation deadline as the only bound.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// RandomUserID picks a user id in [0, 10).
func RandomUserID() int {
	return rand.IntN(maxUserID)
}

func (c *Client) FetchUser(ctx context.Context, id int) (map[string]any, error) {
	var user map[string]any
	if err := c.getJSON(ctx, "/users/"+strconv.Itoa(id), &user); err != nil {
		return nil, fmt.Errorf("fetch user %d: %w", id, err)
	}
	return user, nil
}

func (c *Client) FetchComments(ctx context.Context) (any, error) {
	var comments any
	if err := c.getJSON(ctx, "/comments", &comments); err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}
	return comments, nil
}

// getJSON decodes the body whatever the status code; jsonplaceholder answers
// unknown ids with 404 and an empty object.
func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "upstream returned non-success status",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
