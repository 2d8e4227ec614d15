package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/systemstart/envsecrets/pkg/api"
)

const (
	acceptHeader = "application/vnd.github.v3+json"
	userAgent    = "envsecrets"
	maxErrorBody = 4096
)

// ErrRemote is wrapped by every non-success API response.
var ErrRemote = errors.New("remote call failed")

// RemoteError describes a non-2xx response.
type RemoteError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error { return ErrRemote }

// Client talks to the repository secrets endpoints of the GitHub REST API.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a client. A zero timeout uses api.DefaultRequestTimeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = api.DefaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// PublicKey fetches the key used to encrypt secrets for repository.
func (c *Client) PublicKey(ctx context.Context, repository string) (api.PublicKey, error) {
	var key api.PublicKey
	endpoint := fmt.Sprintf("%s/repos/%s/actions/secrets/public-key", c.baseURL, repository)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &key); err != nil {
		return api.PublicKey{}, fmt.Errorf("fetching public key: %w", err)
	}
	if err := key.Validate(); err != nil {
		return api.PublicKey{}, err
	}
	return key, nil
}

// PutSecret creates or updates the secret name in repository.
func (c *Client) PutSecret(ctx context.Context, repository, name string, secret api.SealedSecret) error {
	endpoint := fmt.Sprintf("%s/repos/%s/actions/secrets/%s", c.baseURL, repository, url.PathEscape(name))
	if err := c.do(ctx, http.MethodPut, endpoint, secret, nil); err != nil {
		return fmt.Errorf("upserting secret %s: %w", name, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RemoteError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
