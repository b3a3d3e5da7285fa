// Package transport provides the HTTP client shared by the remote sources.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// maxBody bounds how much of a response is read.
const maxBody = 32 << 20

// Client fetches documents on behalf of one source.
type Client struct {
	http   *http.Client
	source string
}

// New creates a client for source. A nil http client gets the default
// timeout and transport.
func New(source string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{http: hc, source: source}
}

// Get fetches url and returns the body of a 200 response.
func (c *Client) Get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "GET "+url, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", "lumea")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.APIError{
			Source:   c.source,
			Endpoint: url,
			Message:  "request failed",
			Err:      err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &errors.APIError{
			Source:     c.source,
			Endpoint:   url,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}
	return body, nil
}

// GetJSON fetches url and decodes the JSON body into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	body, err := c.Get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", url, err)
	}
	return nil
}
