package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"contestwatch/internal/domain"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// JSONClient performs GET requests against contest APIs and decodes JSON bodies.
type JSONClient struct {
	HTTP *http.Client
}

// NewJSONClient creates a client whose requests time out after timeout.
func NewJSONClient(timeout time.Duration) *JSONClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &JSONClient{
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

// GetJSON fetches url and decodes the response into out.
// Every failure is wrapped with domain.ErrSourceUnavailable.
func (c *JSONClient) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", domain.ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", "contestwatch/1.0 (+https://github.com/contestwatch)")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to execute request: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status code %d from %s", domain.ErrSourceUnavailable, resp.StatusCode, url)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrSourceUnavailable, err)
	}
	return nil
}
