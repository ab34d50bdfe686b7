package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errCircuitOpen = errors.New("circuit breaker open")
)

// httpClient wraps an HTTP client with retries, exponential backoff, and a
// circuit breaker so a flapping upstream degrades into a clean source failure
// instead of holding a fusion cycle hostage.
type httpClient struct {
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	baseDelay  time.Duration
}

func newHTTPClient(name string, timeout time.Duration) *httpClient {
	return &httpClient{
		client: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		maxRetries: 2,
		baseDelay:  500 * time.Millisecond,
	}
}

func (c *httpClient) get(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}

		result, err := c.breaker.Execute(func() (any, error) {
			resp, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				resp.Body.Close()
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				resp.Body.Close()
				return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= c.maxRetries {
			return nil, lastErr
		}

		delay := c.baseDelay << attempt
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
