package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/projectapex/sportsdata/internal/sports"
)

const defaultTimeout = 30 * time.Second

// apiClient carries the plumbing every provider client shares: a timeout
// bounded HTTP client, a politeness limiter that spaces consecutive calls
// to the same host, and structured logging.
type apiClient struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Entry
}

func newAPIClient(name string, spacing time.Duration, burst int, logger *logrus.Logger) apiClient {
	if burst < 1 {
		burst = 1
	}
	return apiClient{
		name:       name,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(spacing), burst),
		logger:     logger.WithField("provider", name),
	}
}

// getJSON performs a single GET and decodes the body into dest. Status
// codes map onto the upstream error taxonomy; retrying is the caller's
// concern, one call here is one request on the wire.
func (c *apiClient) getJSON(ctx context.Context, url string, headers map[string]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: build request: %v", sports.ErrUpstreamPersistent, c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", sports.ErrUpstreamTransient, c.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("%w: %s: decode response: %v", sports.ErrUpstreamTransient, c.name, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s returned 404 for %s", sports.ErrNoData, c.name, url)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned status %d", sports.ErrUpstreamTransient, c.name, resp.StatusCode)
	default:
		return fmt.Errorf("%w: %s returned status %d", sports.ErrUpstreamPersistent, c.name, resp.StatusCode)
	}
}
