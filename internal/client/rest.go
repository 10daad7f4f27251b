package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"portfolio-notify/pkg/circuitbreaker"
	"portfolio-notify/pkg/trace"
)

// RESTClient talks to the notification backend. Calls go through a circuit
// breaker so a dead backend fails fast instead of stalling the UI; a
// tripped breaker surfaces as an ordinary error and the store stays
// untouched, same as any other failed mutation.
type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

var _ API = (*RESTClient)(nil)

func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		cb: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold:    3,
			SuccessThreshold:    2,
			Timeout:             30 * time.Second,
			HalfOpenMaxRequests: 2,
		}),
	}
}

func (c *RESTClient) do(ctx context.Context, method, path string, out any) error {
	return c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if traceID := trace.FromContext(ctx); traceID != "" {
			req.Header.Set(trace.Header, traceID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("%s %s failed: status %d: %s", method, path, resp.StatusCode, body)
		}

		if out != nil {
			return json.NewDecoder(resp.Body).Decode(out)
		}
		return nil
	})
}

func (c *RESTClient) FetchNotifications(ctx context.Context, userID, limit, offset int) (*FetchResult, error) {
	var res FetchResult
	path := fmt.Sprintf("/notifications/user/%d?limit=%d&offset=%d", userID, limit, offset)
	if err := c.do(ctx, http.MethodGet, path, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *RESTClient) MarkRead(ctx context.Context, id, userID int) error {
	path := fmt.Sprintf("/notifications/%d/read?userId=%d", id, userID)
	return c.do(ctx, http.MethodPut, path, nil)
}

func (c *RESTClient) MarkAllRead(ctx context.Context, userID int) error {
	path := fmt.Sprintf("/notifications/user/%d/read-all", userID)
	return c.do(ctx, http.MethodPut, path, nil)
}

func (c *RESTClient) DeleteNotification(ctx context.Context, id, userID int) error {
	path := fmt.Sprintf("/notifications/%d?userId=%d", id, userID)
	return c.do(ctx, http.MethodDelete, path, nil)
}
