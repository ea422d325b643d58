package ora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const maxMarkupBytes = 4 << 20

func (c *Client) postJSON(ctx context.Context, handler string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", handler, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, handler, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, handler, out)
}

func (c *Client) getJSON(ctx context.Context, handler string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, handler, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, handler, out)
}

func (c *Client) getText(ctx context.Context, handler string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, handler, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", handler, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", newHTTPStatusError(handler, resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMarkupBytes))
	if err != nil {
		return "", fmt.Errorf("read %s response: %w", handler, err)
	}
	return string(body), nil
}

func (c *Client) newRequest(ctx context.Context, method, handler string, body io.Reader) (*http.Request, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s rate limit: %w", handler, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/handler/"+handler, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", handler, err)
	}
	req.Header.Set("Accept", "application/json, text/html")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.csrfToken != "" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: c.csrfToken})
	}
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.sessionID})
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, handler string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", handler, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newHTTPStatusError(handler, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", handler, err)
	}
	return nil
}
