package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/Muhammadazeem-eng/acne-detect/internal/api"
	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/config"
)

// clientTimeout covers the slowest server call, an image analysis.
const clientTimeout = 150 * time.Second

// apiClient talks to a running acnedetect server. Its cookie jar carries
// the session, so one client is one session.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return newClientFor(fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port), nil)
}

func newClientFor(baseURL string, transport http.RoundTripper) (*apiClient, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &apiClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   clientTimeout,
			Transport: transport,
			Jar:       jar,
		},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return c.doRaw(ctx, method, path, contentType, bodyReader)
}

func (c *apiClient) doRaw(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is acnedetect running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// call performs a JSON request and decodes the envelope's data into out.
func (c *apiClient) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, out)
}

// decodeEnvelope unwraps a server response. Error envelopes become
// *apperr.Error values carrying the server's code and message.
func decodeEnvelope(resp *http.Response, out any) error {
	defer resp.Body.Close()

	var env api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("server returned %d with an unreadable body: %w", resp.StatusCode, err)
	}
	if !env.OK {
		if env.Error == nil {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		return apperr.New(env.Error.Code, env.Error.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
