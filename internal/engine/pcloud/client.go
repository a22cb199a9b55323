// Package pcloud implements C1, the Remote API adapter: it issues
// authenticated HTTP requests against the pCloud JSON-over-HTTPS API,
// decodes tolerant JSON responses, and maps remote result codes to the
// engine's error taxonomy (internal/engine/pcerr).
package pcloud

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcerr"
	"go.uber.org/zap"
)

// Client is a single adapter instance with its own connection pool, sized
// for the configured worker count per spec §4.1.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// ClientConfig configures a new Client.
type ClientConfig struct {
	Region      Region
	WorkerCount int
	Timeout     time.Duration
	Logger      *zap.Logger

	// BaseURLOverride, when set, replaces Region.BaseURL(). Used by tests to
	// point the client at an in-memory pctest.Server instead of the real
	// pCloud endpoints.
	BaseURLOverride string
}

// NewClient builds a Client whose transport's idle-connection pool is sized
// for cfg.WorkerCount concurrent transfers.
func NewClient(cfg ClientConfig) *Client {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.WorkerCount * 2,
		MaxIdleConnsPerHost: cfg.WorkerCount * 2,
		MaxConnsPerHost:     cfg.WorkerCount * 2,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: false,
		},
	}

	baseURL := cfg.Region.BaseURL()
	if cfg.BaseURLOverride != "" {
		baseURL = cfg.BaseURLOverride
		transport.TLSClientConfig = nil // test servers serve plain HTTP
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// SetToken installs the authentication token used on every call except
// login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the currently installed authentication token.
func (c *Client) Token() string {
	return c.token
}

// downloadScheme reports the scheme download links resolved by getfilelink
// should use: pCloud's own hosts always serve HTTPS, but a test server
// substituted via ClientConfig.BaseURLOverride may serve plain HTTP.
func (c *Client) downloadScheme() string {
	if strings.HasPrefix(c.baseURL, "http://") {
		return "http"
	}
	return "https"
}

// invocation describes one call to invoke, the adapter's single primitive.
type invocation struct {
	method          string
	params          url.Values
	body            io.Reader
	bodyContentType string
	stream          bool
	skipAuth        bool
}

// streamResult carries a streaming HTTP response body back to a caller that
// asked for one (e.g. a download link fetch).
type streamResult struct {
	body          io.ReadCloser
	contentLength int64
}

// invoke issues inv against the remote and either decodes the JSON response
// into out, or — when inv.stream is set — returns the raw response body for
// the caller to drain itself. Either path returns a typed *pcerr.PulseError
// on failure.
func (c *Client) invoke(ctx context.Context, inv invocation, out interface{}) (*streamResult, error) {
	if inv.params == nil {
		inv.params = url.Values{}
	}
	if c.token != "" && !inv.skipAuth {
		inv.params.Set("auth", c.token)
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, inv.method)
	var req *http.Request
	var err error

	if inv.body != nil {
		reqURL = reqURL + "?" + inv.params.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, reqURL, inv.body)
		if err == nil {
			contentType := inv.bodyContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			req.Header.Set("Content-Type", contentType)
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(inv.params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, pcerr.NewLocalIOError("failed to build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, pcerr.NewCancelled("request cancelled")
		}
		return nil, pcerr.NewNetworkError(fmt.Sprintf("request to %s failed", inv.method), err)
	}

	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, pcerr.NewRemoteServerError(
			fmt.Sprintf("remote returned HTTP %d for %s", resp.StatusCode, inv.method),
			resp.StatusCode, nil,
		)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, pcerr.New(pcerr.RemoteApplicationError,
			fmt.Sprintf("remote returned HTTP %d for %s", resp.StatusCode, inv.method), nil).
			WithStatusCode(resp.StatusCode)
	}

	if inv.stream {
		return &streamResult{body: resp.Body, contentLength: resp.ContentLength}, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, pcerr.NewCancelled("response read cancelled")
		}
		return nil, pcerr.NewNetworkError("failed to read response body", err)
	}

	if err := decodeInto(data, out); err != nil {
		c.logger.Debug("remote call failed", zap.String("method", inv.method), zap.Error(err))
		return nil, err
	}
	return nil, nil
}

// openDirectStream performs a plain GET against a pre-resolved download link
// (not a named remote method) and returns the streaming body.
func (c *Client) openDirectStream(ctx context.Context, link string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, 0, pcerr.NewLocalIOError("failed to build download request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, pcerr.NewCancelled("download cancelled")
		}
		return nil, 0, pcerr.NewNetworkError("download request failed", err)
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, 0, pcerr.NewRemoteServerError(fmt.Sprintf("download returned HTTP %d", resp.StatusCode), resp.StatusCode, nil)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, 0, pcerr.New(pcerr.RemoteApplicationError, fmt.Sprintf("download returned HTTP %d", resp.StatusCode), nil).WithStatusCode(resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}
