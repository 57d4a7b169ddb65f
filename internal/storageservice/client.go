package storageservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dipbatch/internal/config"
)

// ErrUnexpectedStatus marks responses whose HTTP status the client does not accept.
var ErrUnexpectedStatus = errors.New("unexpected storage service response")

// HTTPDoer describes the HTTP client used by the Storage Service client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError carries the rejected response for logging.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s returned %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Client is a minimal Storage Service API client.
type Client struct {
	baseURL *url.URL
	user    string
	apiKey  string
	http    HTTPDoer
}

// New constructs a client. A nil doer uses http.DefaultClient.
func New(baseURL, user, apiKey string, doer HTTPDoer) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse storage service url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("storage service url %q must be absolute", baseURL)
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: parsed, user: user, apiKey: apiKey, http: doer}, nil
}

// NewFromConfig builds a client with the configured request timeout.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	timeout := time.Duration(cfg.StorageService.RequestTimeout) * time.Second
	return New(cfg.StorageService.URL, cfg.StorageService.User, cfg.StorageService.APIKey, &http.Client{Timeout: timeout})
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// LocationURI returns the API reference for a storage location.
func LocationURI(uuid string) string {
	return "/api/v2/location/" + uuid + "/"
}

// PipelineURI returns the API reference for a pipeline.
func PipelineURI(uuid string) string {
	return "/api/v2/pipeline/" + uuid + "/"
}

// endpoint joins a fixed API path onto the configured base URL, keeping any
// path prefix the service is mounted under.
func (c *Client) endpoint(path string, query url.Values) (string, error) {
	joined, err := url.JoinPath(c.baseURL.String(), path)
	if err != nil {
		return "", fmt.Errorf("build url for %s: %w", path, err)
	}
	if len(query) > 0 {
		joined += "?" + query.Encode()
	}
	return joined, nil
}

// resolve turns a reference returned by the API (a Location header or a
// pagination link) into a request URL. Rooted paths that omit the base path
// prefix get it added back.
func (c *Client) resolve(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	prefix := strings.TrimRight(c.baseURL.Path, "/")
	if parsed.Host == "" && prefix != "" && strings.HasPrefix(parsed.Path, "/") &&
		parsed.Path != prefix && !strings.HasPrefix(parsed.Path, prefix+"/") {
		parsed.Path = prefix + parsed.Path
		parsed.RawPath = ""
	}
	return c.baseURL.ResolveReference(parsed).String(), nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("ApiKey %s:%s", c.user, c.apiKey))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(req, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func statusError(req *http.Request, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// CheckAccess performs a cheap authenticated request to confirm the service
// is reachable and accepts the credentials.
func (c *Client) CheckAccess(ctx context.Context) error {
	var page struct {
		Meta struct {
			TotalCount int `json:"total_count"`
		} `json:"meta"`
	}
	target, err := c.endpoint("/api/v2/location/", url.Values{"limit": {"1"}})
	if err != nil {
		return err
	}
	return c.getJSON(ctx, target, &page)
}
