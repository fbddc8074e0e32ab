package mirror

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

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	acceptHeader = "application/vnd.github+json"
	apiVersion   = "2022-11-28"
)

// Coordinates locate the remote repository. They are fixed at startup.
type Coordinates struct {
	BaseURL string
	Owner   string
	Repo    string
	Branch  string
}

// ClientOptions tunes a ContentsClient.
type ClientOptions struct {
	Token      string
	RateLimit  float64
	RateBurst  int
	// Timeout bounds each HTTP exchange when HTTPClient is nil; zero means
	// no client-level limit.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ContentsClient talks to the repository contents endpoint of the remote host
type ContentsClient struct {
	coords     Coordinates
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Content is the subset of the contents response the mirror needs.
type Content struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Path string `json:"path"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// PutRequest is the create-or-update body. SHA is only sent when set.
type PutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

// PutResult is the acknowledged write.
type PutResult struct {
	Content Content `json:"content"`
	Commit  struct {
		SHA     string `json:"sha"`
		Message string `json:"message"`
	} `json:"commit"`
	Created bool `json:"-"`
}

// NewContentsClient creates a new contents client. A non-empty token is sent
// as a bearer credential on every request.
func NewContentsClient(coords Coordinates, opts ClientOptions) *ContentsClient {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: opts.Timeout}
	}

	httpClient := base
	if opts.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
		httpClient.Timeout = base.Timeout
	}

	limit := rate.Limit(opts.RateLimit)
	if opts.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	coords.BaseURL = strings.TrimRight(coords.BaseURL, "/")
	return &ContentsClient{
		coords:     coords,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// Coordinates returns the repository coordinates this client targets.
func (c *ContentsClient) Coordinates() Coordinates {
	return c.coords
}

// GetContent fetches metadata of the file at remotePath on ref.
// It returns ErrNotFound when the remote host answers 404.
func (c *ContentsClient) GetContent(ctx context.Context, remotePath, ref string) (*Content, error) {
	reqURL := c.contentsURL(remotePath)
	if ref != "" {
		reqURL += "?ref=" + url.QueryEscape(ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status != http.StatusOK {
		return nil, newAPIError(status, body)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, errRemoteIsFolder
	}

	var content Content
	if err := json.Unmarshal(trimmed, &content); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &content, nil
}

// PutContent creates or updates the file at remotePath in a single commit.
func (c *ContentsClient) PutContent(ctx context.Context, remotePath string, in PutRequest) (*PutResult, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(remotePath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, newAPIError(status, body)
	}

	var out PutResult
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode put response: %w", err)
		}
	}
	out.Created = status == http.StatusCreated
	return &out, nil
}

func (c *ContentsClient) do(req *http.Request) (int, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		ctx := req.Context()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, fmt.Errorf("rate limiter: %w", ctxErr)
		}
		// Wait refuses early when the reservation would outlive the deadline
		if _, ok := ctx.Deadline(); ok {
			return 0, nil, fmt.Errorf("rate limiter: %w: %v", context.DeadlineExceeded, err)
		}
		return 0, nil, fmt.Errorf("rate limiter: %w", err)
	}

	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordRemoteCall(time.Since(start), err)
		return 0, nil, fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		recordRemoteCall(duration, err)
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		recordRemoteCall(duration, fmt.Errorf("status %d", resp.StatusCode))
	} else {
		recordRemoteCall(duration, nil)
	}
	return resp.StatusCode, body, nil
}

func (c *ContentsClient) contentsURL(remotePath string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.coords.BaseURL,
		url.PathEscape(c.coords.Owner),
		url.PathEscape(c.coords.Repo),
		escapePath(remotePath),
	)
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	_ = json.Unmarshal(body, apiErr)
	apiErr.StatusCode = status
	return apiErr
}

// IsNotFound reports whether err means the remote content is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
