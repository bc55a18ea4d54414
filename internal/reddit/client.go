// Package reddit is a small OAuth client for the endpoints the bot uses:
// the new-posts listing, submission lookup by id, and private messages.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultAPIURL  = "https://oauth.reddit.com"
	defaultAuthURL = "https://www.reddit.com/api/v1/access_token"
	defaultTimeout = 30 * time.Second
	maxPageSize    = 100
	// tokenSlack renews the token before it actually expires.
	tokenSlack = time.Minute
)

// Client talks to the Reddit API as a script application.
type Client struct {
	creds      Credentials
	apiURL     string
	authURL    string
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient creates a client for the public API.
func NewClient(creds Credentials) *Client {
	return &Client{
		creds:   creds,
		apiURL:  defaultAPIURL,
		authURL: defaultAuthURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		now: time.Now,
	}
}

// NewClientWithBaseURL points both the API and the token endpoint at baseURL
// (for testing). The token endpoint is baseURL + "/api/v1/access_token".
func NewClientWithBaseURL(creds Credentials, baseURL string) *Client {
	c := NewClient(creds)
	base := strings.TrimRight(baseURL, "/")
	c.apiURL = base
	c.authURL = base + "/api/v1/access_token"
	return c
}

// New returns up to limit of the newest submissions in community, newest
// first, following the listing's pagination cursor.
func (c *Client) New(ctx context.Context, community string, limit int) ([]Submission, error) {
	var out []Submission
	after := ""
	for len(out) < limit {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(min(limit-len(out), maxPageSize)))
		q.Set("raw_json", "1")
		if after != "" {
			q.Set("after", after)
		}

		var page listing
		if err := c.get(ctx, "/r/"+url.PathEscape(community)+"/new", q, &page); err != nil {
			return nil, fmt.Errorf("listing new posts in r/%s: %w", community, err)
		}
		for _, child := range page.Data.Children {
			out = append(out, child.Data)
		}
		if page.Data.After == "" || len(page.Data.Children) == 0 {
			break
		}
		after = page.Data.After
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Submission looks up one submission by its base36 id.
func (c *Client) Submission(ctx context.Context, id string) (Submission, error) {
	q := url.Values{}
	q.Set("id", "t3_"+id)
	q.Set("raw_json", "1")

	var page listing
	if err := c.get(ctx, "/api/info", q, &page); err != nil {
		return Submission{}, fmt.Errorf("looking up post %s: %w", id, err)
	}
	for _, child := range page.Data.Children {
		if child.Data.PostID == id {
			return child.Data, nil
		}
	}
	return Submission{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
}

// Compose sends a private message. A to of "/r/<name>" reaches the
// community's modmail.
func (c *Client) Compose(ctx context.Context, to, subject, text string) error {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("text", text)

	var resp composeResponse
	if err := c.post(ctx, "/api/compose", form, &resp); err != nil {
		return fmt.Errorf("sending message to %s: %w", to, err)
	}
	if len(resp.JSON.Errors) > 0 {
		first := resp.JSON.Errors[0]
		if len(first) > 0 && first[0] == composeRateLimit {
			return fmt.Errorf("sending message to %s: %w", to, &RateLimitError{Status: http.StatusOK})
		}
		return fmt.Errorf("sending message to %s: %v", to, first)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(ctx, req, out)
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, req, out)
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			c.invalidate()
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Status: resp.StatusCode, RetryAfter: retryAfter(resp.Header)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		v = h.Get("X-Ratelimit-Reset")
	}
	if v == "" {
		return 0
	}
	sec, err := strconv.ParseFloat(v, 64)
	if err != nil || sec < 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.creds.Username)
	form.Set("password", c.creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token: %w", err)
	}
	if tok.Error != "" {
		return "", fmt.Errorf("requesting token: %s", tok.Error)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("requesting token: empty access token")
	}

	c.token = tok.AccessToken
	c.expires = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSlack)
	return c.token, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
