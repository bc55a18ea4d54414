package reddit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited matches every *RateLimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound is returned when a submission id does not resolve.
	ErrNotFound = errors.New("submission not found")
)

// RateLimitError is returned on HTTP 429.
type RateLimitError struct {
	Status     int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (HTTP %d, retry after %s)", e.Status, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (HTTP %d)", e.Status)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// APIError is a non-success response that is not a rate limit.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Credentials authenticate a script-type application with the password grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Username     string
	Password     string
}

// composeRateLimit is the error code /api/compose reports, with a 200
// status, when the account is sending messages too fast.
const composeRateLimit = "RATELIMIT"

// deletedAuthor is how the API names an author whose account is gone.
const deletedAuthor = "[deleted]"

// Submission is one link post as returned by the API.
type Submission struct {
	PostID        string `json:"id"`
	AuthorName    string `json:"author"`
	PostTitle     string `json:"title"`
	SelfText      string `json:"selftext"`
	LinkFlairText string `json:"link_flair_text"`
	RemovedBy     string `json:"removed_by_category"`
}

func (s Submission) ID() string { return s.PostID }
func (s Submission) Title() string { return s.PostTitle }
func (s Submission) Body() string { return s.SelfText }
func (s Submission) Flair() string { return s.LinkFlairText }

// RemovalCategory is empty while the post is visible.
func (s Submission) RemovalCategory() string { return s.RemovedBy }

// Author returns false when the author account has been deleted.
func (s Submission) Author() (string, bool) {
	if s.AuthorName == "" || s.AuthorName == deletedAuthor {
		return "", false
	}
	return s.AuthorName, true
}

type thing struct {
	Kind string     `json:"kind"`
	Data Submission `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

type composeResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
	} `json:"json"`
}
