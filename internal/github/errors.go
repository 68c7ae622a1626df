package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	gogithub "github.com/google/go-github/v67/github"

	apperrors "github.com/Kamar-Folarin/repo-cache/internal/errors"
)

const defaultSecondaryLimitWait = time.Minute

// GitHubError carries the upstream status for errors that fall outside the
// cache's error taxonomy
type GitHubError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GitHubError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GitHub API error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *GitHubError) Unwrap() error {
	return e.Err
}

// NewGitHubError creates a new GitHubError with the given status code and message
func NewGitHubError(statusCode int, message string, err error) error {
	return &GitHubError{
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// classifyError maps go-github and transport errors onto the application
// error taxonomy.
func (c *GitHubClient) classifyError(err error) error {
	if err == nil {
		return nil
	}

	var rle *gogithub.RateLimitError
	if errors.As(err, &rle) {
		return apperrors.NewRateLimitError(rle.Rate.Reset.Time, rle.Rate.Limit, rle.Rate.Remaining)
	}

	var abuse *gogithub.AbuseRateLimitError
	if errors.As(err, &abuse) {
		wait := defaultSecondaryLimitWait
		if abuse.RetryAfter != nil {
			wait = *abuse.RetryAfter
		}
		return apperrors.NewRateLimitError(c.clock.Now().Add(wait), 0, 0)
	}

	var errResp *gogithub.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		status := errResp.Response.StatusCode
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return apperrors.NewUnauthorizedError("GitHub rejected the credential", err)
		case status == http.StatusNotFound:
			return apperrors.NewNotFoundError("GitHub resource not found", err)
		case status == http.StatusTooManyRequests:
			return apperrors.NewRateLimitError(c.retryAfter(errResp.Response), 0, 0)
		case status >= http.StatusInternalServerError:
			return apperrors.NewTransientError(fmt.Sprintf("GitHub returned %d", status), err)
		default:
			return NewGitHubError(status, errResp.Message, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTransientError("GitHub request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewTransientError("GitHub request failed", err)
	}

	return apperrors.NewInternalError("unexpected GitHub client error", err)
}

func (c *GitHubClient) retryAfter(resp *http.Response) time.Time {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
			return c.clock.Now().Add(time.Duration(seconds) * time.Second)
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(epoch, 0)
		}
	}
	return c.clock.Now().Add(defaultSecondaryLimitWait)
}
