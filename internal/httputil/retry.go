// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the search adapters.
package httputil

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const (
	// maxRateLimitRetries bounds backoff retries on HTTP 429.
	maxRateLimitRetries = 2

	// maxTransientRetries bounds retries on timeouts and 5xx responses.
	maxTransientRetries = 1
)

// Do executes an HTTP request with the adapter retry policy: at most one
// retry on a transient error (timeout or HTTP 5xx) and bounded exponential
// backoff on HTTP 429, starting at RetryBaseDelay and doubling per attempt.
//
// Before each retry the previous response body is drained and closed. If the
// context is cancelled during a backoff wait the function returns ctx.Err().
// After exhausting retries the last response (or error) is returned as-is so
// the caller can inspect it.
func Do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	transientLeft := maxTransientRetries
	rateLimitLeft := maxRateLimitRetries

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if transientLeft > 0 && isTimeout(err) && ctx.Err() == nil {
				transientLeft--
				continue
			}
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if rateLimitLeft == 0 {
				return resp, nil
			}
			rateLimitLeft--

			drain(resp)
			backoff := time.Duration(math.Pow(2, float64(maxRateLimitRetries-rateLimitLeft-1))) * RetryBaseDelay
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}

		case resp.StatusCode >= 500:
			if transientLeft == 0 {
				return resp, nil
			}
			transientLeft--
			drain(resp)

		default:
			return resp, nil
		}
	}
}

// drain consumes and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// isTimeout reports whether err is a network timeout rather than a hard
// failure such as a refused connection.
func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
