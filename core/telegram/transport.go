package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/core/telegram/netutil"
)

// BuildHTTPClient returns the client used for Bot API calls. Requests that
// fail before a response arrives are retried twice.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   90 * time.Second,
		Transport: &retryTransport{next: base, retries: 2, backoff: time.Second},
	}
}

type retryTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	for attempt := 1; attempt <= t.retries && err != nil && netutil.Retryable(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		wait := netutil.Delay(err, t.backoff, attempt)
		logger.TG.LogAttrs(req.Context(), slog.LevelDebug, "api retry",
			slog.String("event", "api.retry"),
			slog.String("status", "retry"),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", wait),
			slog.String("err_code", netutil.Kind(err)),
		)
		if !waitFor(req.Context(), wait) {
			return nil, req.Context().Err()
		}
		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			if retry.Body, err = req.GetBody(); err != nil {
				return nil, err
			}
		}
		resp, err = t.next.RoundTrip(retry)
	}
	return resp, err
}

func waitFor(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
