// Package netutil classifies failures of Telegram API calls.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"regexp"
	"time"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Retryable reports whether a call that failed with err may succeed when
// repeated: network timeouts, failed dials and flood waits.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

// Delay returns how long to wait before attempt+1. Flood waits dictate the
// delay, anything else backs off linearly from base.
func Delay(err error, base time.Duration, attempt int) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return base * time.Duration(attempt)
}

// Kind names the failure class of err for logs.
func Kind(err error) string {
	var (
		flood tele.FloodError
		api   *tele.Error
		dns   *net.DNSError
		op    *net.OpError
		ne    net.Error
		alert tls.AlertError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &api):
		if api.Code >= 500 {
			return "http_5xx"
		}
		return "http_4xx"
	case errors.As(err, &dns):
		return "dns"
	case errors.As(err, &ne) && ne.Timeout():
		return "timeout"
	case errors.As(err, &op) && op.Op == "dial":
		return "dial"
	case errors.As(err, &alert):
		return "tls"
	}
	return "unknown"
}

// Redact masks bot tokens that net/http embeds in request URLs.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
