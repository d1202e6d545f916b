package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"flood", tele.FloodError{RetryAfter: 3}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", fmt.Errorf("send: %w", context.Canceled), false},
		{"api", &tele.Error{Code: 400, Description: "chat not found"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDelay(t *testing.T) {
	if got := Delay(errors.New("x"), time.Second, 3); got != 3*time.Second {
		t.Fatalf("linear delay = %v", got)
	}
	if got := Delay(tele.FloodError{RetryAfter: 7}, time.Second, 1); got != 7*time.Second {
		t.Fatalf("flood delay = %v", got)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{tele.FloodError{RetryAfter: 1}, "flood"},
		{&tele.Error{Code: 403}, "http_4xx"},
		{&tele.Error{Code: 502}, "http_5xx"},
		{&net.DNSError{Name: "api.telegram.org"}, "dns"},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, "dial"},
		{errors.New("other"), "unknown"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Fatalf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:AbC-d_e/sendMessage": timeout`)
	if got := Redact(err); got != `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout` {
		t.Fatalf("Redact = %q", got)
	}
}
