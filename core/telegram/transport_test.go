package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
)

type flakyTransport struct {
	fails int
	calls int
	body  []string
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.body = append(f.body, string(b))
	}
	if f.calls <= f.fails {
		return nil, &net.OpError{Op: "dial", Err: errors.New("refused")}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

func TestRetryTransportReplaysBody(t *testing.T) {
	next := &flakyTransport{fails: 1}
	rt := &retryTransport{next: next, retries: 2}
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid/sendMessage", strings.NewReader("text=hi"))
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	_ = resp.Body.Close()
	if next.calls != 2 || next.body[1] != "text=hi" {
		t.Fatalf("calls = %d bodies = %q", next.calls, next.body)
	}
}

func TestRetryTransportGivesUp(t *testing.T) {
	next := &flakyTransport{fails: 5}
	rt := &retryTransport{next: next, retries: 2}
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/getMe", nil)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected an error")
	}
	if next.calls != 3 {
		t.Fatalf("calls = %d, want 3", next.calls)
	}
}
