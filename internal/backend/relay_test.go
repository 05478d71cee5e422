package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
)

func testRelay(url string) *Relay {
	r := NewRelay(url, slog.New(slog.NewTextHandler(io.Discard, nil)), otel.Tracer("test"))
	return r
}

func TestRelayReplyTakesBodyVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req relayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Message != "how are you" {
			t.Errorf("unexpected message: %q", req.Message)
		}
		io.WriteString(w, "I'm here for you.\n")
	}))
	defer srv.Close()

	got := testRelay(srv.URL).Reply(context.Background(), "how are you")
	if got != "I'm here for you." {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestRelayNon200IsImmediateFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	got := testRelay(srv.URL).Reply(context.Background(), "hello")
	if got != ErrorConnectingReply {
		t.Fatalf("want placeholder, got %q", got)
	}
	if calls != 1 {
		t.Fatalf("relay must not retry, got %d calls", calls)
	}
}

func TestRelayTransportErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	got := testRelay(srv.URL).Reply(context.Background(), "hello")
	if got != ErrorConnectingReply {
		t.Fatalf("want placeholder, got %q", got)
	}
}

func TestRelayAnalyzeSurfacesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := testRelay(srv.URL).Analyze(context.Background(), map[string]string{"AGE": "21-35"}); err == nil {
		t.Fatalf("analyze must surface relay failure to the caller")
	}
}

func TestRelayAnalyzeReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req relayAnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Responses["AGE"] != "21-35" {
			t.Errorf("answers not forwarded: %+v", req.Responses)
		}
		io.WriteString(w, "You are doing well overall.")
	}))
	defer srv.Close()

	got, err := testRelay(srv.URL).Analyze(context.Background(), map[string]string{"AGE": "21-35"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got != "You are doing well overall." {
		t.Fatalf("unexpected analysis: %q", got)
	}
}
