package signal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

const answerSDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func TestNegotiate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.URL.Query().Get("model"); got != "gpt-4o-realtime-preview" {
			t.Errorf("model = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ek_test" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/sdp" {
			t.Errorf("content-type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.HasPrefix(string(body), "v=0") {
			t.Errorf("offer not forwarded: %.32q", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(answerSDP))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "gpt-4o-realtime-preview", 5*time.Second)
	answer, err := c.Negotiate(context.Background(), domain.Credential{Value: "ek_test"}, "v=0\r\n")
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if answer != answerSDP {
		t.Errorf("answer = %q", answer)
	}
}

func TestNegotiateRejectedPassesBodyThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid credential"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", 5*time.Second)
	_, err := c.Negotiate(context.Background(), domain.Credential{Value: "bad"}, "v=0\r\n")
	if err == nil {
		t.Fatal("expected error on 403")
	}
	if !domain.IsKind(err, domain.KindNegotiation) {
		t.Errorf("kind = %q, want negotiation", domain.KindOf(err))
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "invalid credential") {
		t.Errorf("status/body not passed through: %v", err)
	}
}

func TestNegotiateNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "m", time.Second)
	_, err := c.Negotiate(context.Background(), domain.Credential{Value: "x"}, "v=0\r\n")
	if !domain.IsKind(err, domain.KindTransport) {
		t.Errorf("kind = %q, want transport: %v", domain.KindOf(err), err)
	}
}

func TestNegotiateRejectsNonSDPBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"json"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", 5*time.Second)
	_, err := c.Negotiate(context.Background(), domain.Credential{Value: "x"}, "v=0\r\n")
	if !domain.IsKind(err, domain.KindNegotiation) {
		t.Errorf("kind = %q, want negotiation: %v", domain.KindOf(err), err)
	}
}
