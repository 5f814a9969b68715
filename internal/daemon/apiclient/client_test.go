package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"interface": {"address": "10.0.0.1", "prefix_len": 24, "listen_port": 51820, "private_key": "abc"},
			"peers": [{"public_key": "pub", "preshared_key": "psk", "allowed_ips": ["10.0.0.2/32"], "persistent_keepalive": 25}]
		}`))
	}))
	defer srv.Close()

	c := New(time.Second)
	outcome, cfg, err := c.Fetch(context.Background(), srv.URL, "test-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v", outcome)
	}
	if cfg.Interface.Address != "10.0.0.1" || cfg.Interface.ListenPort != 51820 {
		t.Errorf("unexpected interface: %+v", cfg.Interface)
	}
	if len(cfg.Peers) != 1 || cfg.Peers[0].AllowedIPs[0] != "10.0.0.2/32" {
		t.Errorf("unexpected peers: %+v", cfg.Peers)
	}
}

func TestFetchUnauthorizedEvicts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(time.Second)
	outcome, cfg, err := c.Fetch(context.Background(), srv.URL, "stale-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeEvict {
		t.Fatalf("expected OutcomeEvict, got %v", outcome)
	}
	if cfg != nil {
		t.Error("expected nil config on eviction")
	}
}

func TestFetchNotFoundEvicts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(time.Second)
	outcome, _, err := c.Fetch(context.Background(), srv.URL, "token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeEvict {
		t.Fatalf("expected OutcomeEvict, got %v", outcome)
	}
}

func TestFetchServerErrorSkips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(time.Second)
	outcome, _, err := c.Fetch(context.Background(), srv.URL, "token")
	if err == nil {
		t.Fatal("expected an error for 500 response")
	}
	if outcome != OutcomeSkip {
		t.Fatalf("expected OutcomeSkip, got %v", outcome)
	}
}

func TestFetchNetworkErrorSkips(t *testing.T) {
	c := New(50 * time.Millisecond)
	outcome, _, err := c.Fetch(context.Background(), "http://127.0.0.1:1", "token")
	if err == nil {
		t.Fatal("expected a network error")
	}
	if outcome != OutcomeSkip {
		t.Fatalf("expected OutcomeSkip, got %v", outcome)
	}
}
