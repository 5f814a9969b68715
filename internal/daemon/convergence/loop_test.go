package convergence

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wirewarden/wirewarden/internal/daemon/configstore"
	"github.com/wirewarden/wirewarden/internal/daemon/netlink"
)

type fakeDriver struct {
	mu         sync.Mutex
	ensured    []string
	configured []netlink.DeviceConfig
	addressed  []string
	setUp      []string
	deleted    []string
	calls      []string
}

func (f *fakeDriver) EnsureLink(ifname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, ifname)
	f.calls = append(f.calls, "ensure_link")
	return nil
}

func (f *fakeDriver) SetAddresses(ifname string, addrs []netlink.Addr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addressed = append(f.addressed, ifname)
	f.calls = append(f.calls, "set_addresses")
	return nil
}

func (f *fakeDriver) Configure(ifname string, cfg netlink.DeviceConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = append(f.configured, cfg)
	f.calls = append(f.calls, "configure")
	return nil
}

func (f *fakeDriver) SetUp(ifname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setUp = append(f.setUp, ifname)
	f.calls = append(f.calls, "set_up")
	return nil
}

func (f *fakeDriver) DeleteLink(ifname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ifname)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTickAppliesInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"interface": {"address": "10.0.0.1", "prefix_len": 24, "listen_port": 51820, "private_key": "priv"},
			"peers": [{"public_key": "pub", "preshared_key": "psk", "allowed_ips": ["10.0.0.2/32"], "persistent_keepalive": 25}]
		}`))
	}))
	defer srv.Close()

	cs := configstore.New(filepath.Join(t.TempDir(), "daemon.toml"))
	if err := cs.Append(configstore.Registration{APIHost: srv.URL, APIToken: "tok", Interface: "wg0"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	driver := &fakeDriver{}
	loop := New(cs, driver, discardLogger(), time.Second)
	loop.runCycle(context.Background())

	if len(driver.ensured) != 1 || driver.ensured[0] != "wg0" {
		t.Fatalf("expected ensure_link(wg0), got %v", driver.ensured)
	}
	if len(driver.configured) != 1 || len(driver.configured[0].Peers) != 1 {
		t.Fatalf("expected one configure call with one peer, got %+v", driver.configured)
	}
	if !driver.configured[0].ReplacePeers {
		t.Error("expected ReplacePeers to be true")
	}
	if len(driver.addressed) != 1 || len(driver.setUp) != 1 {
		t.Fatalf("expected set_addresses and set_up to be called once each")
	}
	wantOrder := []string{"ensure_link", "configure", "set_addresses", "set_up"}
	if len(driver.calls) != len(wantOrder) {
		t.Fatalf("expected calls %v, got %v", wantOrder, driver.calls)
	}
	for i, op := range wantOrder {
		if driver.calls[i] != op {
			t.Fatalf("expected calls %v, got %v", wantOrder, driver.calls)
		}
	}
}

func TestTickEvictsOnUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cs := configstore.New(filepath.Join(t.TempDir(), "daemon.toml"))
	if err := cs.Append(configstore.Registration{APIHost: srv.URL, APIToken: "stale", Interface: "wg1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	driver := &fakeDriver{}
	loop := New(cs, driver, discardLogger(), time.Second)
	loop.runCycle(context.Background())

	if len(driver.deleted) != 1 || driver.deleted[0] != "wg1" {
		t.Fatalf("expected delete_link(wg1), got %v", driver.deleted)
	}

	regs, err := cs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(regs) != 0 {
		t.Fatalf("expected registration removed after eviction, got %v", regs)
	}
}

func TestTickSkipsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cs := configstore.New(filepath.Join(t.TempDir(), "daemon.toml"))
	if err := cs.Append(configstore.Registration{APIHost: srv.URL, APIToken: "tok", Interface: "wg2"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	driver := &fakeDriver{}
	loop := New(cs, driver, discardLogger(), time.Second)
	loop.runCycle(context.Background())

	if len(driver.ensured) != 0 || len(driver.deleted) != 0 {
		t.Fatalf("expected no driver calls on 5xx, got ensured=%v deleted=%v", driver.ensured, driver.deleted)
	}

	regs, err := cs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(regs) != 1 {
		t.Fatalf("expected registration untouched on transient error, got %v", regs)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	cs := configstore.New(filepath.Join(t.TempDir(), "daemon.toml"))
	loop := New(cs, &fakeDriver{}, discardLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected Run to return ctx.Err()")
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
