// Package convergence implements the Convergence Daemon's tick loop
// (SPEC_FULL.md §4.F): fetch desired state, apply it through the
// Netlink Driver, or evict on an authenticated "you are gone" signal.
// Grounded on plexsphere-plexd's internal/reconcile/reconciler.go
// ticker-plus-select shape, adapted from drift-correction to
// fetch/apply/evict since WireWarden gateways have no local diffing —
// every tick pushes the full desired state with ReplacePeers set.
package convergence

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/wirewarden/wirewarden/internal/daemon/apiclient"
	"github.com/wirewarden/wirewarden/internal/daemon/configstore"
	"github.com/wirewarden/wirewarden/internal/daemon/netlink"
)

// DefaultInterval is the default time between convergence ticks.
const DefaultInterval = 30 * time.Second

// Loop drives the daemon's periodic fetch/apply/evict cycle.
type Loop struct {
	store    *configstore.Store
	client   *apiclient.Client
	driver   netlink.Driver
	logger   *slog.Logger
	interval time.Duration
}

// New builds a Loop. interval defaults to DefaultInterval when zero.
func New(store *configstore.Store, driver netlink.Driver, logger *slog.Logger, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		store:    store,
		client:   apiclient.New(interval / 2),
		driver:   driver,
		logger:   logger,
		interval: interval,
	}
}

// Run blocks, ticking every l.interval, until ctx is cancelled. The
// first cycle runs immediately. Shutdown is cancellation-safe: ctx
// cancellation interrupts the sleep between ticks and the in-flight
// HTTP fetch (bounded by the client's own timeout), then Run returns.
// Interfaces the daemon created are never torn down on shutdown — only
// an explicit eviction removes them.
func (l *Loop) Run(ctx context.Context) error {
	l.runCycle(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("convergence loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.runCycle(ctx)
		}
	}
}

// runCycle processes every registered gateway sequentially. No
// concurrent ticks run for the same gateway because the daemon is
// single-threaded and this call does not return until every gateway
// in the current registration set has been handled.
func (l *Loop) runCycle(ctx context.Context) {
	regs, err := l.store.Load()
	if err != nil {
		l.logger.Error("failed to load registrations", "error", err)
		return
	}

	for _, reg := range regs {
		if ctx.Err() != nil {
			return
		}
		l.tick(ctx, reg)
	}
}

func (l *Loop) tick(ctx context.Context, reg configstore.Registration) {
	outcome, cfg, err := l.client.Fetch(ctx, reg.APIHost, reg.APIToken)
	if err != nil {
		l.logger.Warn("fetch failed", "interface", reg.Interface, "api_host", reg.APIHost, "error", err)
	}

	switch outcome {
	case apiclient.OutcomeSkip:
		return
	case apiclient.OutcomeEvict:
		l.evict(reg)
		return
	case apiclient.OutcomeOK:
		l.apply(reg.Interface, cfg)
	}
}

// apply pushes the fetched state in the order the spec mandates:
// ensure_link, then configure (installs the private key before any
// address goes on the link), then set_addresses, then set_up.
func (l *Loop) apply(ifname string, cfg *apiclient.Config) {
	if err := l.driver.EnsureLink(ifname); err != nil {
		l.logFatalOrTransient("ensure_link", ifname, err)
		return
	}

	device := netlink.DeviceConfig{
		PrivateKey:   cfg.Interface.PrivateKey,
		ListenPort:   cfg.Interface.ListenPort,
		ReplacePeers: true,
		Peers:        make([]netlink.Peer, 0, len(cfg.Peers)),
	}
	for _, p := range cfg.Peers {
		device.Peers = append(device.Peers, netlink.Peer{
			PublicKey:           p.PublicKey,
			PresharedKey:        p.PresharedKey,
			AllowedIPs:          p.AllowedIPs,
			PersistentKeepalive: p.PersistentKeepalive,
		})
	}
	if err := l.driver.Configure(ifname, device); err != nil {
		l.logFatalOrTransient("configure", ifname, err)
		return
	}

	addrs := []netlink.Addr{{IP: net.ParseIP(cfg.Interface.Address), PrefixLen: cfg.Interface.PrefixLen}}
	if err := l.driver.SetAddresses(ifname, addrs); err != nil {
		l.logFatalOrTransient("set_addresses", ifname, err)
		return
	}

	if err := l.driver.SetUp(ifname); err != nil {
		l.logFatalOrTransient("set_up", ifname, err)
		return
	}

	l.logger.Info("converged", "interface", ifname, "peers", len(device.Peers))
}

func (l *Loop) evict(reg configstore.Registration) {
	if err := l.driver.DeleteLink(reg.Interface); err != nil && !netlink.Is(err, netlink.KindNotFound) {
		l.logger.Error("evict: delete_link failed", "interface", reg.Interface, "error", err)
	}
	if err := l.store.RemoveByToken(reg.APIToken); err != nil {
		l.logger.Error("evict: failed to remove registration", "interface", reg.Interface, "error", err)
		return
	}
	l.logger.Info("evicted", "interface", reg.Interface, "api_host", reg.APIHost)
}

func (l *Loop) logFatalOrTransient(op, ifname string, err error) {
	if netlink.Is(err, netlink.KindPermissionDenied) {
		l.logger.Error("netlink permission denied, daemon must run privileged", "op", op, "interface", ifname, "error", err)
		return
	}
	l.logger.Warn("netlink op failed, will retry next tick", "op", op, "interface", ifname, "error", err)
}
