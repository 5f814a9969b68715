// Package apiclient implements the Convergence Daemon's half of the
// Gateway Pull API (SPEC_FULL.md §4.D/§6): a bounded-timeout HTTP
// fetch of the desired WireGuard state, with the 401/404 eviction
// signal surfaced distinctly from transient transport failures.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Interface is the gateway's own address and listen configuration.
type Interface struct {
	Address    string `json:"address"`
	PrefixLen  int    `json:"prefix_len"`
	ListenPort int    `json:"listen_port"`
	PrivateKey string `json:"private_key"`
}

// Peer is one peer the gateway should converge to.
type Peer struct {
	PublicKey           string   `json:"public_key"`
	PresharedKey        string   `json:"preshared_key"`
	AllowedIPs          []string `json:"allowed_ips"`
	PersistentKeepalive int      `json:"persistent_keepalive"`
}

// Config is the full desired state for one gateway, per spec.md §6.
type Config struct {
	Interface Interface `json:"interface"`
	Peers     []Peer    `json:"peers"`
}

// Outcome classifies a Fetch result per spec.md §4.F step 1.
type Outcome int

const (
	// OutcomeOK means Config is populated and should be applied.
	OutcomeOK Outcome = iota
	// OutcomeEvict means the server returned 401 or 404: the gateway's
	// registration is gone and should be torn down.
	OutcomeEvict
	// OutcomeSkip means a transient condition (5xx, network error,
	// timeout); log and try again next tick.
	OutcomeSkip
)

// Client fetches gateway configuration from one planner host.
type Client struct {
	httpClient *http.Client
}

// New builds a Client with the given bounded request timeout. Callers
// should pass at most half the convergence interval, per spec.md §4.F.
func New(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Fetch pulls the gateway config from apiHost using apiToken as the
// bearer credential.
func (c *Client) Fetch(ctx context.Context, apiHost, apiToken string) (Outcome, *Config, error) {
	url := fmt.Sprintf("%s/api/daemon/config", apiHost)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return OutcomeSkip, nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OutcomeSkip, nil, fmt.Errorf("apiclient: fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		return OutcomeEvict, nil, nil
	case resp.StatusCode >= 500:
		return OutcomeSkip, nil, fmt.Errorf("apiclient: server error %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return OutcomeSkip, nil, fmt.Errorf("apiclient: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return OutcomeSkip, nil, fmt.Errorf("apiclient: read body: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		return OutcomeSkip, nil, fmt.Errorf("apiclient: parse body: %w", err)
	}

	return OutcomeOK, &cfg, nil
}
