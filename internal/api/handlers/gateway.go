// Package handlers implements the Gateway Pull API (SPEC_FULL.md
// §4.D): the single authenticated endpoint a convergence daemon polls
// for its desired WireGuard state.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wirewarden/wirewarden/internal/api/middleware"
	"github.com/wirewarden/wirewarden/internal/topology"
	"github.com/wirewarden/wirewarden/internal/wgerr"
)

// GatewayHandler serves GET /api/daemon/config.
type GatewayHandler struct {
	resolver *topology.Resolver
	logger   *zap.Logger
}

// NewGatewayHandler builds a GatewayHandler.
func NewGatewayHandler(resolver *topology.Resolver, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{resolver: resolver, logger: logger}
}

type interfaceWire struct {
	Address    string `json:"address"`
	PrefixLen  int    `json:"prefix_len"`
	ListenPort int    `json:"listen_port"`
	PrivateKey string `json:"private_key"`
}

type peerWire struct {
	PublicKey           string   `json:"public_key"`
	PresharedKey        string   `json:"preshared_key"`
	AllowedIPs          []string `json:"allowed_ips"`
	PersistentKeepalive int      `json:"persistent_keepalive"`
}

type gatewayConfigResponse struct {
	Interface interfaceWire `json:"interface"`
	Peers     []peerWire    `json:"peers"`
}

// PullConfig renders the authenticated server's gateway view, per the
// wire format in spec.md §6.
func (h *GatewayHandler) PullConfig(c *gin.Context) {
	server := middleware.ServerFromContext(c)
	if server == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	view, err := h.resolver.GatewayView(c.Request.Context(), server)
	if err != nil {
		switch {
		case wgerr.Is(err, wgerr.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "server's network no longer exists"})
		default:
			h.logger.Error("gateway view failed", zap.String("server_id", server.ID.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	resp := gatewayConfigResponse{
		Interface: interfaceWire{
			Address:    view.Interface.Address,
			PrefixLen:  view.Interface.PrefixLen,
			ListenPort: view.Interface.ListenPort,
			PrivateKey: view.Interface.PrivateKey,
		},
	}
	for _, p := range view.Peers {
		resp.Peers = append(resp.Peers, peerWire{
			PublicKey:           p.PublicKey,
			PresharedKey:        p.PresharedKey,
			AllowedIPs:          p.AllowedIPs,
			PersistentKeepalive: p.PersistentKeepalive,
		})
	}

	c.JSON(http.StatusOK, resp)
}
