package store

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wirewarden/wirewarden/internal/models"
	"github.com/wirewarden/wirewarden/internal/wgerr"
)

// CreateRoute attaches an advertised CIDR to a server.
func (s *Store) CreateRoute(ctx context.Context, serverID uuid.UUID, cidr string) (*models.Route, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("store: %w: invalid route cidr %q: %v", wgerr.ErrValidation, cidr, err)
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("store: %w: route cidr %q is not IPv4", wgerr.ErrValidation, cidr)
	}

	route := &models.Route{
		ID:        uuid.New(),
		ServerID:  serverID,
		RouteCIDR: ipNet,
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO wg_server_routes (id, server_id, route_cidr)
		VALUES ($1, $2, $3)
	`, route.ID, route.ServerID, route.RouteCIDR.String())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("store: %w: route %q already advertised by this server", wgerr.ErrValidation, cidr)
		}
		return nil, fmt.Errorf("store: insert route: %w", err)
	}
	return route, nil
}

func scanRoute(row pgx.Row) (*models.Route, error) {
	var r models.Route
	var cidrStr string
	if err := row.Scan(&r.ID, &r.ServerID, &cidrStr); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("store: %w: route", wgerr.ErrNotFound)
		}
		return nil, fmt.Errorf("store: scan route: %w", err)
	}
	_, ipNet, err := net.ParseCIDR(cidrStr)
	if err != nil {
		return nil, fmt.Errorf("store: malformed route cidr in database: %w", err)
	}
	r.RouteCIDR = ipNet
	return &r, nil
}

// ListRoutesByServer returns every route a server advertises, ordered
// by CIDR string for deterministic AllowedIPs rendering in the
// Topology Resolver.
func (s *Store) ListRoutesByServer(ctx context.Context, serverID uuid.UUID) ([]*models.Route, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, server_id, route_cidr FROM wg_server_routes
		WHERE server_id = $1 ORDER BY route_cidr
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("store: list routes: %w", err)
	}
	defer rows.Close()

	var out []*models.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRoute removes a single advertised route.
func (s *Store) DeleteRoute(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM wg_server_routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: %w: route", wgerr.ErrNotFound)
	}
	return nil
}
