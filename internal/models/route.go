package models

import (
	"net"

	"github.com/google/uuid"
)

// Route is a CIDR advertised by a server.
type Route struct {
	ID        uuid.UUID
	ServerID  uuid.UUID
	RouteCIDR *net.IPNet
}
