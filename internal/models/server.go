package models

import (
	"time"

	"github.com/google/uuid"
)

// Server is a gateway node belonging to one network.
type Server struct {
	ID                      uuid.UUID
	NetworkID               uuid.UUID
	Name                    string
	KeyID                   uuid.UUID
	CapabilityToken         uuid.UUID
	Offset                  int
	ForwardsInternetTraffic bool
	EndpointHost            *string
	EndpointPort            *int
	CreatedAt               time.Time
}
