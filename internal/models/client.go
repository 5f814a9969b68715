package models

import (
	"time"

	"github.com/google/uuid"
)

// Client is a VPN peer that does not poll; its config is rendered for
// export rather than pulled.
type Client struct {
	ID        uuid.UUID
	NetworkID uuid.UUID
	Name      string
	KeyID     uuid.UUID
	Offset    int
	CreatedAt time.Time
}
