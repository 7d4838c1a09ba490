package model

import (
	"strconv"
	"time"
)

// Status is the tracked health state of an exit node.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusError     Status = "error"
)

// NeedsCleanup reports whether a node in this status should be destroyed
// and removed from tracking.
func (s Status) NeedsCleanup() bool {
	return s == StatusUnhealthy || s == StatusError
}

// ExitNode captures one managed droplet acting as a Tailscale exit node.
// The JSON shape is the durable state-file schema and must stay stable.
type ExitNode struct {
	DropletID   string    `json:"droplet_id"`
	Name        string    `json:"name"`
	PublicIP    string    `json:"public_ip"`
	TailscaleIP string    `json:"tailscale_ip"`
	Region      string    `json:"region"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	LastChecked time.Time `json:"last_checked"`
}

// DropletIDInt returns the provider-side numeric id. Droplet ids are stored
// as strings in the state file but DigitalOcean addresses them as ints.
func (n *ExitNode) DropletIDInt() (int, error) {
	return strconv.Atoi(n.DropletID)
}

// DropletIDString formats a provider droplet id for tracking.
func DropletIDString(id int) string {
	return strconv.Itoa(id)
}
