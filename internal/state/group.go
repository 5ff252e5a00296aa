package state

import "github.com/google/uuid"

// Group is the deployment singleton: an admin identity plus the lending pool.
type Group struct {
	Admin uuid.UUID
	Pool  LendingPool
}

// GroupConfig is the partial-update patch for a Group. Absent fields leave
// the live value untouched; an all-absent patch is a no-op.
type GroupConfig struct {
	Admin *uuid.UUID `json:"admin,omitempty"`
}

// SetInitialConfiguration resets the group to defaults plus the given admin.
// Intended to run exactly once, at creation.
func (g *Group) SetInitialConfiguration(admin uuid.UUID) {
	*g = Group{Admin: admin}
}

// Configure merges the patch. Never fails.
func (g *Group) Configure(cfg GroupConfig) {
	if cfg.Admin != nil {
		g.Admin = *cfg.Admin
	}
}
