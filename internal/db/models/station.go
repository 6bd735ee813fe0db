// station.go defines the Station model — the tenant unit of the platform.
// TENANT_MANAGER users are bound to exactly one station.
package models

import "time"

// Station represents one operational unit (a catering station).
type Station struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	City     string `db:"city" json:"city"`
	Timezone string `db:"timezone" json:"timezone"`

	// RestoreWindowDays overrides the global soft-delete restore window for
	// resources belonging to this station. Nil means the global default.
	RestoreWindowDays *int `db:"restore_window_days" json:"restore_window_days,omitempty"`

	SoftDelete

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
