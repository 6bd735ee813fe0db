// user.go defines the admin User model. A user has exactly one role tier;
// station_id is set only for TENANT_MANAGER users.
package models

import "time"

// User represents an admin panel user account.
type User struct {
	ID        string  `db:"id" json:"id"`
	Email     string  `db:"email" json:"email"`
	Name      string  `db:"name" json:"name"`
	Role      string  `db:"role" json:"role"`
	StationID *string `db:"station_id" json:"station_id,omitempty"`

	SoftDelete

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
