// resources.go defines the station-scoped business records managed by the
// admin panel. Each carries the soft-delete attributes; the booking/payment
// business logic that populates them lives in the wider platform, outside
// this service.
package models

import "time"

// Booking is a scheduled catering event.
type Booking struct {
	ID           string    `db:"id" json:"id"`
	StationID    string    `db:"station_id" json:"station_id"`
	CustomerName string    `db:"customer_name" json:"customer_name"`
	EventDate    time.Time `db:"event_date" json:"event_date"`
	PartySize    int       `db:"party_size" json:"party_size"`
	Status       string    `db:"status" json:"status"`

	SoftDelete

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Customer is a known customer record.
type Customer struct {
	ID        string `db:"id" json:"id"`
	StationID string `db:"station_id" json:"station_id"`
	Name      string `db:"name" json:"name"`
	Email     string `db:"email" json:"email"`
	Phone     string `db:"phone" json:"phone"`

	SoftDelete

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Lead is a marketing pipeline inquiry.
type Lead struct {
	ID        string `db:"id" json:"id"`
	StationID string `db:"station_id" json:"station_id"`
	Name      string `db:"name" json:"name"`
	Email     string `db:"email" json:"email"`
	Source    string `db:"source" json:"source"`

	SoftDelete

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Review is a published customer review.
type Review struct {
	ID         string `db:"id" json:"id"`
	StationID  string `db:"station_id" json:"station_id"`
	AuthorName string `db:"author_name" json:"author_name"`
	Rating     int    `db:"rating" json:"rating"`
	Body       string `db:"body" json:"body"`

	SoftDelete

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
