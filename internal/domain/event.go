package domain

import "time"

// Event is the part of the catalog entity this engine reads and writes.
// TotalSeats is fixed once bookings exist; AvailableSeats moves only through
// the inventory ledger.
type Event struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	OrganizerID    uint      `json:"organizer_id"`
	Price          int64     `json:"price"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	StartDate      time.Time `json:"start_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
