package entity

import "time"

// Employee represents an employee for data transfer between layers.
type Employee struct {
	ID           int       `json:"id"`
	RFC          string    `json:"rfc"`
	Name         string    `json:"name"`
	Carpeta      *string   `json:"carpeta,omitempty"`
	PasswordHash string    `json:"-"`
	LegacyID     *int      `json:"legacy_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
