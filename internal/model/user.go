// Package model defines domain entities for the application.
package model

import "time"

// User represents the account that owns pages and API keys.
// Plan is maintained by the billing system; this service only reads it.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}
