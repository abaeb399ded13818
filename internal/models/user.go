package models

import "time"

// User owns accounts; transfers address the counterparty by username.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not serialized
	AccountIDs   []string  `json:"accounts"`
	CreatedAt    time.Time `json:"createdAt"`
}
