// Package models contains domain models for promptvault.
package models

import "time"

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         *string   `json:"name,omitempty"`
	Email        *string   `json:"email,omitempty"`
	Image        *string   `json:"image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary returns the public projection of the user.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Username: u.Username, Name: u.Name, Email: u.Email, Image: u.Image}
}

// UserSummary is the public projection of a user embedded in other responses.
type UserSummary struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Image    *string `json:"image,omitempty"`
}
