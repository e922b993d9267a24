// Package models contains domain models for promptvault.
package models

import "time"

// TeamRole is a member's role within a team.
type TeamRole string

const (
	TeamRoleAdmin  TeamRole = "ADMIN"
	TeamRoleMember TeamRole = "MEMBER"
)

// Valid reports whether r is a known role.
func (r TeamRole) Valid() bool {
	return r == TeamRoleAdmin || r == TeamRoleMember
}

// Team is a named group of users that prompts can be shared with.
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatorID   string    `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TeamSummary is the id/name pair embedded in prompt responses.
type TeamSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TeamMember is one user's membership in a team.
type TeamMember struct {
	TeamID   string       `json:"team_id"`
	UserID   string       `json:"user_id"`
	Role     TeamRole     `json:"role"`
	User     *UserSummary `json:"user,omitempty"`
	JoinedAt time.Time    `json:"joined_at"`
}

// TeamDetail is a team with its creator and members.
type TeamDetail struct {
	*Team
	Creator *UserSummary  `json:"creator,omitempty"`
	Members []*TeamMember `json:"members"`
}
