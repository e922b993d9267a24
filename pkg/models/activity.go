// Package models contains domain models for promptvault.
package models

import "time"

// ActivityAction is the kind of action an activity entry records.
type ActivityAction string

const (
	ActionCreated ActivityAction = "CREATED"
	ActionUpdated ActivityAction = "UPDATED"
	ActionViewed  ActivityAction = "VIEWED"
	ActionShared  ActivityAction = "SHARED"
	ActionCopied  ActivityAction = "COPIED"
	ActionMoved   ActivityAction = "MOVED"
	ActionDeleted ActivityAction = "DELETED"
)

// Valid reports whether a is a known action.
func (a ActivityAction) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionViewed, ActionShared, ActionCopied, ActionMoved, ActionDeleted:
		return true
	}
	return false
}

// ActivityLog is an append-only record of something a user did.
type ActivityLog struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	PromptID  *string        `json:"prompt_id,omitempty"`
	Action    ActivityAction `json:"action"`
	Metadata  JSONObject     `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActivityPrompt is the prompt projection attached to a user's own feed.
type ActivityPrompt struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	ContentType ContentType `json:"content_type"`
}

// ActivityEntry is an activity log row with its related prompt or user.
type ActivityEntry struct {
	*ActivityLog
	Prompt *ActivityPrompt `json:"prompt,omitempty"`
	User   *UserSummary    `json:"user,omitempty"`
}
