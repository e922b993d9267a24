// Package models contains domain models for promptvault.
package models

import (
	"time"
)

// ContentType classifies what a prompt holds.
type ContentType string

const (
	ContentTypePrompt              ContentType = "PROMPT"
	ContentTypeTemplate            ContentType = "TEMPLATE"
	ContentTypeConversation        ContentType = "CONVERSATION"
	ContentTypeConversationSummary ContentType = "CONVERSATION_SUMMARY"
	ContentTypeMetaNote            ContentType = "META_NOTE"
	ContentTypePromptWithExamples  ContentType = "PROMPT_WITH_EXAMPLES"
)

// ContentTypes lists every valid content type.
var ContentTypes = []ContentType{
	ContentTypePrompt,
	ContentTypeTemplate,
	ContentTypeConversation,
	ContentTypeConversationSummary,
	ContentTypeMetaNote,
	ContentTypePromptWithExamples,
}

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	for _, ct := range ContentTypes {
		if c == ct {
			return true
		}
	}
	return false
}

// Visibility is a prompt's access tier.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityTeam    Visibility = "TEAM"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityTeam:
		return true
	}
	return false
}

// PromptFields are the editable fields captured by a version snapshot.
type PromptFields struct {
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	ContentURL     *string         `json:"content_url,omitempty"`
	UsageNotes     *string         `json:"usage_notes,omitempty"`
	Variables      Variables       `json:"variables,omitempty"`
	ExampleIO      ExampleIOs      `json:"example_io,omitempty"`
	Tags           JSONStringArray `json:"tags"`
	CustomSections JSONObject      `json:"custom_sections,omitempty"`
	Metadata       JSONObject      `json:"metadata,omitempty"`
}

// Clone returns an independent copy of the fields.
func (f PromptFields) Clone() PromptFields {
	return PromptFields{
		Title:          f.Title,
		Content:        f.Content,
		ContentURL:     cloneString(f.ContentURL),
		UsageNotes:     cloneString(f.UsageNotes),
		Variables:      f.Variables.Clone(),
		ExampleIO:      f.ExampleIO.Clone(),
		Tags:           f.Tags.Clone(),
		CustomSections: f.CustomSections.Clone(),
		Metadata:       f.Metadata.Clone(),
	}
}

// Prompt is a stored prompt owned by one user.
type Prompt struct {
	ID string `json:"id"`
	PromptFields
	ContentType ContentType `json:"content_type"`
	OwnerID     string      `json:"owner_id"`
	FolderID    *string     `json:"folder_id,omitempty"`
	Visibility  Visibility  `json:"visibility"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsDeleted reports whether the prompt has been soft-deleted.
func (p *Prompt) IsDeleted() bool {
	return p.DeletedAt != nil
}

// PromptCoCreator grants a non-owner edit/view/share rights on a prompt.
type PromptCoCreator struct {
	PromptID string       `json:"prompt_id"`
	UserID   string       `json:"user_id"`
	User     *UserSummary `json:"user,omitempty"`
	AddedAt  time.Time    `json:"added_at"`
}

// PromptTeamAccess grants members of a team view access to a TEAM prompt.
type PromptTeamAccess struct {
	PromptID string `json:"prompt_id"`
	TeamID   string `json:"team_id"`
}

// PromptVersion is an immutable snapshot of a prompt's editable fields.
type PromptVersion struct {
	ID       string `json:"id"`
	PromptID string `json:"prompt_id"`
	Version  int    `json:"version"`
	PromptFields
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// PromptDetail is a prompt with its related records, as returned by get.
type PromptDetail struct {
	*Prompt
	Owner      *UserSummary       `json:"owner,omitempty"`
	Folder     *FolderSummary     `json:"folder,omitempty"`
	CoCreators []*PromptCoCreator `json:"co_creators"`
	Teams      []*TeamSummary     `json:"teams"`
}

// PromptListItem is a prompt with owner and folder summaries, as returned by list and search.
type PromptListItem struct {
	*Prompt
	Owner  *UserSummary   `json:"owner,omitempty"`
	Folder *FolderSummary `json:"folder,omitempty"`
}

// Page is one cursor-paginated slice of results.
type Page[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"next_cursor,omitempty"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// PromptAccess is what an access decision needs to know about one prompt
// from the point of view of one actor.
type PromptAccess struct {
	PromptID   string
	OwnerID    string
	Visibility Visibility
	Deleted    bool
	// CoCreator is true when the actor is listed as a co-creator.
	CoCreator bool
	// TeamMember is true when the actor belongs to a team the prompt is shared with.
	TeamMember bool
}
