package service

import (
	"github.com/thebtf/promptvault/pkg/models"
)

// CreatePromptRequest is the input of PromptService.Create.
type CreatePromptRequest struct {
	Title          string             `json:"title" validate:"required,max=200"`
	Content        string             `json:"content" validate:"required"`
	ContentURL     *string            `json:"content_url" validate:"omitempty,url"`
	UsageNotes     *string            `json:"usage_notes"`
	ContentType    models.ContentType `json:"content_type" validate:"omitempty,oneof=PROMPT TEMPLATE CONVERSATION CONVERSATION_SUMMARY META_NOTE PROMPT_WITH_EXAMPLES"`
	Variables      models.Variables   `json:"variables" validate:"omitempty,dive"`
	ExampleIO      models.ExampleIOs  `json:"example_io"`
	Tags           []string           `json:"tags" validate:"omitempty,max=50,dive,max=50"`
	CustomSections models.JSONObject  `json:"custom_sections"`
	Metadata       models.JSONObject  `json:"metadata"`
	FolderID       *string            `json:"folder_id"`
	Visibility     models.Visibility  `json:"visibility" validate:"omitempty,oneof=PRIVATE PUBLIC TEAM"`
	// TeamIDs are the teams a TEAM prompt is shared with.
	TeamIDs []string `json:"team_ids"`
}

// UpdatePromptRequest is a partial update of a prompt's editable fields. Nil
// fields are left unchanged; an empty string clears an optional text field.
// Visibility and folder have their own operations.
type UpdatePromptRequest struct {
	Title          *string             `json:"title" validate:"omitempty,min=1,max=200"`
	Content        *string             `json:"content" validate:"omitempty,min=1"`
	ContentURL     *string             `json:"content_url" validate:"omitempty,url|len=0"`
	UsageNotes     *string             `json:"usage_notes"`
	ContentType    *models.ContentType `json:"content_type" validate:"omitempty,oneof=PROMPT TEMPLATE CONVERSATION CONVERSATION_SUMMARY META_NOTE PROMPT_WITH_EXAMPLES"`
	Variables      *models.Variables   `json:"variables" validate:"omitempty,dive"`
	ExampleIO      *models.ExampleIOs  `json:"example_io"`
	Tags           *[]string           `json:"tags" validate:"omitempty,max=50,dive,max=50"`
	CustomSections *models.JSONObject  `json:"custom_sections"`
	Metadata       *models.JSONObject  `json:"metadata"`
}

// ListPromptsRequest filters PromptService.List.
type ListPromptsRequest struct {
	FolderID    *string            `json:"folder_id"`
	ContentType models.ContentType `json:"content_type" validate:"omitempty,oneof=PROMPT TEMPLATE CONVERSATION CONVERSATION_SUMMARY META_NOTE PROMPT_WITH_EXAMPLES"`
	Visibility  models.Visibility  `json:"visibility" validate:"omitempty,oneof=PRIVATE PUBLIC TEAM"`
	Tags        []string           `json:"tags"`
	Cursor      string             `json:"cursor"`
	Limit       int                `json:"limit" validate:"omitempty,min=1,max=100"`
}

// SearchPromptsRequest is the input of PromptService.Search.
type SearchPromptsRequest struct {
	Query       string             `json:"query" validate:"required"`
	ContentType models.ContentType `json:"content_type" validate:"omitempty,oneof=PROMPT TEMPLATE CONVERSATION CONVERSATION_SUMMARY META_NOTE PROMPT_WITH_EXAMPLES"`
	Tags        []string           `json:"tags"`
	Cursor      string             `json:"cursor"`
	Limit       int                `json:"limit" validate:"omitempty,min=1,max=100"`
}

// UpdateVisibilityRequest changes a prompt's visibility. For TEAM, a nil
// TeamIDs keeps the current team set and a non-nil one replaces it.
type UpdateVisibilityRequest struct {
	Visibility models.Visibility `json:"visibility" validate:"required,oneof=PRIVATE PUBLIC TEAM"`
	TeamIDs    []string          `json:"team_ids"`
}

// MovePromptRequest moves a prompt to a folder, or to the root when FolderID is nil.
type MovePromptRequest struct {
	FolderID *string `json:"folder_id"`
}

// AddCoCreatorRequest names the user to grant co-creator rights to.
type AddCoCreatorRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// CreateFolderRequest is the input of FolderService.Create.
type CreateFolderRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	ParentID    *string `json:"parent_id"`
}

// UpdateFolderRequest renames a folder or changes its description.
type UpdateFolderRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// MoveFolderRequest re-parents a folder, or makes it a root when ParentID is nil.
type MoveFolderRequest struct {
	ParentID *string `json:"parent_id"`
}

// CreateTeamRequest is the input of TeamService.Create.
type CreateTeamRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// UpdateTeamRequest renames a team or changes its description.
type UpdateTeamRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// AddMemberRequest adds a user to a team.
type AddMemberRequest struct {
	UserID string          `json:"user_id" validate:"required"`
	Role   models.TeamRole `json:"role" validate:"omitempty,oneof=ADMIN MEMBER"`
}

// UpdateMemberRoleRequest changes a member's role.
type UpdateMemberRoleRequest struct {
	Role models.TeamRole `json:"role" validate:"required,oneof=ADMIN MEMBER"`
}

// LogActivityRequest records a manual activity entry.
type LogActivityRequest struct {
	PromptID *string               `json:"prompt_id"`
	Action   models.ActivityAction `json:"action" validate:"required,oneof=CREATED UPDATED VIEWED SHARED COPIED MOVED DELETED"`
	Metadata models.JSONObject     `json:"metadata"`
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=20,username"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
}

// LoginRequest authenticates an account.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
