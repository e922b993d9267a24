// Package permission decides who may do what to prompts, folders and teams.
package permission

import (
	"context"
	"fmt"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// Action is an operation on a prompt that requires permission.
type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionShare  Action = "share"
)

// Decide applies the access rules to one actor and one prompt:
// the owner may do anything, co-creators anything but delete, anyone may view
// a PUBLIC prompt, and members of a granted team may view a TEAM prompt.
// Deleted prompts deny everything.
func Decide(actorID string, access *models.PromptAccess, action Action) bool {
	if access == nil || access.Deleted || actorID == "" {
		return false
	}
	if actorID == access.OwnerID {
		return true
	}
	if access.CoCreator && action != ActionDelete {
		return true
	}
	if action != ActionView {
		return false
	}
	switch access.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityTeam:
		return access.TeamMember
	}
	return false
}

// PromptSource loads prompt access facts.
type PromptSource interface {
	GetAccess(ctx context.Context, promptID, actorID string) (*models.PromptAccess, error)
}

// FolderSource loads folders.
type FolderSource interface {
	GetByID(ctx context.Context, id string) (*models.Folder, error)
}

// TeamSource loads teams and memberships.
type TeamSource interface {
	GetByID(ctx context.Context, id string) (*models.Team, error)
	GetMember(ctx context.Context, teamID, userID string) (*models.TeamMember, error)
}

// Evaluator answers permission questions against the store. It holds no
// cache; every call reads current state.
type Evaluator struct {
	prompts PromptSource
	folders FolderSource
	teams   TeamSource
}

// New creates an Evaluator. Pass stores bound to a transaction to make checks
// part of it.
func New(prompts PromptSource, folders FolderSource, teams TeamSource) *Evaluator {
	return &Evaluator{prompts: prompts, folders: folders, teams: teams}
}

// Check reports whether actorID may perform action on the prompt. Missing and
// deleted prompts are denied.
func (e *Evaluator) Check(ctx context.Context, actorID, promptID string, action Action) (bool, error) {
	access, err := e.prompts.GetAccess(ctx, promptID, actorID)
	if err != nil {
		return false, fmt.Errorf("load prompt access: %w", err)
	}
	return Decide(actorID, access, action), nil
}

// Require is Check with typed failures: NotFound when the prompt is missing or
// deleted, Forbidden when the actor lacks the permission.
func (e *Evaluator) Require(ctx context.Context, actorID, promptID string, action Action) (*models.PromptAccess, error) {
	access, err := e.prompts.GetAccess(ctx, promptID, actorID)
	if err != nil {
		return nil, fmt.Errorf("load prompt access: %w", err)
	}
	if access == nil || access.Deleted {
		return nil, apperr.NotFound("prompt %s not found", promptID)
	}
	if !Decide(actorID, access, action) {
		return nil, apperr.Forbidden("not allowed to %s this prompt", action)
	}
	return access, nil
}

// RequireFolderOwner returns the folder when actorID owns it.
func (e *Evaluator) RequireFolderOwner(ctx context.Context, actorID, folderID string) (*models.Folder, error) {
	folder, err := e.folders.GetByID(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("load folder: %w", err)
	}
	if folder == nil {
		return nil, apperr.NotFound("folder %s not found", folderID)
	}
	if folder.OwnerID != actorID {
		return nil, apperr.Forbidden("folder belongs to another user")
	}
	return folder, nil
}

// RequireTeamMember returns the team and actorID's membership of it.
func (e *Evaluator) RequireTeamMember(ctx context.Context, actorID, teamID string) (*models.Team, *models.TeamMember, error) {
	team, err := e.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, nil, fmt.Errorf("load team: %w", err)
	}
	if team == nil {
		return nil, nil, apperr.NotFound("team %s not found", teamID)
	}
	member, err := e.teams.GetMember(ctx, teamID, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("load membership: %w", err)
	}
	if member == nil {
		return nil, nil, apperr.Forbidden("not a member of this team")
	}
	return team, member, nil
}

// RequireTeamAdmin returns the team when actorID is one of its admins.
func (e *Evaluator) RequireTeamAdmin(ctx context.Context, actorID, teamID string) (*models.Team, error) {
	team, member, err := e.RequireTeamMember(ctx, actorID, teamID)
	if err != nil {
		return nil, err
	}
	if member.Role != models.TeamRoleAdmin {
		return nil, apperr.Forbidden("team admin role required")
	}
	return team, nil
}
