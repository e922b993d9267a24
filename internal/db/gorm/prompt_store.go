// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// Page size bounds for prompt listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// PromptStore provides prompt-related database operations using GORM.
type PromptStore struct {
	db *gorm.DB
}

// PromptFilter selects which prompts a listing returns.
type PromptFilter struct {
	// ViewerID restricts results to prompts the viewer can see.
	ViewerID    string
	FolderID    *string
	ContentType models.ContentType
	Visibility  models.Visibility
	// Tags matches prompts carrying any of the given tags.
	Tags []string
	// Query is a case-insensitive substring of title, content or usage notes,
	// or an exact tag.
	Query  string
	Cursor string
	Limit  int
}

// Create stores a new prompt and fills in its generated fields.
func (s *PromptStore) Create(ctx context.Context, p *models.Prompt) error {
	dbPrompt := &Prompt{
		ID:             p.ID,
		Title:          p.Title,
		Content:        p.Content,
		ContentURL:     nullStringPtr(p.ContentURL),
		UsageNotes:     nullStringPtr(p.UsageNotes),
		ContentType:    p.ContentType,
		Variables:      p.Variables,
		ExampleIO:      p.ExampleIO,
		Tags:           p.Tags,
		CustomSections: p.CustomSections,
		Metadata:       p.Metadata,
		OwnerID:        p.OwnerID,
		FolderID:       nullStringPtr(p.FolderID),
		Visibility:     p.Visibility,
	}
	if err := s.db.WithContext(ctx).Create(dbPrompt).Error; err != nil {
		return err
	}
	*p = *toModelPrompt(dbPrompt)
	return nil
}

// GetByID returns a live prompt, or nil when it does not exist or was deleted.
func (s *PromptStore) GetByID(ctx context.Context, id string) (*models.Prompt, error) {
	var dbPrompt Prompt
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&dbPrompt).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelPrompt(&dbPrompt), nil
}

// GetForUpdate loads a live prompt and locks its row until the transaction
// ends. SQLite has no row locks; its write transactions are already serialized
// by the immediate begin mode.
func (s *PromptStore) GetForUpdate(ctx context.Context, id string) (*models.Prompt, error) {
	var dbPrompt Prompt
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&dbPrompt).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelPrompt(&dbPrompt), nil
}

// GetAccess loads what an access decision needs for actorID on the prompt,
// including soft-deleted prompts. Returns nil when the prompt never existed.
func (s *PromptStore) GetAccess(ctx context.Context, promptID, actorID string) (*models.PromptAccess, error) {
	var dbPrompt Prompt
	err := s.db.WithContext(ctx).Unscoped().
		Select("id", "owner_id", "visibility", "deleted_at").
		Where("id = ?", promptID).
		Take(&dbPrompt).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	access := &models.PromptAccess{
		PromptID:   dbPrompt.ID,
		OwnerID:    dbPrompt.OwnerID,
		Visibility: dbPrompt.Visibility,
		Deleted:    dbPrompt.DeletedAt.Valid,
	}
	if actorID == "" || actorID == dbPrompt.OwnerID {
		return access, nil
	}

	if access.CoCreator, err = s.IsCoCreator(ctx, promptID, actorID); err != nil {
		return nil, err
	}

	if dbPrompt.Visibility == models.VisibilityTeam {
		var count int64
		err = s.db.WithContext(ctx).Model(&PromptTeamAccess{}).
			Joins("JOIN team_members tm ON tm.team_id = prompt_team_access.team_id").
			Where("prompt_team_access.prompt_id = ? AND tm.user_id = ?", promptID, actorID).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		access.TeamMember = count > 0
	}
	return access, nil
}

// SetFields overwrites every editable field of a live prompt.
func (s *PromptStore) SetFields(ctx context.Context, id string, f models.PromptFields, contentType models.ContentType) error {
	tags := f.Tags
	if tags == nil {
		tags = models.JSONStringArray{}
	}
	return s.db.WithContext(ctx).Model(&Prompt{}).Where("id = ?", id).Updates(map[string]any{
		"title":           f.Title,
		"content":         f.Content,
		"content_url":     nullStringPtr(f.ContentURL),
		"usage_notes":     nullStringPtr(f.UsageNotes),
		"content_type":    contentType,
		"variables":       f.Variables,
		"example_io":      f.ExampleIO,
		"tags":            tags,
		"custom_sections": f.CustomSections,
		"metadata":        f.Metadata,
	}).Error
}

// SetFolder moves a live prompt to a folder, or to the root when folderID is nil.
func (s *PromptStore) SetFolder(ctx context.Context, id string, folderID *string) error {
	return s.db.WithContext(ctx).Model(&Prompt{}).Where("id = ?", id).
		Update("folder_id", nullStringPtr(folderID)).Error
}

// SetVisibility changes the visibility tier of a prompt.
func (s *PromptStore) SetVisibility(ctx context.Context, id string, v models.Visibility) error {
	return s.db.WithContext(ctx).Model(&Prompt{}).Where("id = ?", id).
		Update("visibility", v).Error
}

// SoftDelete marks a prompt deleted. Its versions, grants and activity are kept.
func (s *PromptStore) SoftDelete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&Prompt{}).Error
}

// List returns one page of prompts visible to filter.ViewerID, newest update
// first. The cursor is the id of the first prompt of the page to return.
func (s *PromptStore) List(ctx context.Context, filter PromptFilter) ([]*models.Prompt, *string, error) {
	limit := clampLimit(filter.Limit, DefaultPageSize, MaxPageSize)

	q := s.db.WithContext(ctx).Model(&Prompt{}).
		Scopes(visibleTo(filter.ViewerID), promptFilters(filter))

	if filter.Cursor != "" {
		var cur Prompt
		err := s.db.WithContext(ctx).Unscoped().
			Select("id", "updated_at").
			Where("id = ?", filter.Cursor).
			Take(&cur).Error
		if isRecordNotFound(err) {
			return nil, nil, apperr.Validation("invalid cursor")
		}
		if err != nil {
			return nil, nil, err
		}
		q = q.Where("(prompts.updated_at < ? OR (prompts.updated_at = ? AND prompts.id <= ?))",
			cur.UpdatedAt, cur.UpdatedAt, cur.ID)
	}

	var rows []Prompt
	err := q.Scopes(recencyOrdering()).Limit(limit + 1).Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	var next *string
	if len(rows) > limit {
		id := rows[limit].ID
		next = &id
		rows = rows[:limit]
	}
	return toModelPrompts(rows), next, nil
}

// ListInFolder returns the live prompts of a folder, newest update first.
func (s *PromptStore) ListInFolder(ctx context.Context, folderID string) ([]*models.Prompt, error) {
	var rows []Prompt
	err := s.db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Scopes(recencyOrdering()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelPrompts(rows), nil
}

// CountInFolder counts the live prompts of a folder.
func (s *PromptStore) CountInFolder(ctx context.Context, folderID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Prompt{}).Where("folder_id = ?", folderID).Count(&count).Error
	return count, err
}

// CountByFolder counts live prompts per folder for the given folders.
func (s *PromptStore) CountByFolder(ctx context.Context, folderIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(folderIDs))
	if len(folderIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		FolderID string
		Count    int
	}
	err := s.db.WithContext(ctx).Model(&Prompt{}).
		Select("folder_id, COUNT(*) AS count").
		Where("folder_id IN ?", folderIDs).
		Group("folder_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.FolderID] = r.Count
	}
	return out, nil
}

// DetachDeletedFromFolder clears the folder of soft-deleted prompts so the
// folder row can be removed.
func (s *PromptStore) DetachDeletedFromFolder(ctx context.Context, folderID string) error {
	return s.db.WithContext(ctx).Unscoped().Model(&Prompt{}).
		Where("folder_id = ? AND deleted_at IS NOT NULL", folderID).
		UpdateColumn("folder_id", nil).Error
}

// IDsSharedOnlyWith returns TEAM prompts, deleted or not, whose only team
// grant is teamID.
func (s *PromptStore) IDsSharedOnlyWith(ctx context.Context, teamID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Unscoped().Model(&Prompt{}).
		Where("visibility = ?", models.VisibilityTeam).
		Where("id IN (SELECT prompt_id FROM prompt_team_access WHERE team_id = ?)", teamID).
		Where("(SELECT COUNT(*) FROM prompt_team_access a WHERE a.prompt_id = prompts.id) = 1").
		Pluck("id", &ids).Error
	return ids, err
}

// MakePrivate sets visibility PRIVATE on the given prompts, deleted or not.
func (s *PromptStore) MakePrivate(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Unscoped().Model(&Prompt{}).
		Where("id IN ?", ids).
		Update("visibility", models.VisibilityPrivate).Error
}

// Co-creators

// AddCoCreator grants userID co-creator rights. Adding an existing
// co-creator is an invalid-state error.
func (s *PromptStore) AddCoCreator(ctx context.Context, promptID, userID string) (*models.PromptCoCreator, error) {
	row := &PromptCoCreator{PromptID: promptID, UserID: userID}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.InvalidState("user is already a co-creator")
		}
		return nil, err
	}
	return &models.PromptCoCreator{PromptID: row.PromptID, UserID: row.UserID, AddedAt: fromNanos(row.AddedAt)}, nil
}

// RemoveCoCreator revokes a grant and reports whether one existed.
func (s *PromptStore) RemoveCoCreator(ctx context.Context, promptID, userID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("prompt_id = ? AND user_id = ?", promptID, userID).
		Delete(&PromptCoCreator{})
	return res.RowsAffected > 0, res.Error
}

// IsCoCreator reports whether userID is a co-creator of the prompt.
func (s *PromptStore) IsCoCreator(ctx context.Context, promptID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&PromptCoCreator{}).
		Where("prompt_id = ? AND user_id = ?", promptID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListCoCreators returns the prompt's co-creators in the order they were added.
func (s *PromptStore) ListCoCreators(ctx context.Context, promptID string) ([]*models.PromptCoCreator, error) {
	var rows []PromptCoCreator
	err := s.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Order("added_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*models.PromptCoCreator, len(rows))
	for i, r := range rows {
		out[i] = &models.PromptCoCreator{PromptID: r.PromptID, UserID: r.UserID, AddedAt: fromNanos(r.AddedAt)}
	}
	return out, nil
}

// Team access

// ReplaceTeamAccess makes teamIDs exactly the set of teams the prompt is shared with.
func (s *PromptStore) ReplaceTeamAccess(ctx context.Context, promptID string, teamIDs []string) error {
	if err := s.ClearTeamAccess(ctx, promptID); err != nil {
		return err
	}
	ids := uniqueStrings(teamIDs)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]PromptTeamAccess, len(ids))
	for i, id := range ids {
		rows[i] = PromptTeamAccess{PromptID: promptID, TeamID: id}
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

// ClearTeamAccess removes every team grant of the prompt.
func (s *PromptStore) ClearTeamAccess(ctx context.Context, promptID string) error {
	return s.db.WithContext(ctx).Where("prompt_id = ?", promptID).Delete(&PromptTeamAccess{}).Error
}

// DeleteTeamAccessForTeam removes every grant made to the team.
func (s *PromptStore) DeleteTeamAccessForTeam(ctx context.Context, teamID string) error {
	return s.db.WithContext(ctx).Where("team_id = ?", teamID).Delete(&PromptTeamAccess{}).Error
}

// TeamAccessIDs returns the ids of teams the prompt is shared with.
func (s *PromptStore) TeamAccessIDs(ctx context.Context, promptID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&PromptTeamAccess{}).
		Where("prompt_id = ?", promptID).
		Order("team_id").
		Pluck("team_id", &ids).Error
	return ids, err
}

// =============================================================================
// GORM Scopes (Reusable Query Filters)
// =============================================================================

// visibleTo restricts prompts to those userID may view: owned, co-created,
// public, or shared with a team userID belongs to.
func visibleTo(userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(`(prompts.owner_id = ?
			OR prompts.visibility = ?
			OR prompts.id IN (SELECT cc.prompt_id FROM prompt_co_creators cc WHERE cc.user_id = ?)
			OR (prompts.visibility = ? AND prompts.id IN (
				SELECT pta.prompt_id FROM prompt_team_access pta
				JOIN team_members tm ON tm.team_id = pta.team_id
				WHERE tm.user_id = ?)))`,
			userID, models.VisibilityPublic, userID, models.VisibilityTeam, userID)
	}
}

// promptFilters applies the optional attribute, tag and text filters.
func promptFilters(f PromptFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.FolderID != nil {
			db = db.Where("prompts.folder_id = ?", *f.FolderID)
		}
		if f.ContentType != "" {
			db = db.Where("prompts.content_type = ?", f.ContentType)
		}
		if f.Visibility != "" {
			db = db.Where("prompts.visibility = ?", f.Visibility)
		}
		if tags := uniqueStrings(f.Tags); len(tags) > 0 {
			match := tagMatchSQL(db)
			conds := make([]string, len(tags))
			args := make([]any, len(tags))
			for i, tag := range tags {
				conds[i] = match
				args[i] = tag
			}
			db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
		}
		if f.Query != "" {
			like := containsPattern(f.Query)
			fold := foldFunc(db)
			db = db.Where(fmt.Sprintf(`(%[1]s(prompts.title) LIKE ? ESCAPE '\'
				OR %[1]s(prompts.content) LIKE ? ESCAPE '\'
				OR %[1]s(COALESCE(prompts.usage_notes, '')) LIKE ? ESCAPE '\'
				OR %[2]s)`, fold, tagMatchSQL(db)),
				like, like, like, f.Query)
		}
		return db
	}
}

// recencyOrdering orders prompts by last update, newest first, with id as a
// stable tie-break.
func recencyOrdering() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("prompts.updated_at DESC").Order("prompts.id DESC")
	}
}
