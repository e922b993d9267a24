// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// TeamStore provides team and membership operations using GORM.
type TeamStore struct {
	db *gorm.DB
}

// Create stores a new team and fills in its generated fields.
func (s *TeamStore) Create(ctx context.Context, t *models.Team) error {
	row := &Team{
		ID:          t.ID,
		Name:        t.Name,
		Description: nullStringPtr(t.Description),
		CreatorID:   t.CreatorID,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*t = *toModelTeam(row)
	return nil
}

// GetByID returns the team, or nil when it does not exist.
func (s *TeamStore) GetByID(ctx context.Context, id string) (*models.Team, error) {
	var row Team
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelTeam(&row), nil
}

// Update sets the team's name and description.
func (s *TeamStore) Update(ctx context.Context, id, name string, description *string) error {
	return s.db.WithContext(ctx).Model(&Team{}).Where("id = ?", id).Updates(map[string]any{
		"name":        name,
		"description": nullStringPtr(description),
	}).Error
}

// Delete removes the team and all of its memberships.
func (s *TeamStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("team_id = ?", id).Delete(&TeamMember{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&Team{}).Error
}

// ListForUser returns the teams userID belongs to, newest first.
func (s *TeamStore) ListForUser(ctx context.Context, userID string) ([]*models.Team, error) {
	var rows []Team
	err := s.db.WithContext(ctx).
		Where("id IN (SELECT team_id FROM team_members WHERE user_id = ?)", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*models.Team, len(rows))
	for i := range rows {
		out[i] = toModelTeam(&rows[i])
	}
	return out, nil
}

// GetSummaries returns id/name pairs keyed by team id. Unknown ids are omitted.
func (s *TeamStore) GetSummaries(ctx context.Context, ids []string) (map[string]*models.TeamSummary, error) {
	out := make(map[string]*models.TeamSummary, len(ids))
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Team
	if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = &models.TeamSummary{ID: r.ID, Name: r.Name}
	}
	return out, nil
}

// Memberships

// GetMember returns userID's membership of the team, or nil.
func (s *TeamStore) GetMember(ctx context.Context, teamID, userID string) (*models.TeamMember, error) {
	var row TeamMember
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Take(&row).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelTeamMember(&row), nil
}

// AddMember adds userID to the team. Adding an existing member is an
// invalid-state error.
func (s *TeamStore) AddMember(ctx context.Context, teamID, userID string, role models.TeamRole) (*models.TeamMember, error) {
	row := &TeamMember{TeamID: teamID, UserID: userID, Role: role}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.InvalidState("user is already a member of this team")
		}
		return nil, err
	}
	return toModelTeamMember(row), nil
}

// RemoveMember drops userID from the team and reports whether a membership existed.
func (s *TeamStore) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&TeamMember{})
	return res.RowsAffected > 0, res.Error
}

// SetMemberRole changes a member's role.
func (s *TeamStore) SetMemberRole(ctx context.Context, teamID, userID string, role models.TeamRole) error {
	return s.db.WithContext(ctx).Model(&TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Update("role", role).Error
}

// ListMembers returns the team's members in the order they joined.
func (s *TeamStore) ListMembers(ctx context.Context, teamID string) ([]*models.TeamMember, error) {
	var rows []TeamMember
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("joined_at ASC").Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*models.TeamMember, len(rows))
	for i := range rows {
		out[i] = toModelTeamMember(&rows[i])
	}
	return out, nil
}

// MemberTeamIDs returns the subset of teamIDs that userID belongs to.
func (s *TeamStore) MemberTeamIDs(ctx context.Context, userID string, teamIDs []string) ([]string, error) {
	teamIDs = uniqueStrings(teamIDs)
	if len(teamIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&TeamMember{}).
		Where("user_id = ? AND team_id IN ?", userID, teamIDs).
		Pluck("team_id", &ids).Error
	return ids, err
}
