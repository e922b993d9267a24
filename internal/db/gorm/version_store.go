// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// VersionStore provides prompt version history operations using GORM.
type VersionStore struct {
	db *gorm.DB
}

// Latest returns the highest version number of the prompt, or 0 when it has none.
func (s *VersionStore) Latest(ctx context.Context, promptID string) (int, error) {
	var latest int
	err := s.db.WithContext(ctx).Model(&PromptVersion{}).
		Where("prompt_id = ?", promptID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&latest).Error
	return latest, err
}

// Create stores a version row. A clash on (prompt, version) is an invalid-state
// error; it means another writer numbered the same version first.
func (s *VersionStore) Create(ctx context.Context, v *models.PromptVersion) error {
	f := v.PromptFields
	row := &PromptVersion{
		ID:             v.ID,
		PromptID:       v.PromptID,
		Version:        v.Version,
		Title:          f.Title,
		Content:        f.Content,
		ContentURL:     nullStringPtr(f.ContentURL),
		UsageNotes:     nullStringPtr(f.UsageNotes),
		Variables:      f.Variables,
		ExampleIO:      f.ExampleIO,
		Tags:           f.Tags,
		CustomSections: f.CustomSections,
		Metadata:       f.Metadata,
		CreatedBy:      v.CreatedBy,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.InvalidState("version %d of prompt %s already exists", v.Version, v.PromptID)
		}
		return err
	}
	*v = *toModelVersion(row)
	return nil
}

// Get returns one version of a prompt, or nil when it does not exist.
func (s *VersionStore) Get(ctx context.Context, promptID string, version int) (*models.PromptVersion, error) {
	var row PromptVersion
	err := s.db.WithContext(ctx).
		Where("prompt_id = ? AND version = ?", promptID, version).
		Take(&row).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelVersion(&row), nil
}

// List returns every version of a prompt, newest first.
func (s *VersionStore) List(ctx context.Context, promptID string) ([]*models.PromptVersion, error) {
	var rows []PromptVersion
	err := s.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Order("version DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*models.PromptVersion, len(rows))
	for i := range rows {
		out[i] = toModelVersion(&rows[i])
	}
	return out, nil
}
