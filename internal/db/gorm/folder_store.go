// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/thebtf/promptvault/pkg/models"
)

// FolderStore provides folder-related database operations using GORM.
type FolderStore struct {
	db *gorm.DB
}

// Create stores a new folder and fills in its generated fields.
func (s *FolderStore) Create(ctx context.Context, f *models.Folder) error {
	row := &Folder{
		ID:          f.ID,
		Name:        f.Name,
		Description: nullStringPtr(f.Description),
		OwnerID:     f.OwnerID,
		ParentID:    nullStringPtr(f.ParentID),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*f = *toModelFolder(row)
	return nil
}

// GetByID returns the folder, or nil when it does not exist.
func (s *FolderStore) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	var row Folder
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelFolder(&row), nil
}

// Update sets the folder's name and description.
func (s *FolderStore) Update(ctx context.Context, id, name string, description *string) error {
	return s.db.WithContext(ctx).Model(&Folder{}).Where("id = ?", id).Updates(map[string]any{
		"name":        name,
		"description": nullStringPtr(description),
	}).Error
}

// SetParent re-parents the folder, or makes it a root when parentID is nil.
func (s *FolderStore) SetParent(ctx context.Context, id string, parentID *string) error {
	return s.db.WithContext(ctx).Model(&Folder{}).Where("id = ?", id).
		Update("parent_id", nullStringPtr(parentID)).Error
}

// Delete removes the folder row.
func (s *FolderStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&Folder{}).Error
}

// ListByOwner returns every folder of the owner ordered by name.
func (s *FolderStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Folder, error) {
	var rows []Folder
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelFolders(rows), nil
}

// Children returns the direct children of a folder ordered by name.
func (s *FolderStore) Children(ctx context.Context, id string) ([]*models.Folder, error) {
	var rows []Folder
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", id).
		Order("name ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toModelFolders(rows), nil
}

// CountChildren counts the direct children of a folder.
func (s *FolderStore) CountChildren(ctx context.Context, id string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Folder{}).Where("parent_id = ?", id).Count(&count).Error
	return count, err
}

// GetSummaries returns id/name pairs keyed by folder id. Unknown ids are omitted.
func (s *FolderStore) GetSummaries(ctx context.Context, ids []string) (map[string]*models.FolderSummary, error) {
	out := make(map[string]*models.FolderSummary, len(ids))
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Folder
	if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = &models.FolderSummary{ID: r.ID, Name: r.Name}
	}
	return out, nil
}
