// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/thebtf/promptvault/pkg/models"
)

// Activity feed size bounds.
const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 200
)

// ActivityStore provides activity log operations using GORM.
type ActivityStore struct {
	db *gorm.DB
}

// Create appends an entry and fills in its generated fields.
func (s *ActivityStore) Create(ctx context.Context, entry *models.ActivityLog) error {
	row := &ActivityLog{
		ID:       entry.ID,
		UserID:   entry.UserID,
		PromptID: nullStringPtr(entry.PromptID),
		Action:   entry.Action,
		Metadata: entry.Metadata,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*entry = *toModelActivity(row)
	return nil
}

// ListByUser returns the user's own entries, newest first, each with a
// projection of the referenced prompt (deleted prompts included).
func (s *ActivityStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ActivityEntry, error) {
	var rows []ActivityLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(limit, DefaultActivityLimit, MaxActivityLimit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	var promptIDs []string
	for _, r := range rows {
		if r.PromptID.Valid {
			promptIDs = append(promptIDs, r.PromptID.String)
		}
	}
	prompts, err := s.promptProjections(ctx, promptIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*models.ActivityEntry, len(rows))
	for i := range rows {
		entry := &models.ActivityEntry{ActivityLog: toModelActivity(&rows[i])}
		if rows[i].PromptID.Valid {
			entry.Prompt = prompts[rows[i].PromptID.String]
		}
		out[i] = entry
	}
	return out, nil
}

// ListByPrompt returns every entry referencing the prompt, newest first,
// each with a summary of the acting user.
func (s *ActivityStore) ListByPrompt(ctx context.Context, promptID string, limit int) ([]*models.ActivityEntry, error) {
	var rows []ActivityLog
	err := s.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(limit, DefaultActivityLimit, MaxActivityLimit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, len(rows))
	for i, r := range rows {
		userIDs[i] = r.UserID
	}
	users, err := (&UserStore{db: s.db}).GetSummaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*models.ActivityEntry, len(rows))
	for i := range rows {
		out[i] = &models.ActivityEntry{
			ActivityLog: toModelActivity(&rows[i]),
			User:        users[rows[i].UserID],
		}
	}
	return out, nil
}

func (s *ActivityStore) promptProjections(ctx context.Context, ids []string) (map[string]*models.ActivityPrompt, error) {
	out := make(map[string]*models.ActivityPrompt)
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Prompt
	err := s.db.WithContext(ctx).Unscoped().
		Select("id", "title", "content_type").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = &models.ActivityPrompt{ID: r.ID, Title: r.Title, ContentType: r.ContentType}
	}
	return out, nil
}
