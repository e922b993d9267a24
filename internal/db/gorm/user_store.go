// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// UserStore provides user-related database operations using GORM.
type UserStore struct {
	db *gorm.DB
}

// Create stores a new user. A taken username or email is an invalid-state error.
func (s *UserStore) Create(ctx context.Context, u *models.User) (*models.User, error) {
	dbUser := &User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Name:         nullStringPtr(u.Name),
		Email:        nullStringPtr(u.Email),
		Image:        nullStringPtr(u.Image),
	}
	if err := s.db.WithContext(ctx).Create(dbUser).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.InvalidState("username or email already registered")
		}
		return nil, err
	}
	return toModelUser(dbUser), nil
}

// GetByID returns the user, or nil when it does not exist.
func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

// GetByUsername returns the user with the exact username, or nil.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.first(ctx, "username = ?", username)
}

// GetByEmail returns the user with the email (case-insensitive), or nil.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "LOWER(email) = ?", strings.ToLower(email))
}

// Lookup resolves a username or an email address to a user.
func (s *UserStore) Lookup(ctx context.Context, query string) (*models.User, error) {
	if strings.Contains(query, "@") {
		return s.GetByEmail(ctx, query)
	}
	return s.GetByUsername(ctx, query)
}

func (s *UserStore) first(ctx context.Context, cond string, arg any) (*models.User, error) {
	var dbUser User
	err := s.db.WithContext(ctx).Where(cond, arg).Take(&dbUser).Error
	if isRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelUser(&dbUser), nil
}

// Exists reports whether a user with the id exists.
func (s *UserStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// GetSummaries returns public summaries keyed by user id. Unknown ids are omitted.
func (s *UserStore) GetSummaries(ctx context.Context, ids []string) (map[string]*models.UserSummary, error) {
	out := make(map[string]*models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []User
	if err := s.db.WithContext(ctx).Where("id IN ?", uniqueStrings(ids)).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = toModelUser(&rows[i]).Summary()
	}
	return out, nil
}

// uniqueStrings drops duplicates and empty values, preserving order.
func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
