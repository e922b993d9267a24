// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"database/sql"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thebtf/promptvault/pkg/models"
)

// GORM Models

// Note: JSON column types (Variables, ExampleIOs, JSONStringArray, JSONObject)
// come from pkg/models and implement sql.Scanner and driver.Valuer.
// Timestamps are unix nanoseconds so ordering and cursor comparisons are
// plain integer comparisons on every driver.

// User represents an account.
type User struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)"`
	Username     string         `gorm:"type:varchar(32);uniqueIndex;not null"`
	PasswordHash string         `gorm:"not null"`
	Name         sql.NullString `gorm:"type:text"`
	Email        sql.NullString `gorm:"type:varchar(255);uniqueIndex"`
	Image        sql.NullString `gorm:"type:text"`
	CreatedAt    int64          `gorm:"autoCreateTime:nano;not null"`
	UpdatedAt    int64          `gorm:"autoUpdateTime:nano;not null"`
}

func (User) TableName() string { return "users" }

// BeforeCreate hook assigns an ID when none was set.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Prompt represents a stored prompt. DeletedAt makes deletes soft and hides
// deleted rows from default-scoped queries.
type Prompt struct {
	ID             string                 `gorm:"primaryKey;type:varchar(36)"`
	Title          string                 `gorm:"type:text;not null"`
	Content        string                 `gorm:"type:text;not null"`
	ContentURL     sql.NullString         `gorm:"type:text"`
	UsageNotes     sql.NullString         `gorm:"type:text"`
	ContentType    models.ContentType     `gorm:"type:varchar(32);default:'PROMPT';not null;index"`
	Variables      models.Variables       `gorm:"type:text"`
	ExampleIO      models.ExampleIOs      `gorm:"column:example_io;type:text"`
	Tags           models.JSONStringArray `gorm:"type:text;not null"`
	CustomSections models.JSONObject      `gorm:"type:text"`
	Metadata       models.JSONObject      `gorm:"type:text"`
	OwnerID        string                 `gorm:"type:varchar(36);not null;index:idx_prompts_owner"`
	FolderID       sql.NullString         `gorm:"type:varchar(36);index:idx_prompts_folder"`
	Visibility     models.Visibility      `gorm:"type:varchar(16);default:'PRIVATE';not null;index"`
	CreatedAt      int64                  `gorm:"autoCreateTime:nano;not null"`
	UpdatedAt      int64                  `gorm:"autoUpdateTime:nano;not null;index:idx_prompts_updated,sort:desc"`
	DeletedAt      gorm.DeletedAt         `gorm:"index"`
}

func (Prompt) TableName() string { return "prompts" }

// BeforeCreate hook assigns an ID when none was set.
func (p *Prompt) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Tags == nil {
		p.Tags = models.JSONStringArray{}
	}
	return nil
}

// PromptCoCreator is one (prompt, user) co-creator grant.
type PromptCoCreator struct {
	PromptID string `gorm:"primaryKey;type:varchar(36)"`
	UserID   string `gorm:"primaryKey;type:varchar(36);index:idx_co_creators_user"`
	AddedAt  int64  `gorm:"autoCreateTime:nano;not null"`
}

func (PromptCoCreator) TableName() string { return "prompt_co_creators" }

// PromptTeamAccess is one (prompt, team) sharing grant.
type PromptTeamAccess struct {
	PromptID string `gorm:"primaryKey;type:varchar(36)"`
	TeamID   string `gorm:"primaryKey;type:varchar(36);index:idx_team_access_team"`
}

func (PromptTeamAccess) TableName() string { return "prompt_team_access" }

// PromptVersion is an immutable snapshot of a prompt's editable fields.
type PromptVersion struct {
	ID             string                 `gorm:"primaryKey;type:varchar(36)"`
	PromptID       string                 `gorm:"type:varchar(36);not null;uniqueIndex:idx_versions_prompt_version,priority:1"`
	Version        int                    `gorm:"not null;uniqueIndex:idx_versions_prompt_version,priority:2"`
	Title          string                 `gorm:"type:text;not null"`
	Content        string                 `gorm:"type:text;not null"`
	ContentURL     sql.NullString         `gorm:"type:text"`
	UsageNotes     sql.NullString         `gorm:"type:text"`
	Variables      models.Variables       `gorm:"type:text"`
	ExampleIO      models.ExampleIOs      `gorm:"column:example_io;type:text"`
	Tags           models.JSONStringArray `gorm:"type:text;not null"`
	CustomSections models.JSONObject      `gorm:"type:text"`
	Metadata       models.JSONObject      `gorm:"type:text"`
	CreatedBy      string                 `gorm:"type:varchar(36);not null"`
	CreatedAt      int64                  `gorm:"autoCreateTime:nano;not null"`
}

func (PromptVersion) TableName() string { return "prompt_versions" }

// BeforeCreate hook assigns an ID when none was set.
func (v *PromptVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Tags == nil {
		v.Tags = models.JSONStringArray{}
	}
	return nil
}

// Folder represents a node of a user's folder tree.
type Folder struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)"`
	Name        string         `gorm:"type:text;not null"`
	Description sql.NullString `gorm:"type:text"`
	OwnerID     string         `gorm:"type:varchar(36);not null;index:idx_folders_owner"`
	ParentID    sql.NullString `gorm:"type:varchar(36);index:idx_folders_parent"`
	CreatedAt   int64          `gorm:"autoCreateTime:nano;not null"`
	UpdatedAt   int64          `gorm:"autoUpdateTime:nano;not null"`
}

func (Folder) TableName() string { return "folders" }

// BeforeCreate hook assigns an ID when none was set.
func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Team represents a named group of users.
type Team struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)"`
	Name        string         `gorm:"type:text;not null"`
	Description sql.NullString `gorm:"type:text"`
	CreatorID   string         `gorm:"type:varchar(36);not null;index"`
	CreatedAt   int64          `gorm:"autoCreateTime:nano;not null"`
	UpdatedAt   int64          `gorm:"autoUpdateTime:nano;not null"`
}

func (Team) TableName() string { return "teams" }

// BeforeCreate hook assigns an ID when none was set.
func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TeamMember is one (team, user) membership with a role.
type TeamMember struct {
	TeamID   string          `gorm:"primaryKey;type:varchar(36)"`
	UserID   string          `gorm:"primaryKey;type:varchar(36);index:idx_team_members_user"`
	Role     models.TeamRole `gorm:"type:varchar(16);default:'MEMBER';not null"`
	JoinedAt int64           `gorm:"autoCreateTime:nano;not null"`
}

func (TeamMember) TableName() string { return "team_members" }

// ActivityLog is one append-only audit entry.
type ActivityLog struct {
	ID        string                `gorm:"primaryKey;type:varchar(36)"`
	UserID    string                `gorm:"type:varchar(36);not null;index:idx_activity_user,priority:1"`
	PromptID  sql.NullString        `gorm:"type:varchar(36);index:idx_activity_prompt,priority:1"`
	Action    models.ActivityAction `gorm:"type:varchar(16);not null"`
	Metadata  models.JSONObject     `gorm:"type:text"`
	CreatedAt int64                 `gorm:"autoCreateTime:nano;not null;index:idx_activity_user,priority:2,sort:desc;index:idx_activity_prompt,priority:2,sort:desc"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

// BeforeCreate hook assigns an ID when none was set.
func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Converters

func toModelUser(u *User) *models.User {
	return &models.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Name:         stringPtr(u.Name),
		Email:        stringPtr(u.Email),
		Image:        stringPtr(u.Image),
		CreatedAt:    fromNanos(u.CreatedAt),
	}
}

func toModelPrompt(p *Prompt) *models.Prompt {
	out := &models.Prompt{
		ID: p.ID,
		PromptFields: models.PromptFields{
			Title:          p.Title,
			Content:        p.Content,
			ContentURL:     stringPtr(p.ContentURL),
			UsageNotes:     stringPtr(p.UsageNotes),
			Variables:      p.Variables,
			ExampleIO:      p.ExampleIO,
			Tags:           p.Tags,
			CustomSections: p.CustomSections,
			Metadata:       p.Metadata,
		},
		ContentType: p.ContentType,
		OwnerID:     p.OwnerID,
		FolderID:    stringPtr(p.FolderID),
		Visibility:  p.Visibility,
		CreatedAt:   fromNanos(p.CreatedAt),
		UpdatedAt:   fromNanos(p.UpdatedAt),
	}
	if out.Tags == nil {
		out.Tags = models.JSONStringArray{}
	}
	if p.DeletedAt.Valid {
		t := p.DeletedAt.Time
		out.DeletedAt = &t
	}
	return out
}

func toModelPrompts(rows []Prompt) []*models.Prompt {
	out := make([]*models.Prompt, len(rows))
	for i := range rows {
		out[i] = toModelPrompt(&rows[i])
	}
	return out
}

func toModelVersion(v *PromptVersion) *models.PromptVersion {
	out := &models.PromptVersion{
		ID:       v.ID,
		PromptID: v.PromptID,
		Version:  v.Version,
		PromptFields: models.PromptFields{
			Title:          v.Title,
			Content:        v.Content,
			ContentURL:     stringPtr(v.ContentURL),
			UsageNotes:     stringPtr(v.UsageNotes),
			Variables:      v.Variables,
			ExampleIO:      v.ExampleIO,
			Tags:           v.Tags,
			CustomSections: v.CustomSections,
			Metadata:       v.Metadata,
		},
		CreatedBy: v.CreatedBy,
		CreatedAt: fromNanos(v.CreatedAt),
	}
	if out.Tags == nil {
		out.Tags = models.JSONStringArray{}
	}
	return out
}

func toModelFolder(f *Folder) *models.Folder {
	return &models.Folder{
		ID:          f.ID,
		Name:        f.Name,
		Description: stringPtr(f.Description),
		OwnerID:     f.OwnerID,
		ParentID:    stringPtr(f.ParentID),
		CreatedAt:   fromNanos(f.CreatedAt),
		UpdatedAt:   fromNanos(f.UpdatedAt),
	}
}

func toModelFolders(rows []Folder) []*models.Folder {
	out := make([]*models.Folder, len(rows))
	for i := range rows {
		out[i] = toModelFolder(&rows[i])
	}
	return out
}

func toModelTeam(t *Team) *models.Team {
	return &models.Team{
		ID:          t.ID,
		Name:        t.Name,
		Description: stringPtr(t.Description),
		CreatorID:   t.CreatorID,
		CreatedAt:   fromNanos(t.CreatedAt),
		UpdatedAt:   fromNanos(t.UpdatedAt),
	}
}

func toModelTeamMember(m *TeamMember) *models.TeamMember {
	return &models.TeamMember{
		TeamID:   m.TeamID,
		UserID:   m.UserID,
		Role:     m.Role,
		JoinedAt: fromNanos(m.JoinedAt),
	}
}

func toModelActivity(a *ActivityLog) *models.ActivityLog {
	return &models.ActivityLog{
		ID:        a.ID,
		UserID:    a.UserID,
		PromptID:  stringPtr(a.PromptID),
		Action:    a.Action,
		Metadata:  a.Metadata,
		CreatedAt: fromNanos(a.CreatedAt),
	}
}
