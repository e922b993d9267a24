// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		// Migration 001: Users
		{
			ID: "001_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&User{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("users")
			},
		},

		// Migration 002: Folders
		{
			ID: "002_folders",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Folder{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("folders")
			},
		},

		// Migration 003: Prompts and their co-creator grants
		{
			ID: "003_prompts",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Prompt{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&PromptCoCreator{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("prompt_co_creators", "prompts")
			},
		},

		// Migration 004: Version history
		{
			ID: "004_prompt_versions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&PromptVersion{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("prompt_versions")
			},
		},

		// Migration 005: Teams, memberships and team sharing
		{
			ID: "005_teams",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Team{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&TeamMember{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&PromptTeamAccess{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("prompt_team_access", "team_members", "teams")
			},
		},

		// Migration 006: Activity log
		{
			ID: "006_activity_logs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ActivityLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("activity_logs")
			},
		},
	}
}

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}

// RollbackLast undoes the most recently applied migration.
func (s *Store) RollbackLast() error {
	m := gormigrate.New(s.DB, gormigrate.DefaultOptions, migrations())
	if err := m.RollbackLast(); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// AppliedMigrations returns the IDs of applied migrations in order.
func (s *Store) AppliedMigrations() ([]string, error) {
	var ids []string
	err := s.DB.Table(gormigrate.DefaultOptions.TableName).
		Order(gormigrate.DefaultOptions.IDColumnName).
		Pluck(gormigrate.DefaultOptions.IDColumnName, &ids).Error
	return ids, err
}
