// Package versioning keeps the immutable edit history of prompts.
package versioning

import (
	"context"
	"fmt"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// VersionStore persists version rows.
type VersionStore interface {
	Latest(ctx context.Context, promptID string) (int, error)
	Create(ctx context.Context, v *models.PromptVersion) error
	Get(ctx context.Context, promptID string, version int) (*models.PromptVersion, error)
}

// PromptStore reads and overwrites prompt fields.
type PromptStore interface {
	GetByID(ctx context.Context, id string) (*models.Prompt, error)
	GetForUpdate(ctx context.Context, id string) (*models.Prompt, error)
	SetFields(ctx context.Context, id string, f models.PromptFields, contentType models.ContentType) error
}

// Engine numbers and stores snapshots and restores prompts from them.
// Callers run it inside the transaction of the mutation it protects.
type Engine struct {
	versions VersionStore
	prompts  PromptStore
}

// New creates an Engine.
func New(versions VersionStore, prompts PromptStore) *Engine {
	return &Engine{versions: versions, prompts: prompts}
}

// Snapshot records the current editable fields of p as the next version,
// numbered one past the highest existing version (the first is 1). p must
// have been loaded with GetForUpdate in the same transaction so that
// concurrent writers number their versions one after another.
func (e *Engine) Snapshot(ctx context.Context, p *models.Prompt, actorID string) (*models.PromptVersion, error) {
	latest, err := e.versions.Latest(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("read latest version: %w", err)
	}
	v := &models.PromptVersion{
		PromptID:     p.ID,
		Version:      latest + 1,
		PromptFields: p.PromptFields.Clone(),
		CreatedBy:    actorID,
	}
	if err := e.versions.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("store version: %w", err)
	}
	return v, nil
}

// Restore overwrites the prompt's editable fields with those of version,
// snapshotting the current state first. The content type is left as is.
// It returns the restored prompt.
func (e *Engine) Restore(ctx context.Context, promptID, actorID string, version int) (*models.Prompt, error) {
	target, err := e.versions.Get(ctx, promptID, version)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	if target == nil {
		return nil, apperr.NotFound("version %d of prompt %s not found", version, promptID)
	}

	current, err := e.prompts.GetForUpdate(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("load prompt: %w", err)
	}
	if current == nil {
		return nil, apperr.NotFound("prompt %s not found", promptID)
	}

	if _, err := e.Snapshot(ctx, current, actorID); err != nil {
		return nil, err
	}
	if err := e.prompts.SetFields(ctx, promptID, target.PromptFields.Clone(), current.ContentType); err != nil {
		return nil, fmt.Errorf("restore fields: %w", err)
	}

	restored, err := e.prompts.GetByID(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("reload prompt: %w", err)
	}
	return restored, nil
}
