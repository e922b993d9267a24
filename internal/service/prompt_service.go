package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptvault/internal/apperr"
	dbgorm "github.com/thebtf/promptvault/internal/db/gorm"
	"github.com/thebtf/promptvault/internal/permission"
	"github.com/thebtf/promptvault/pkg/models"
)

// copySuffix is appended to the title of a duplicated prompt.
const copySuffix = " (Copy)"

// PromptService manages prompts, their sharing and their history.
type PromptService struct {
	*core
}

// Create stores a new prompt owned by actorID.
func (s *PromptService) Create(ctx context.Context, actorID string, req CreatePromptRequest) (p *models.Prompt, err error) {
	ctx, done := s.begin(ctx, "prompt.create", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	req.ContentURL = emptyToNil(req.ContentURL)
	if err = s.check(req); err != nil {
		return nil, err
	}

	p = &models.Prompt{
		PromptFields: models.PromptFields{
			Title:          req.Title,
			Content:        req.Content,
			ContentURL:     req.ContentURL,
			UsageNotes:     emptyToNil(req.UsageNotes),
			Variables:      req.Variables,
			ExampleIO:      req.ExampleIO,
			Tags:           models.JSONStringArray(dedupe(req.Tags)),
			CustomSections: req.CustomSections,
			Metadata:       req.Metadata,
		},
		ContentType: req.ContentType,
		OwnerID:     actorID,
		FolderID:    req.FolderID,
		Visibility:  req.Visibility,
	}
	if p.ContentType == "" {
		p.ContentType = models.ContentTypePrompt
	}
	if p.Visibility == "" {
		p.Visibility = models.VisibilityPrivate
	}
	teamIDs := dedupe(req.TeamIDs)

	err = s.inTx(ctx, func(tx *scope) error {
		if p.FolderID != nil {
			if _, err := tx.perm.RequireFolderOwner(ctx, actorID, *p.FolderID); err != nil {
				return err
			}
		}
		if p.Visibility == models.VisibilityTeam {
			if err := checkTeamGrants(ctx, tx, actorID, teamIDs); err != nil {
				return err
			}
		}
		if err := tx.Prompts.Create(ctx, p); err != nil {
			return fmt.Errorf("create prompt: %w", err)
		}
		if p.Visibility == models.VisibilityTeam && len(teamIDs) > 0 {
			if err := tx.Prompts.ReplaceTeamAccess(ctx, p.ID, teamIDs); err != nil {
				return fmt.Errorf("grant team access: %w", err)
			}
		}
		_, err := tx.rec.Record(ctx, actorID, &p.ID, models.ActionCreated, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("prompt_id", p.ID).Msg("Prompt created")
	return p, nil
}

// Get returns a prompt with its related records and logs the view.
func (s *PromptService) Get(ctx context.Context, actorID, id string) (d *models.PromptDetail, err error) {
	ctx, done := s.begin(ctx, "prompt.get", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.Require(ctx, actorID, id, permission.ActionView); err != nil {
			return err
		}
		p, err := tx.Prompts.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load prompt: %w", err)
		}
		if p == nil {
			return apperr.NotFound("prompt %s not found", id)
		}
		if d, err = s.detail(ctx, tx, p); err != nil {
			return err
		}
		_, err = tx.rec.Record(ctx, actorID, &p.ID, models.ActionViewed, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// detail loads the owner, folder, co-creators and granted teams of p.
func (s *PromptService) detail(ctx context.Context, st *scope, p *models.Prompt) (*models.PromptDetail, error) {
	d := &models.PromptDetail{Prompt: p, CoCreators: []*models.PromptCoCreator{}, Teams: []*models.TeamSummary{}}

	coCreators, err := st.Prompts.ListCoCreators(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load co-creators: %w", err)
	}
	userIDs := []string{p.OwnerID}
	for _, cc := range coCreators {
		userIDs = append(userIDs, cc.UserID)
	}
	users, err := st.Users.GetSummaries(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	d.Owner = users[p.OwnerID]
	for _, cc := range coCreators {
		cc.User = users[cc.UserID]
		d.CoCreators = append(d.CoCreators, cc)
	}

	if p.FolderID != nil {
		folders, err := st.Folders.GetSummaries(ctx, []string{*p.FolderID})
		if err != nil {
			return nil, fmt.Errorf("load folder: %w", err)
		}
		d.Folder = folders[*p.FolderID]
	}

	teamIDs, err := st.Prompts.TeamAccessIDs(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load team access: %w", err)
	}
	teams, err := st.Teams.GetSummaries(ctx, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	for _, id := range teamIDs {
		if t, ok := teams[id]; ok {
			d.Teams = append(d.Teams, t)
		}
	}
	return d, nil
}

// Update applies a partial update, snapshotting the previous state first.
func (s *PromptService) Update(ctx context.Context, actorID, id string, req UpdatePromptRequest) (p *models.Prompt, err error) {
	ctx, done := s.begin(ctx, "prompt.update", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.Require(ctx, actorID, id, permission.ActionEdit); err != nil {
			return err
		}
		current, err := tx.Prompts.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("load prompt: %w", err)
		}
		if current == nil {
			return apperr.NotFound("prompt %s not found", id)
		}

		version, err := tx.versions.Snapshot(ctx, current, actorID)
		if err != nil {
			return err
		}

		fields, contentType := applyPatch(current, req)
		if err := tx.Prompts.SetFields(ctx, id, fields, contentType); err != nil {
			return fmt.Errorf("update prompt: %w", err)
		}
		if p, err = tx.Prompts.GetByID(ctx, id); err != nil {
			return fmt.Errorf("reload prompt: %w", err)
		}
		_, err = tx.rec.Record(ctx, actorID, &id, models.ActionUpdated, models.JSONObject{"version": version.Version})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("prompt_id", id).Msg("Prompt updated")
	return p, nil
}

// applyPatch returns the fields of current with req applied.
func applyPatch(current *models.Prompt, req UpdatePromptRequest) (models.PromptFields, models.ContentType) {
	f := current.PromptFields.Clone()
	contentType := current.ContentType

	if req.Title != nil {
		f.Title = *req.Title
	}
	if req.Content != nil {
		f.Content = *req.Content
	}
	if req.ContentURL != nil {
		f.ContentURL = emptyToNil(req.ContentURL)
	}
	if req.UsageNotes != nil {
		f.UsageNotes = emptyToNil(req.UsageNotes)
	}
	if req.ContentType != nil {
		contentType = *req.ContentType
	}
	if req.Variables != nil {
		f.Variables = *req.Variables
	}
	if req.ExampleIO != nil {
		f.ExampleIO = *req.ExampleIO
	}
	if req.Tags != nil {
		f.Tags = models.JSONStringArray(dedupe(*req.Tags))
	}
	if req.CustomSections != nil {
		f.CustomSections = *req.CustomSections
	}
	if req.Metadata != nil {
		f.Metadata = *req.Metadata
	}
	return f, contentType
}

// Delete soft-deletes a prompt. Only the owner may delete.
func (s *PromptService) Delete(ctx context.Context, actorID, id string) (err error) {
	ctx, done := s.begin(ctx, "prompt.delete", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.Require(ctx, actorID, id, permission.ActionDelete); err != nil {
			return err
		}
		if err := tx.Prompts.SoftDelete(ctx, id); err != nil {
			return fmt.Errorf("delete prompt: %w", err)
		}
		_, err := tx.rec.Record(ctx, actorID, &id, models.ActionDeleted, nil)
		return err
	})
	if err != nil {
		return err
	}

	log.Info().Str("actor", actorID).Str("prompt_id", id).Msg("Prompt deleted")
	return nil
}

// Duplicate copies a viewable prompt into a new private prompt owned by actorID.
// The copy starts at the root and without history.
func (s *PromptService) Duplicate(ctx context.Context, actorID, id string) (p *models.Prompt, err error) {
	ctx, done := s.begin(ctx, "prompt.duplicate", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.Require(ctx, actorID, id, permission.ActionView); err != nil {
			return err
		}
		src, err := tx.Prompts.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load prompt: %w", err)
		}
		if src == nil {
			return apperr.NotFound("prompt %s not found", id)
		}

		fields := src.PromptFields.Clone()
		fields.Title += copySuffix
		p = &models.Prompt{
			PromptFields: fields,
			ContentType:  src.ContentType,
			OwnerID:      actorID,
			Visibility:   models.VisibilityPrivate,
		}
		if err := tx.Prompts.Create(ctx, p); err != nil {
			return fmt.Errorf("create copy: %w", err)
		}
		_, err = tx.rec.Record(ctx, actorID, &p.ID, models.ActionCopied, models.JSONObject{"source_prompt_id": src.ID})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("prompt_id", p.ID).Str("source_id", id).Msg("Prompt duplicated")
	return p, nil
}

// Move places a prompt in one of actorID's folders, or at the root.
func (s *PromptService) Move(ctx context.Context, actorID, id string, req MovePromptRequest) (p *models.Prompt, err error) {
	ctx, done := s.begin(ctx, "prompt.move", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.Require(ctx, actorID, id, permission.ActionEdit); err != nil {
			return err
		}
		if req.FolderID != nil {
			if _, err := tx.perm.RequireFolderOwner(ctx, actorID, *req.FolderID); err != nil {
				return err
			}
		}
		current, err := tx.Prompts.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load prompt: %w", err)
		}
		if current == nil {
			return apperr.NotFound("prompt %s not found", id)
		}

		if err := tx.Prompts.SetFolder(ctx, id, req.FolderID); err != nil {
			return fmt.Errorf("move prompt: %w", err)
		}
		if p, err = tx.Prompts.GetByID(ctx, id); err != nil {
			return fmt.Errorf("reload prompt: %w", err)
		}
		_, err = tx.rec.Record(ctx, actorID, &id, models.ActionMoved, models.JSONObject{
			"from_folder_id": optionalString(current.FolderID),
			"folder_id":      optionalString(req.FolderID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("prompt_id", id).Msg("Prompt moved")
	return p, nil
}

// UpdateVisibility changes a prompt's visibility tier. Only the owner may do it.
// Leaving TEAM drops every team grant.
func (s *PromptService) UpdateVisibility(ctx context.Context, actorID, id string, req UpdateVisibilityRequest) (p *models.Prompt, err error) {
	ctx, done := s.begin(ctx, "prompt.update_visibility", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		access, err := tx.perm.Require(ctx, actorID, id, permission.ActionView)
		if err != nil {
			return err
		}
		if access.OwnerID != actorID {
			return apperr.Forbidden("only the owner can change visibility")
		}

		if req.Visibility == models.VisibilityTeam {
			if req.TeamIDs != nil {
				teamIDs := dedupe(req.TeamIDs)
				if err := checkTeamGrants(ctx, tx, actorID, teamIDs); err != nil {
					return err
				}
				if err := tx.Prompts.ReplaceTeamAccess(ctx, id, teamIDs); err != nil {
					return fmt.Errorf("replace team access: %w", err)
				}
			}
		} else if err := tx.Prompts.ClearTeamAccess(ctx, id); err != nil {
			return fmt.Errorf("clear team access: %w", err)
		}

		if err := tx.Prompts.SetVisibility(ctx, id, req.Visibility); err != nil {
			return fmt.Errorf("set visibility: %w", err)
		}
		teamIDs, err := tx.Prompts.TeamAccessIDs(ctx, id)
		if err != nil {
			return fmt.Errorf("load team access: %w", err)
		}
		if p, err = tx.Prompts.GetByID(ctx, id); err != nil {
			return fmt.Errorf("reload prompt: %w", err)
		}
		_, err = tx.rec.Record(ctx, actorID, &id, models.ActionShared, models.JSONObject{
			"visibility": string(req.Visibility),
			"team_ids":   teamIDs,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("prompt_id", id).Str("visibility", string(req.Visibility)).Msg("Prompt visibility changed")
	return p, nil
}

// AddCoCreator grants userID co-creator rights on the prompt.
func (s *PromptService) AddCoCreator(ctx context.Context, actorID, id string, req AddCoCreatorRequest) (cc *models.PromptCoCreator, err error) {
	ctx, done := s.begin(ctx, "prompt.add_co_creator", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		access, err := tx.perm.Require(ctx, actorID, id, permission.ActionShare)
		if err != nil {
			return err
		}
		user, err := tx.Users.GetByID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			return apperr.NotFound("user %s not found", req.UserID)
		}
		if user.ID == access.OwnerID {
			return apperr.InvalidState("the owner cannot be a co-creator")
		}

		if cc, err = tx.Prompts.AddCoCreator(ctx, id, user.ID); err != nil {
			return err
		}
		cc.User = user.Summary()
		_, err = tx.rec.Record(ctx, actorID, &id, models.ActionShared, models.JSONObject{"co_creator_id": user.ID})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("prompt_id", id).Str("user_id", req.UserID).Msg("Co-creator added")
	return cc, nil
}

// RemoveCoCreator revokes userID's co-creator rights. Removing a user who is
// not a co-creator succeeds without effect.
func (s *PromptService) RemoveCoCreator(ctx context.Context, actorID, id, userID string) (err error) {
	ctx, done := s.begin(ctx, "prompt.remove_co_creator", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.Require(ctx, actorID, id, permission.ActionShare); err != nil {
			return err
		}
		removed, err := tx.Prompts.RemoveCoCreator(ctx, id, userID)
		if err != nil {
			return fmt.Errorf("remove co-creator: %w", err)
		}
		if !removed {
			return nil
		}
		_, err = tx.rec.Record(ctx, actorID, &id, models.ActionShared, models.JSONObject{"removed_co_creator_id": userID})
		return err
	})
}

// List returns one page of prompts visible to actorID, most recently updated first.
func (s *PromptService) List(ctx context.Context, actorID string, req ListPromptsRequest) (page *models.Page[*models.PromptListItem], err error) {
	ctx, done := s.begin(ctx, "prompt.list", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	return s.page(ctx, dbgorm.PromptFilter{
		ViewerID:    actorID,
		FolderID:    req.FolderID,
		ContentType: req.ContentType,
		Visibility:  req.Visibility,
		Tags:        req.Tags,
		Cursor:      req.Cursor,
		Limit:       req.Limit,
	})
}

// Search matches visible prompts by case-insensitive substring of title,
// content or usage notes, or by exact tag.
func (s *PromptService) Search(ctx context.Context, actorID string, req SearchPromptsRequest) (page *models.Page[*models.PromptListItem], err error) {
	ctx, done := s.begin(ctx, "prompt.search", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	return s.page(ctx, dbgorm.PromptFilter{
		ViewerID:    actorID,
		ContentType: req.ContentType,
		Tags:        req.Tags,
		Query:       req.Query,
		Cursor:      req.Cursor,
		Limit:       req.Limit,
	})
}

func (s *PromptService) page(ctx context.Context, filter dbgorm.PromptFilter) (*models.Page[*models.PromptListItem], error) {
	st := s.read()
	prompts, next, err := st.Prompts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, err := s.listItems(ctx, st, prompts)
	if err != nil {
		return nil, err
	}
	return &models.Page[*models.PromptListItem]{Items: items, NextCursor: next}, nil
}

// Versions returns the prompt's history, newest first.
func (s *PromptService) Versions(ctx context.Context, actorID, id string) (versions []*models.PromptVersion, err error) {
	ctx, done := s.begin(ctx, "prompt.versions", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	st := s.read()
	if _, err = st.perm.Require(ctx, actorID, id, permission.ActionView); err != nil {
		return nil, err
	}
	versions, err = st.Versions.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load versions: %w", err)
	}
	return versions, nil
}

// RestoreVersion overwrites the prompt with the fields of a past version,
// keeping the current state as a new version.
func (s *PromptService) RestoreVersion(ctx context.Context, actorID, id string, version int) (p *models.Prompt, err error) {
	ctx, done := s.begin(ctx, "prompt.restore_version", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.Require(ctx, actorID, id, permission.ActionEdit); err != nil {
			return err
		}
		if p, err = tx.versions.Restore(ctx, id, actorID, version); err != nil {
			return err
		}
		_, err = tx.rec.Record(ctx, actorID, &id, models.ActionUpdated, models.JSONObject{"restored_from_version": version})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("prompt_id", id).Int("version", version).Msg("Prompt version restored")
	return p, nil
}

// emptyToNil maps a pointer to "" to nil.
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return strPtr(*s)
}

// optionalString returns *s, or nil for JSON null.
func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
