package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// FolderService manages per-user folder trees. Folders are private to their owner.
type FolderService struct {
	*core
}

// Create adds a folder owned by actorID, optionally under one of actorID's folders.
func (s *FolderService) Create(ctx context.Context, actorID string, req CreateFolderRequest) (f *models.Folder, err error) {
	ctx, done := s.begin(ctx, "folder.create", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	f = &models.Folder{
		Name:        req.Name,
		Description: emptyToNil(req.Description),
		OwnerID:     actorID,
		ParentID:    req.ParentID,
	}
	err = s.inTx(ctx, func(tx *scope) error {
		if f.ParentID != nil {
			if _, err := tx.perm.RequireFolderOwner(ctx, actorID, *f.ParentID); err != nil {
				return err
			}
		}
		if err := tx.Folders.Create(ctx, f); err != nil {
			return fmt.Errorf("create folder: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("folder_id", f.ID).Msg("Folder created")
	return f, nil
}

// Get returns a folder with its live prompts (newest first) and its children.
func (s *FolderService) Get(ctx context.Context, actorID, id string) (d *models.FolderDetail, err error) {
	ctx, done := s.begin(ctx, "folder.get", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	st := s.read()
	folder, err := st.perm.RequireFolderOwner(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	prompts, err := st.Prompts.ListInFolder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load folder prompts: %w", err)
	}
	items, err := s.listItems(ctx, st, prompts)
	if err != nil {
		return nil, err
	}
	children, err := st.Folders.Children(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load subfolders: %w", err)
	}
	return &models.FolderDetail{Folder: folder, Prompts: items, Children: children}, nil
}

// List returns actorID's folders by name, with prompt and subfolder counts.
func (s *FolderService) List(ctx context.Context, actorID string) (l *models.FolderListing, err error) {
	ctx, done := s.begin(ctx, "folder.list", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	st := s.read()
	folders, err := st.Folders.ListByOwner(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	ids := make([]string, len(folders))
	for i, f := range folders {
		ids[i] = f.ID
	}
	counts, err := st.Prompts.CountByFolder(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count prompts: %w", err)
	}

	tree := models.BuildFolderTree(folders)
	items := make([]*models.FolderListItem, len(folders))
	for i, f := range folders {
		items[i] = &models.FolderListItem{
			Folder:      f,
			PromptCount: counts[f.ID],
			ChildCount:  len(tree.Nodes[f.ID].Children),
		}
	}
	return &models.FolderListing{Folders: items, Tree: tree}, nil
}

// Update renames a folder or changes its description. An empty description clears it.
func (s *FolderService) Update(ctx context.Context, actorID, id string, req UpdateFolderRequest) (f *models.Folder, err error) {
	ctx, done := s.begin(ctx, "folder.update", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		current, err := tx.perm.RequireFolderOwner(ctx, actorID, id)
		if err != nil {
			return err
		}
		name, description := current.Name, current.Description
		if req.Name != nil {
			name = *req.Name
		}
		if req.Description != nil {
			description = emptyToNil(req.Description)
		}
		if err := tx.Folders.Update(ctx, id, name, description); err != nil {
			return fmt.Errorf("update folder: %w", err)
		}
		f, err = tx.Folders.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("folder_id", id).Msg("Folder updated")
	return f, nil
}

// Delete removes an empty folder. A folder holding live prompts or
// subfolders is an invalid-state error naming both counts.
func (s *FolderService) Delete(ctx context.Context, actorID, id string) (err error) {
	ctx, done := s.begin(ctx, "folder.delete", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.RequireFolderOwner(ctx, actorID, id); err != nil {
			return err
		}
		prompts, err := tx.Prompts.CountInFolder(ctx, id)
		if err != nil {
			return fmt.Errorf("count prompts: %w", err)
		}
		children, err := tx.Folders.CountChildren(ctx, id)
		if err != nil {
			return fmt.Errorf("count subfolders: %w", err)
		}
		if prompts > 0 || children > 0 {
			return apperr.InvalidState("folder is not empty: contains %d prompts and %d subfolders", prompts, children)
		}
		// Soft-deleted prompts still reference the folder.
		if err := tx.Prompts.DetachDeletedFromFolder(ctx, id); err != nil {
			return fmt.Errorf("detach deleted prompts: %w", err)
		}
		if err := tx.Folders.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete folder: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("actor", actorID).Str("folder_id", id).Msg("Folder deleted")
	return nil
}

// Move re-parents a folder under another of actorID's folders, or makes it a
// root. Moving a folder into itself or one of its descendants is rejected.
func (s *FolderService) Move(ctx context.Context, actorID, id string, req MoveFolderRequest) (f *models.Folder, err error) {
	ctx, done := s.begin(ctx, "folder.move", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.RequireFolderOwner(ctx, actorID, id); err != nil {
			return err
		}
		if req.ParentID != nil {
			if *req.ParentID == id {
				return apperr.InvalidState("cannot move a folder into itself")
			}
			parent, err := tx.perm.RequireFolderOwner(ctx, actorID, *req.ParentID)
			if err != nil {
				return err
			}
			under, err := isDescendant(ctx, tx, parent, id)
			if err != nil {
				return err
			}
			if under {
				return apperr.InvalidState("cannot move a folder into one of its descendants")
			}
		}
		if err := tx.Folders.SetParent(ctx, id, req.ParentID); err != nil {
			return fmt.Errorf("move folder: %w", err)
		}
		f, err = tx.Folders.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("folder_id", id).Msg("Folder moved")
	return f, nil
}

// isDescendant walks up from start and reports whether ancestorID is on the path.
func isDescendant(ctx context.Context, st *scope, start *models.Folder, ancestorID string) (bool, error) {
	visited := map[string]struct{}{}
	cur := start
	for cur != nil {
		if cur.ID == ancestorID {
			return true, nil
		}
		if _, seen := visited[cur.ID]; seen || cur.ParentID == nil {
			return false, nil
		}
		visited[cur.ID] = struct{}{}

		next, err := st.Folders.GetByID(ctx, *cur.ParentID)
		if err != nil {
			return false, fmt.Errorf("walk folder ancestry: %w", err)
		}
		cur = next
	}
	return false, nil
}
