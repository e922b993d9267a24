package service

import (
	"context"
	"fmt"

	"github.com/thebtf/promptvault/internal/permission"
	"github.com/thebtf/promptvault/pkg/models"
)

// Default page sizes of the activity feeds.
const (
	RecentActivityLimit = 20
	PromptActivityLimit = 50
)

// ActivityService exposes the activity log.
type ActivityService struct {
	*core
}

// Log records a manual entry. Referencing a prompt requires view permission on it.
func (s *ActivityService) Log(ctx context.Context, actorID string, req LogActivityRequest) (entry *models.ActivityLog, err error) {
	ctx, done := s.begin(ctx, "activity.log", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if req.PromptID != nil {
			if _, err := tx.perm.Require(ctx, actorID, *req.PromptID, permission.ActionView); err != nil {
				return err
			}
		}
		entry, err = tx.rec.Record(ctx, actorID, req.PromptID, req.Action, req.Metadata)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Recent returns actorID's own entries, newest first.
func (s *ActivityService) Recent(ctx context.Context, actorID string, limit int) (entries []*models.ActivityEntry, err error) {
	ctx, done := s.begin(ctx, "activity.recent", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = RecentActivityLimit
	}
	entries, err = s.read().Activity.ListByUser(ctx, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

// ForPrompt returns the entries referencing a prompt the actor can view, newest first.
func (s *ActivityService) ForPrompt(ctx context.Context, actorID, promptID string, limit int) (entries []*models.ActivityEntry, err error) {
	ctx, done := s.begin(ctx, "activity.for_prompt", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = PromptActivityLimit
	}

	st := s.read()
	if _, err = st.perm.Require(ctx, actorID, promptID, permission.ActionView); err != nil {
		return nil, err
	}
	entries, err = st.Activity.ListByPrompt(ctx, promptID, limit)
	if err != nil {
		return nil, fmt.Errorf("list prompt activity: %w", err)
	}
	return entries, nil
}
