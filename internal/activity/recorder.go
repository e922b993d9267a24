// Package activity records the append-only audit trail of user actions.
package activity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptvault/internal/metrics"
	"github.com/thebtf/promptvault/pkg/models"
)

// Appender persists activity entries.
type Appender interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
}

// Publisher delivers committed entries to live subscribers.
type Publisher interface {
	Publish(entry *models.ActivityLog)
}

// NopPublisher discards entries.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(*models.ActivityLog) {}

// Recorder appends entries within one transaction and keeps them until the
// transaction outcome is known. Entries are published only by Flush, which
// callers invoke after a successful commit. A Recorder is not safe for
// concurrent use; create one per transaction.
type Recorder struct {
	store   Appender
	pending []*models.ActivityLog
}

// NewRecorder creates a Recorder writing through store.
func NewRecorder(store Appender) *Recorder {
	return &Recorder{store: store}
}

// Record appends one entry. promptID and metadata may be nil.
func (r *Recorder) Record(ctx context.Context, userID string, promptID *string, action models.ActivityAction, metadata models.JSONObject) (*models.ActivityLog, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown activity action %q", action)
	}
	entry := &models.ActivityLog{
		UserID:   userID,
		PromptID: promptID,
		Action:   action,
		Metadata: metadata,
	}
	if err := r.store.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("append activity: %w", err)
	}
	r.pending = append(r.pending, entry)
	return entry, nil
}

// Pending returns the entries recorded so far.
func (r *Recorder) Pending() []*models.ActivityLog {
	return r.pending
}

// Flush publishes and clears the recorded entries. Call it only after the
// transaction that wrote them has committed.
func (r *Recorder) Flush(pub Publisher) {
	for _, entry := range r.pending {
		metrics.RecordActivity(string(entry.Action))
		if pub != nil {
			pub.Publish(entry)
		}
		log.Debug().
			Str("user_id", entry.UserID).
			Str("action", string(entry.Action)).
			Msg("Activity recorded")
	}
	r.pending = nil
}

// Discard drops the recorded entries, for use after a rollback.
func (r *Recorder) Discard() {
	r.pending = nil
}
