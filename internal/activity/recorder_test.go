package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/promptvault/pkg/models"
)

type memAppender struct {
	rows []*models.ActivityLog
	err  error
}

func (m *memAppender) Create(_ context.Context, entry *models.ActivityLog) error {
	if m.err != nil {
		return m.err
	}
	entry.ID = "id-" + string(entry.Action)
	m.rows = append(m.rows, entry)
	return nil
}

type memPublisher struct {
	got []*models.ActivityLog
}

func (m *memPublisher) Publish(entry *models.ActivityLog) {
	m.got = append(m.got, entry)
}

func TestRecorder_FlushPublishesAfterCommit(t *testing.T) {
	store := &memAppender{}
	pub := &memPublisher{}
	rec := NewRecorder(store)
	ctx := context.Background()
	promptID := "p1"

	_, err := rec.Record(ctx, "u1", &promptID, models.ActionCreated, nil)
	require.NoError(t, err)
	_, err = rec.Record(ctx, "u1", nil, models.ActionShared, models.JSONObject{"k": "v"})
	require.NoError(t, err)

	assert.Len(t, store.rows, 2)
	assert.Empty(t, pub.got, "nothing is published before Flush")
	assert.Len(t, rec.Pending(), 2)

	rec.Flush(pub)
	require.Len(t, pub.got, 2)
	assert.Equal(t, models.ActionCreated, pub.got[0].Action)
	assert.Equal(t, "p1", *pub.got[0].PromptID)
	assert.Empty(t, rec.Pending())

	rec.Flush(pub)
	assert.Len(t, pub.got, 2, "flush is not repeated")
}

func TestRecorder_Discard(t *testing.T) {
	pub := &memPublisher{}
	rec := NewRecorder(&memAppender{})

	_, err := rec.Record(context.Background(), "u1", nil, models.ActionViewed, nil)
	require.NoError(t, err)

	rec.Discard()
	rec.Flush(pub)
	assert.Empty(t, pub.got)
}

func TestRecorder_Errors(t *testing.T) {
	rec := NewRecorder(&memAppender{err: errors.New("disk full")})

	_, err := rec.Record(context.Background(), "u1", nil, models.ActionViewed, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, rec.Pending())

	_, err = NewRecorder(&memAppender{}).Record(context.Background(), "u1", nil, "LIKED", nil)
	require.Error(t, err)
}

func TestRecorder_NilPublisher(t *testing.T) {
	rec := NewRecorder(&memAppender{})
	_, err := rec.Record(context.Background(), "u1", nil, models.ActionMoved, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() { rec.Flush(nil) })
	assert.NotPanics(t, func() { NopPublisher{}.Publish(&models.ActivityLog{}) })
}
