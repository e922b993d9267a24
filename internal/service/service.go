// Package service implements the prompt, folder, team, activity and user
// operations. Every mutation runs in one transaction: permission check,
// invariant checks, version snapshot, mutation, activity entry.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thebtf/promptvault/internal/activity"
	"github.com/thebtf/promptvault/internal/apperr"
	dbgorm "github.com/thebtf/promptvault/internal/db/gorm"
	"github.com/thebtf/promptvault/internal/metrics"
	"github.com/thebtf/promptvault/internal/permission"
	"github.com/thebtf/promptvault/internal/versioning"
	"github.com/thebtf/promptvault/pkg/models"
)

var tracer = otel.Tracer("github.com/thebtf/promptvault/internal/service")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Services bundles every service over one store.
type Services struct {
	Prompts  *PromptService
	Folders  *FolderService
	Teams    *TeamService
	Activity *ActivityService
	Users    *UserService
}

// New creates the services. Committed activity entries go to publisher,
// which may be nil.
func New(store *dbgorm.Store, publisher activity.Publisher) *Services {
	if publisher == nil {
		publisher = activity.NopPublisher{}
	}
	c := &core{store: store, publisher: publisher, validate: newValidator()}
	return &Services{
		Prompts:  &PromptService{core: c},
		Folders:  &FolderService{core: c},
		Teams:    &TeamService{core: c},
		Activity: &ActivityService{core: c},
		Users:    &UserService{core: c},
	}
}

// core holds what all services share.
type core struct {
	store     *dbgorm.Store
	publisher activity.Publisher
	validate  *validator.Validate
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// scope is the set of collaborators bound to one connection or transaction.
type scope struct {
	*dbgorm.Stores
	perm     *permission.Evaluator
	versions *versioning.Engine
	rec      *activity.Recorder
}

func newScope(st *dbgorm.Stores) *scope {
	return &scope{
		Stores:   st,
		perm:     permission.New(st.Prompts, st.Folders, st.Teams),
		versions: versioning.New(st.Versions, st.Prompts),
		rec:      activity.NewRecorder(st.Activity),
	}
}

// read returns a scope outside any transaction, for read-only operations.
func (c *core) read() *scope {
	return newScope(c.store.Stores())
}

// inTx runs fn in a transaction and publishes its activity entries once the
// transaction has committed.
func (c *core) inTx(ctx context.Context, fn func(tx *scope) error) error {
	var rec *activity.Recorder
	err := c.store.WithTx(ctx, func(st *dbgorm.Stores) error {
		tx := newScope(st)
		rec = tx.rec
		return fn(tx)
	})
	if err != nil {
		if rec != nil {
			rec.Discard()
		}
		return err
	}
	rec.Flush(c.publisher)
	return nil
}

// begin starts tracing and timing of an operation. The returned func must be
// deferred with a pointer to the operation's error result.
func (c *core) begin(ctx context.Context, op, actorID string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("actor", actorID)))
	log.Debug().Str("op", op).Str("actor", actorID).Msg("Operation started")

	return ctx, func(errp *error) {
		err := *errp
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if apperr.KindOf(err) == apperr.KindInternal {
				log.Error().Err(err).Str("op", op).Str("actor", actorID).Msg("Operation failed")
			} else {
				log.Debug().Err(err).Str("op", op).Str("actor", actorID).Msg("Operation rejected")
			}
		}
		metrics.ObserveOperation(op, start, err)
		span.End()
	}
}

// check validates a request struct.
func (c *core) check(req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s long", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "username":
		return fmt.Sprintf("%s may only contain letters, digits and underscores", field)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

func requireActor(actorID string) error {
	if actorID == "" {
		return apperr.Unauthenticated("authentication required")
	}
	return nil
}

// listItems attaches owner and folder summaries to prompts.
func (c *core) listItems(ctx context.Context, st *scope, prompts []*models.Prompt) ([]*models.PromptListItem, error) {
	ownerIDs := make([]string, 0, len(prompts))
	folderIDs := make([]string, 0, len(prompts))
	for _, p := range prompts {
		ownerIDs = append(ownerIDs, p.OwnerID)
		if p.FolderID != nil {
			folderIDs = append(folderIDs, *p.FolderID)
		}
	}
	owners, err := st.Users.GetSummaries(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}
	folders, err := st.Folders.GetSummaries(ctx, folderIDs)
	if err != nil {
		return nil, fmt.Errorf("load folders: %w", err)
	}

	items := make([]*models.PromptListItem, len(prompts))
	for i, p := range prompts {
		item := &models.PromptListItem{Prompt: p, Owner: owners[p.OwnerID]}
		if p.FolderID != nil {
			item.Folder = folders[*p.FolderID]
		}
		items[i] = item
	}
	return items, nil
}

// checkTeamGrants verifies that every team exists and that actorID belongs to
// it. Memberships are resolved in one query; only the misses are looked up.
func checkTeamGrants(ctx context.Context, st *scope, actorID string, teamIDs []string) error {
	memberOf, err := st.Teams.MemberTeamIDs(ctx, actorID, teamIDs)
	if err != nil {
		return fmt.Errorf("load memberships: %w", err)
	}
	joined := make(map[string]bool, len(memberOf))
	for _, id := range memberOf {
		joined[id] = true
	}
	for _, id := range teamIDs {
		if joined[id] {
			continue
		}
		team, err := st.Teams.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load team: %w", err)
		}
		if team == nil {
			return apperr.NotFound("team %s not found", id)
		}
		return apperr.Forbidden("you are not a member of team %s", id)
	}
	return nil
}

func strPtr(s string) *string { return &s }

// dedupe drops duplicates and empty strings, preserving order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
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
