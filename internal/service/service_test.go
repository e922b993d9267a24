package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/thebtf/promptvault/internal/apperr"
	dbgorm "github.com/thebtf/promptvault/internal/db/gorm"
	"github.com/thebtf/promptvault/pkg/models"
)

type memPublisher struct {
	mu      sync.Mutex
	entries []*models.ActivityLog
}

func (p *memPublisher) Publish(e *models.ActivityLog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
}

func (p *memPublisher) actions() []models.ActivityAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ActivityAction, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Action
	}
	return out
}

func (p *memPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
}

// ServiceSuite exercises the services against a real SQLite store.
type ServiceSuite struct {
	suite.Suite
	store *dbgorm.Store
	svc   *Services
	pub   *memPublisher
	ctx   context.Context

	alice, bob, carol *models.User
}

func TestServiceSuite(t *testing.T) {
	bcryptCost = bcrypt.MinCost
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	store, err := dbgorm.NewStore(dbgorm.Config{
		Path:     filepath.Join(s.T().TempDir(), "service.db"),
		LogLevel: logger.Silent,
	})
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = store.Close() })

	s.store = store
	s.pub = &memPublisher{}
	s.svc = New(store, s.pub)
	s.ctx = context.Background()

	s.alice = s.signup("alice")
	s.bob = s.signup("bob")
	s.carol = s.signup("carol")
}

func (s *ServiceSuite) signup(username string) *models.User {
	u, err := s.svc.Users.Signup(s.ctx, SignupRequest{Username: username, Password: "password123"})
	s.Require().NoError(err)
	return u
}

func (s *ServiceSuite) createPrompt(owner *models.User, title string, mods ...func(*CreatePromptRequest)) *models.Prompt {
	req := CreatePromptRequest{Title: title, Content: "content of " + title}
	for _, m := range mods {
		m(&req)
	}
	p, err := s.svc.Prompts.Create(s.ctx, owner.ID, req)
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) createTeam(creator *models.User, name string, members ...*models.User) *models.Team {
	t, err := s.svc.Teams.Create(s.ctx, creator.ID, CreateTeamRequest{Name: name})
	s.Require().NoError(err)
	for _, m := range members {
		_, err := s.svc.Teams.AddMember(s.ctx, creator.ID, t.ID, AddMemberRequest{UserID: m.ID})
		s.Require().NoError(err)
	}
	return t
}

func (s *ServiceSuite) teamAccessCount(promptID string) int64 {
	var n int64
	s.Require().NoError(s.store.DB.Table("prompt_team_access").Where("prompt_id = ?", promptID).Count(&n).Error)
	return n
}

// Prompts

func (s *ServiceSuite) TestCreateDefaults() {
	p := s.createPrompt(s.alice, "defaults")

	s.Equal(models.ContentTypePrompt, p.ContentType)
	s.Equal(models.VisibilityPrivate, p.Visibility)
	s.Equal(s.alice.ID, p.OwnerID)
	s.Nil(p.FolderID)
	s.Equal([]models.ActivityAction{models.ActionCreated}, s.pub.actions())
}

func (s *ServiceSuite) TestCreateValidation() {
	_, err := s.svc.Prompts.Create(s.ctx, s.alice.ID, CreatePromptRequest{Content: "x"})
	s.ErrorIs(err, apperr.ErrValidation)
	s.Contains(err.Error(), "title is required")

	_, err = s.svc.Prompts.Create(s.ctx, s.alice.ID, CreatePromptRequest{Title: "t", Content: "x", Visibility: "SECRET"})
	s.ErrorIs(err, apperr.ErrValidation)

	_, err = s.svc.Prompts.Create(s.ctx, "", CreatePromptRequest{Title: "t", Content: "x"})
	s.ErrorIs(err, apperr.ErrUnauthenticated)
	s.Empty(s.pub.actions())
}

func (s *ServiceSuite) TestCreateInForeignFolder() {
	folder, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "mine"})
	s.Require().NoError(err)

	_, err = s.svc.Prompts.Create(s.ctx, s.bob.ID, CreatePromptRequest{Title: "t", Content: "x", FolderID: &folder.ID})
	s.ErrorIs(err, apperr.ErrForbidden)

	missing := "no-such-folder"
	_, err = s.svc.Prompts.Create(s.ctx, s.bob.ID, CreatePromptRequest{Title: "t", Content: "x", FolderID: &missing})
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *ServiceSuite) TestCoCreatorScenario() {
	p := s.createPrompt(s.alice, "shared draft")

	_, err := s.svc.Prompts.Get(s.ctx, s.bob.ID, p.ID)
	s.ErrorIs(err, apperr.ErrForbidden)

	cc, err := s.svc.Prompts.AddCoCreator(s.ctx, s.alice.ID, p.ID, AddCoCreatorRequest{UserID: s.bob.ID})
	s.Require().NoError(err)
	s.Equal("bob", cc.User.Username)

	d, err := s.svc.Prompts.Get(s.ctx, s.bob.ID, p.ID)
	s.Require().NoError(err)
	s.Equal("alice", d.Owner.Username)
	s.Require().Len(d.CoCreators, 1)
	s.Equal(s.bob.ID, d.CoCreators[0].UserID)

	title := "edited by bob"
	updated, err := s.svc.Prompts.Update(s.ctx, s.bob.ID, p.ID, UpdatePromptRequest{Title: &title})
	s.Require().NoError(err)
	s.Equal(title, updated.Title)

	err = s.svc.Prompts.Delete(s.ctx, s.bob.ID, p.ID)
	s.ErrorIs(err, apperr.ErrForbidden)

	// Co-creators may share too, but never with the owner or twice.
	_, err = s.svc.Prompts.AddCoCreator(s.ctx, s.bob.ID, p.ID, AddCoCreatorRequest{UserID: s.alice.ID})
	s.ErrorIs(err, apperr.ErrInvalidState)
	_, err = s.svc.Prompts.AddCoCreator(s.ctx, s.alice.ID, p.ID, AddCoCreatorRequest{UserID: s.bob.ID})
	s.ErrorIs(err, apperr.ErrInvalidState)
	_, err = s.svc.Prompts.AddCoCreator(s.ctx, s.alice.ID, p.ID, AddCoCreatorRequest{UserID: "ghost"})
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *ServiceSuite) TestRemoveCoCreator() {
	p := s.createPrompt(s.alice, "p")
	_, err := s.svc.Prompts.AddCoCreator(s.ctx, s.alice.ID, p.ID, AddCoCreatorRequest{UserID: s.bob.ID})
	s.Require().NoError(err)
	s.pub.reset()

	s.Require().NoError(s.svc.Prompts.RemoveCoCreator(s.ctx, s.alice.ID, p.ID, s.bob.ID))
	s.Equal([]models.ActivityAction{models.ActionShared}, s.pub.actions())

	// Absent rows are a silent no-op.
	s.pub.reset()
	s.Require().NoError(s.svc.Prompts.RemoveCoCreator(s.ctx, s.alice.ID, p.ID, s.bob.ID))
	s.Empty(s.pub.actions())

	_, err = s.svc.Prompts.Get(s.ctx, s.bob.ID, p.ID)
	s.ErrorIs(err, apperr.ErrForbidden)
}

func (s *ServiceSuite) TestUpdateSnapshotsEveryChange() {
	p := s.createPrompt(s.alice, "history")

	const n = 3
	for i := 1; i <= n; i++ {
		content := fmt.Sprintf("content %d", i)
		_, err := s.svc.Prompts.Update(s.ctx, s.alice.ID, p.ID, UpdatePromptRequest{Content: &content})
		s.Require().NoError(err)
	}

	versions, err := s.svc.Prompts.Versions(s.ctx, s.alice.ID, p.ID)
	s.Require().NoError(err)
	s.Require().Len(versions, n)
	s.Equal(n, versions[0].Version)
	s.Equal("content of history", versions[n-1].Content)
	s.Equal("content 2", versions[0].Content)

	restored, err := s.svc.Prompts.RestoreVersion(s.ctx, s.alice.ID, p.ID, 2)
	s.Require().NoError(err)
	s.Equal("content 1", restored.Content)

	versions, err = s.svc.Prompts.Versions(s.ctx, s.alice.ID, p.ID)
	s.Require().NoError(err)
	s.Require().Len(versions, n+1)
	s.Equal("content 3", versions[0].Content)

	_, err = s.svc.Prompts.RestoreVersion(s.ctx, s.alice.ID, p.ID, 42)
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *ServiceSuite) TestRestoreReproducesEveryField() {
	url := "https://example.com/brief"
	notes := "fill every variable"
	original := s.createPrompt(s.alice, "rich", func(r *CreatePromptRequest) {
		r.ContentURL = &url
		r.UsageNotes = &notes
		r.ContentType = models.ContentTypeTemplate
		r.Variables = models.Variables{{Name: "audience", Description: "who reads it"}, {Name: "tone"}}
		r.ExampleIO = models.ExampleIOs{{Input: "launch", Output: "We are live."}}
		r.Tags = []string{"writing", "launch"}
		r.CustomSections = models.JSONObject{
			"checklist": []any{"proofread", "links"},
			"limits":    map[string]any{"max_words": float64(200)},
		}
		r.Metadata = models.JSONObject{"source": "import", "reviewed": true}
	})

	title, content, empty := "rewritten", "new body", ""
	vars := models.Variables{{Name: "other"}}
	examples := models.ExampleIOs{}
	tags := []string{"changed"}
	sections := models.JSONObject{"checklist": []any{}}
	meta := models.JSONObject{"source": "manual"}
	_, err := s.svc.Prompts.Update(s.ctx, s.alice.ID, original.ID, UpdatePromptRequest{
		Title: &title, Content: &content, ContentURL: &empty, UsageNotes: &empty,
		Variables: &vars, ExampleIO: &examples, Tags: &tags,
		CustomSections: &sections, Metadata: &meta,
	})
	s.Require().NoError(err)

	restored, err := s.svc.Prompts.RestoreVersion(s.ctx, s.alice.ID, original.ID, 1)
	s.Require().NoError(err)
	s.Equal(original.PromptFields, restored.PromptFields)
	s.Equal(models.ContentTypeTemplate, restored.ContentType)

	// The edited state was kept as version 2, field for field.
	v2, err := s.store.Stores().Versions.Get(s.ctx, original.ID, 2)
	s.Require().NoError(err)
	s.Equal("rewritten", v2.Title)
	s.Nil(v2.ContentURL)
	s.Equal(vars, v2.Variables)
	s.Equal(models.JSONObject{"source": "manual"}, v2.Metadata)
}

func (s *ServiceSuite) TestConcurrentUpdatesNumberVersionsDensely() {
	p := s.createPrompt(s.alice, "contended")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := fmt.Sprintf("writer %d", i)
			_, err := s.svc.Prompts.Update(s.ctx, s.alice.ID, p.ID, UpdatePromptRequest{Content: &content})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	versions, err := s.svc.Prompts.Versions(s.ctx, s.alice.ID, p.ID)
	s.Require().NoError(err)
	s.Require().Len(versions, n)
	for i, v := range versions {
		s.Equal(n-i, v.Version)
	}
	// Each snapshot holds what the previous writer left behind.
	s.Equal("content of contended", versions[n-1].Content)
	current, err := s.store.Stores().Prompts.GetByID(s.ctx, p.ID)
	s.Require().NoError(err)
	for i := 0; i < n-1; i++ {
		s.NotEqual(versions[i].Content, versions[i+1].Content)
	}
	s.NotEqual(current.Content, versions[0].Content)
}

func (s *ServiceSuite) TestSearchFoldsNonASCII() {
	p := s.createPrompt(s.alice, "Élan guide")

	for _, q := range []string{"élan", "Élan", "ÉLAN"} {
		page, err := s.svc.Prompts.Search(s.ctx, s.alice.ID, SearchPromptsRequest{Query: q})
		s.Require().NoError(err)
		s.Require().Len(page.Items, 1, "query %q", q)
		s.Equal(p.ID, page.Items[0].ID)
	}
}

func (s *ServiceSuite) TestUpdatePatchSemantics() {
	notes := "use carefully"
	p := s.createPrompt(s.alice, "patch", func(r *CreatePromptRequest) {
		r.UsageNotes = &notes
		r.Tags = []string{"a", "b", "a"}
	})
	s.Equal(models.JSONStringArray{"a", "b"}, p.Tags)

	empty := ""
	ct := models.ContentTypeTemplate
	updated, err := s.svc.Prompts.Update(s.ctx, s.alice.ID, p.ID, UpdatePromptRequest{UsageNotes: &empty, ContentType: &ct})
	s.Require().NoError(err)
	s.Nil(updated.UsageNotes)
	s.Equal("patch", updated.Title)
	s.Equal(models.ContentTypeTemplate, updated.ContentType)
	s.Equal(models.JSONStringArray{"a", "b"}, updated.Tags)

	_, err = s.svc.Prompts.Update(s.ctx, s.carol.ID, p.ID, UpdatePromptRequest{UsageNotes: &empty})
	s.ErrorIs(err, apperr.ErrForbidden)
}

func (s *ServiceSuite) TestDeleteOwnerOnly() {
	p := s.createPrompt(s.alice, "doomed", func(r *CreatePromptRequest) { r.Visibility = models.VisibilityPublic })

	s.ErrorIs(s.svc.Prompts.Delete(s.ctx, s.bob.ID, p.ID), apperr.ErrForbidden)
	s.Require().NoError(s.svc.Prompts.Delete(s.ctx, s.alice.ID, p.ID))

	_, err := s.svc.Prompts.Get(s.ctx, s.alice.ID, p.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
	s.ErrorIs(s.svc.Prompts.Delete(s.ctx, s.alice.ID, p.ID), apperr.ErrNotFound)
}

func (s *ServiceSuite) TestDuplicate() {
	folder, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "f"})
	s.Require().NoError(err)
	src := s.createPrompt(s.alice, "original", func(r *CreatePromptRequest) {
		r.Visibility = models.VisibilityPublic
		r.FolderID = &folder.ID
		r.Tags = []string{"x"}
	})
	s.pub.reset()

	cp, err := s.svc.Prompts.Duplicate(s.ctx, s.bob.ID, src.ID)
	s.Require().NoError(err)
	s.NotEqual(src.ID, cp.ID)
	s.Equal("original (Copy)", cp.Title)
	s.Equal(s.bob.ID, cp.OwnerID)
	s.Equal(models.VisibilityPrivate, cp.Visibility)
	s.Nil(cp.FolderID)
	s.Equal(src.Content, cp.Content)
	s.Equal(models.JSONStringArray{"x"}, cp.Tags)

	s.Require().Len(s.pub.entries, 1)
	s.Equal(models.ActionCopied, s.pub.entries[0].Action)
	s.Equal(src.ID, s.pub.entries[0].Metadata["source_prompt_id"])

	private := s.createPrompt(s.alice, "hidden")
	_, err = s.svc.Prompts.Duplicate(s.ctx, s.bob.ID, private.ID)
	s.ErrorIs(err, apperr.ErrForbidden)
}

func (s *ServiceSuite) TestMove() {
	folder, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "target"})
	s.Require().NoError(err)
	p := s.createPrompt(s.alice, "mover")

	moved, err := s.svc.Prompts.Move(s.ctx, s.alice.ID, p.ID, MovePromptRequest{FolderID: &folder.ID})
	s.Require().NoError(err)
	s.Require().NotNil(moved.FolderID)
	s.Equal(folder.ID, *moved.FolderID)

	moved, err = s.svc.Prompts.Move(s.ctx, s.alice.ID, p.ID, MovePromptRequest{})
	s.Require().NoError(err)
	s.Nil(moved.FolderID)

	bobFolder, err := s.svc.Folders.Create(s.ctx, s.bob.ID, CreateFolderRequest{Name: "bob's"})
	s.Require().NoError(err)
	_, err = s.svc.Prompts.Move(s.ctx, s.alice.ID, p.ID, MovePromptRequest{FolderID: &bobFolder.ID})
	s.ErrorIs(err, apperr.ErrForbidden)
}

func (s *ServiceSuite) TestUpdateVisibility() {
	team := s.createTeam(s.alice, "core", s.carol)
	other := s.createTeam(s.alice, "other")
	p := s.createPrompt(s.alice, "vis")

	_, err := s.svc.Prompts.UpdateVisibility(s.ctx, s.alice.ID, p.ID, UpdateVisibilityRequest{
		Visibility: models.VisibilityTeam,
		TeamIDs:    []string{team.ID, other.ID},
	})
	s.Require().NoError(err)
	s.EqualValues(2, s.teamAccessCount(p.ID))

	// A new list replaces the set.
	_, err = s.svc.Prompts.UpdateVisibility(s.ctx, s.alice.ID, p.ID, UpdateVisibilityRequest{
		Visibility: models.VisibilityTeam,
		TeamIDs:    []string{team.ID},
	})
	s.Require().NoError(err)
	s.EqualValues(1, s.teamAccessCount(p.ID))

	for _, v := range []models.Visibility{models.VisibilityPublic, models.VisibilityPrivate} {
		updated, err := s.svc.Prompts.UpdateVisibility(s.ctx, s.alice.ID, p.ID, UpdateVisibilityRequest{Visibility: v})
		s.Require().NoError(err)
		s.Equal(v, updated.Visibility)
		s.Zero(s.teamAccessCount(p.ID))
	}

	// Co-creators cannot change visibility; only teams the owner belongs to can be granted.
	_, err = s.svc.Prompts.AddCoCreator(s.ctx, s.alice.ID, p.ID, AddCoCreatorRequest{UserID: s.bob.ID})
	s.Require().NoError(err)
	_, err = s.svc.Prompts.UpdateVisibility(s.ctx, s.bob.ID, p.ID, UpdateVisibilityRequest{Visibility: models.VisibilityPublic})
	s.ErrorIs(err, apperr.ErrForbidden)

	bobTeam := s.createTeam(s.bob, "bob's team")
	_, err = s.svc.Prompts.UpdateVisibility(s.ctx, s.alice.ID, p.ID, UpdateVisibilityRequest{
		Visibility: models.VisibilityTeam,
		TeamIDs:    []string{bobTeam.ID},
	})
	s.ErrorIs(err, apperr.ErrForbidden)

	// One foreign team in the list rejects the whole grant.
	_, err = s.svc.Prompts.UpdateVisibility(s.ctx, s.alice.ID, p.ID, UpdateVisibilityRequest{
		Visibility: models.VisibilityTeam,
		TeamIDs:    []string{team.ID, bobTeam.ID},
	})
	s.ErrorIs(err, apperr.ErrForbidden)
	s.Contains(err.Error(), bobTeam.ID)
	s.Zero(s.teamAccessCount(p.ID))

	_, err = s.svc.Prompts.UpdateVisibility(s.ctx, s.alice.ID, p.ID, UpdateVisibilityRequest{
		Visibility: models.VisibilityTeam,
		TeamIDs:    []string{team.ID, "no-such-team"},
	})
	s.ErrorIs(err, apperr.ErrNotFound)
	s.Zero(s.teamAccessCount(p.ID))
}

func (s *ServiceSuite) TestListAndSearchVisibility() {
	team := s.createTeam(s.alice, "readers", s.carol)
	s.createPrompt(s.alice, "private alpha")
	s.createPrompt(s.alice, "public alpha", func(r *CreatePromptRequest) { r.Visibility = models.VisibilityPublic })
	s.createPrompt(s.alice, "team alpha", func(r *CreatePromptRequest) {
		r.Visibility = models.VisibilityTeam
		r.TeamIDs = []string{team.ID}
		r.Tags = []string{"ops"}
	})
	s.createPrompt(s.bob, "bob beta")

	titles := func(page *models.Page[*models.PromptListItem]) []string {
		var out []string
		for _, it := range page.Items {
			out = append(out, it.Title)
		}
		return out
	}

	page, err := s.svc.Prompts.List(s.ctx, s.carol.ID, ListPromptsRequest{})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"public alpha", "team alpha"}, titles(page))

	page, err = s.svc.Prompts.List(s.ctx, s.bob.ID, ListPromptsRequest{})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"public alpha", "bob beta"}, titles(page))

	page, err = s.svc.Prompts.Search(s.ctx, s.carol.ID, SearchPromptsRequest{Query: "ALPHA"})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"public alpha", "team alpha"}, titles(page))

	page, err = s.svc.Prompts.Search(s.ctx, s.carol.ID, SearchPromptsRequest{Query: "ops"})
	s.Require().NoError(err)
	s.Equal([]string{"team alpha"}, titles(page))
	s.Require().NotNil(page.Items[0].Owner)
	s.Equal("alice", page.Items[0].Owner.Username)

	_, err = s.svc.Prompts.Search(s.ctx, s.carol.ID, SearchPromptsRequest{})
	s.ErrorIs(err, apperr.ErrValidation)
	_, err = s.svc.Prompts.List(s.ctx, s.carol.ID, ListPromptsRequest{Limit: 500})
	s.ErrorIs(err, apperr.ErrValidation)
}

func (s *ServiceSuite) TestListPagination() {
	for i := 0; i < 5; i++ {
		s.createPrompt(s.alice, fmt.Sprintf("p%d", i))
	}

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := s.svc.Prompts.List(s.ctx, s.alice.ID, ListPromptsRequest{Limit: 2, Cursor: cursor})
		s.Require().NoError(err)
		pages++
		for _, it := range page.Items {
			s.False(seen[it.ID], "prompt %s returned twice", it.ID)
			seen[it.ID] = true
		}
		if page.NextCursor == nil {
			break
		}
		cursor = *page.NextCursor
	}
	s.Len(seen, 5)
	s.Equal(3, pages)
}

// Folders

func (s *ServiceSuite) TestFolderScenario() {
	f1, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "F1"})
	s.Require().NoError(err)
	p := s.createPrompt(s.alice, "inside", func(r *CreatePromptRequest) { r.FolderID = &f1.ID })

	err = s.svc.Folders.Delete(s.ctx, s.alice.ID, f1.ID)
	s.ErrorIs(err, apperr.ErrInvalidState)
	s.Contains(err.Error(), "1 prompts and 0 subfolders")

	_, err = s.svc.Folders.Get(s.ctx, s.alice.ID, f1.ID)
	s.Require().NoError(err)

	_, err = s.svc.Prompts.Move(s.ctx, s.alice.ID, p.ID, MovePromptRequest{})
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Folders.Delete(s.ctx, s.alice.ID, f1.ID))

	_, err = s.svc.Folders.Get(s.ctx, s.alice.ID, f1.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *ServiceSuite) TestFolderDeleteIgnoresDeletedPrompts() {
	f, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "F"})
	s.Require().NoError(err)
	child, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "child", ParentID: &f.ID})
	s.Require().NoError(err)
	p := s.createPrompt(s.alice, "gone", func(r *CreatePromptRequest) { r.FolderID = &f.ID })
	s.Require().NoError(s.svc.Prompts.Delete(s.ctx, s.alice.ID, p.ID))

	err = s.svc.Folders.Delete(s.ctx, s.alice.ID, f.ID)
	s.Require().Error(err)
	s.Contains(err.Error(), "0 prompts and 1 subfolders")

	s.Require().NoError(s.svc.Folders.Delete(s.ctx, s.alice.ID, child.ID))
	s.Require().NoError(s.svc.Folders.Delete(s.ctx, s.alice.ID, f.ID))
}

func (s *ServiceSuite) TestFolderMoveRejectsCycles() {
	a, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "a"})
	s.Require().NoError(err)
	b, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "b", ParentID: &a.ID})
	s.Require().NoError(err)
	c, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "c", ParentID: &b.ID})
	s.Require().NoError(err)

	for _, target := range []string{a.ID, b.ID, c.ID} {
		_, err := s.svc.Folders.Move(s.ctx, s.alice.ID, a.ID, MoveFolderRequest{ParentID: &target})
		s.ErrorIs(err, apperr.ErrInvalidState, "move under %s", target)
	}
	got, err := s.svc.Folders.Get(s.ctx, s.alice.ID, a.ID)
	s.Require().NoError(err)
	s.Nil(got.ParentID)

	moved, err := s.svc.Folders.Move(s.ctx, s.alice.ID, c.ID, MoveFolderRequest{})
	s.Require().NoError(err)
	s.Nil(moved.ParentID)
	moved, err = s.svc.Folders.Move(s.ctx, s.alice.ID, a.ID, MoveFolderRequest{ParentID: &c.ID})
	s.Require().NoError(err)
	s.Equal(c.ID, *moved.ParentID)
}

func (s *ServiceSuite) TestFolderOwnership() {
	a, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "a"})
	s.Require().NoError(err)

	_, err = s.svc.Folders.Create(s.ctx, s.bob.ID, CreateFolderRequest{Name: "x", ParentID: &a.ID})
	s.ErrorIs(err, apperr.ErrForbidden)
	_, err = s.svc.Folders.Get(s.ctx, s.bob.ID, a.ID)
	s.ErrorIs(err, apperr.ErrForbidden)
	s.ErrorIs(s.svc.Folders.Delete(s.ctx, s.bob.ID, a.ID), apperr.ErrForbidden)

	name := "renamed"
	updated, err := s.svc.Folders.Update(s.ctx, s.alice.ID, a.ID, UpdateFolderRequest{Name: &name})
	s.Require().NoError(err)
	s.Equal("renamed", updated.Name)
}

func (s *ServiceSuite) TestFolderList() {
	root, err := s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "root"})
	s.Require().NoError(err)
	_, err = s.svc.Folders.Create(s.ctx, s.alice.ID, CreateFolderRequest{Name: "sub", ParentID: &root.ID})
	s.Require().NoError(err)
	s.createPrompt(s.alice, "in root", func(r *CreatePromptRequest) { r.FolderID = &root.ID })

	listing, err := s.svc.Folders.List(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Require().Len(listing.Folders, 2)
	s.Equal("root", listing.Folders[0].Name)
	s.Equal(1, listing.Folders[0].PromptCount)
	s.Equal(1, listing.Folders[0].ChildCount)
	s.Equal([]string{root.ID}, listing.Tree.Roots)

	listing, err = s.svc.Folders.List(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Empty(listing.Folders)
}

// Teams

func (s *ServiceSuite) TestTeamScenario() {
	team := s.createTeam(s.alice, "crew", s.carol)
	p := s.createPrompt(s.alice, "crew notes", func(r *CreatePromptRequest) {
		r.Visibility = models.VisibilityTeam
		r.TeamIDs = []string{team.ID}
	})

	_, err := s.svc.Prompts.Get(s.ctx, s.carol.ID, p.ID)
	s.Require().NoError(err)
	_, err = s.svc.Prompts.Get(s.ctx, s.bob.ID, p.ID)
	s.ErrorIs(err, apperr.ErrForbidden)

	s.ErrorIs(s.svc.Teams.Delete(s.ctx, s.carol.ID, team.ID), apperr.ErrForbidden)
	s.Require().NoError(s.svc.Teams.Delete(s.ctx, s.alice.ID, team.ID))

	d, err := s.svc.Prompts.Get(s.ctx, s.alice.ID, p.ID)
	s.Require().NoError(err)
	s.Equal(models.VisibilityPrivate, d.Visibility)
	s.Empty(d.Teams)

	_, err = s.svc.Prompts.Get(s.ctx, s.carol.ID, p.ID)
	s.ErrorIs(err, apperr.ErrForbidden)
	s.ErrorIs(s.svc.Teams.Delete(s.ctx, s.alice.ID, team.ID), apperr.ErrNotFound)
}

func (s *ServiceSuite) TestTeamDeleteKeepsOtherGrants() {
	doomed := s.createTeam(s.alice, "doomed")
	kept := s.createTeam(s.alice, "kept", s.carol)
	p := s.createPrompt(s.alice, "two teams", func(r *CreatePromptRequest) {
		r.Visibility = models.VisibilityTeam
		r.TeamIDs = []string{doomed.ID, kept.ID}
	})

	s.Require().NoError(s.svc.Teams.Delete(s.ctx, s.alice.ID, doomed.ID))

	d, err := s.svc.Prompts.Get(s.ctx, s.carol.ID, p.ID)
	s.Require().NoError(err)
	s.Equal(models.VisibilityTeam, d.Visibility)
	s.Require().Len(d.Teams, 1)
	s.Equal(kept.ID, d.Teams[0].ID)
}

func (s *ServiceSuite) TestTeamCreatorProtection() {
	team := s.createTeam(s.alice, "guarded", s.bob)
	_, err := s.svc.Teams.UpdateMemberRole(s.ctx, s.alice.ID, team.ID, s.bob.ID, UpdateMemberRoleRequest{Role: models.TeamRoleAdmin})
	s.Require().NoError(err)

	for _, actor := range []*models.User{s.alice, s.bob} {
		err := s.svc.Teams.RemoveMember(s.ctx, actor.ID, team.ID, s.alice.ID)
		s.ErrorIs(err, apperr.ErrInvalidState)
		_, err = s.svc.Teams.UpdateMemberRole(s.ctx, actor.ID, team.ID, s.alice.ID, UpdateMemberRoleRequest{Role: models.TeamRoleMember})
		s.ErrorIs(err, apperr.ErrInvalidState)
	}

	d, err := s.svc.Teams.Get(s.ctx, s.bob.ID, team.ID)
	s.Require().NoError(err)
	s.Equal("alice", d.Creator.Username)
	s.Require().Len(d.Members, 2)
	s.Equal(models.TeamRoleAdmin, d.Members[0].Role)
}

func (s *ServiceSuite) TestTeamAdminOnly() {
	team := s.createTeam(s.alice, "club", s.bob)

	_, err := s.svc.Teams.AddMember(s.ctx, s.bob.ID, team.ID, AddMemberRequest{UserID: s.carol.ID})
	s.ErrorIs(err, apperr.ErrForbidden)
	_, err = s.svc.Teams.AddMember(s.ctx, s.carol.ID, team.ID, AddMemberRequest{UserID: s.carol.ID})
	s.ErrorIs(err, apperr.ErrForbidden)
	_, err = s.svc.Teams.AddMember(s.ctx, s.alice.ID, "no-team", AddMemberRequest{UserID: s.carol.ID})
	s.ErrorIs(err, apperr.ErrNotFound)
	_, err = s.svc.Teams.AddMember(s.ctx, s.alice.ID, team.ID, AddMemberRequest{UserID: s.bob.ID})
	s.ErrorIs(err, apperr.ErrInvalidState)

	_, err = s.svc.Teams.Get(s.ctx, s.carol.ID, team.ID)
	s.ErrorIs(err, apperr.ErrForbidden)

	s.Require().NoError(s.svc.Teams.RemoveMember(s.ctx, s.alice.ID, team.ID, s.bob.ID))
	s.Require().NoError(s.svc.Teams.RemoveMember(s.ctx, s.alice.ID, team.ID, s.bob.ID))

	teams, err := s.svc.Teams.List(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Empty(teams)
	teams, err = s.svc.Teams.List(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Len(teams, 1)
}

// Activity

func (s *ServiceSuite) TestActivityFeeds() {
	p := s.createPrompt(s.alice, "tracked", func(r *CreatePromptRequest) { r.Visibility = models.VisibilityPublic })
	_, err := s.svc.Prompts.Get(s.ctx, s.bob.ID, p.ID)
	s.Require().NoError(err)
	_, err = s.svc.Prompts.Get(s.ctx, s.alice.ID, p.ID)
	s.Require().NoError(err)

	recent, err := s.svc.Activity.Recent(s.ctx, s.alice.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal(models.ActionViewed, recent[0].Action)
	s.Equal(models.ActionCreated, recent[1].Action)
	s.Equal("tracked", recent[0].Prompt.Title)

	forPrompt, err := s.svc.Activity.ForPrompt(s.ctx, s.bob.ID, p.ID, 0)
	s.Require().NoError(err)
	s.Len(forPrompt, 3)

	private := s.createPrompt(s.alice, "secret")
	_, err = s.svc.Activity.ForPrompt(s.ctx, s.bob.ID, private.ID, 0)
	s.ErrorIs(err, apperr.ErrForbidden)
	_, err = s.svc.Activity.Log(s.ctx, s.bob.ID, LogActivityRequest{PromptID: &private.ID, Action: models.ActionViewed})
	s.ErrorIs(err, apperr.ErrForbidden)

	entry, err := s.svc.Activity.Log(s.ctx, s.bob.ID, LogActivityRequest{Action: models.ActionShared, Metadata: models.JSONObject{"via": "link"}})
	s.Require().NoError(err)
	s.Nil(entry.PromptID)

	_, err = s.svc.Activity.Log(s.ctx, s.bob.ID, LogActivityRequest{Action: "EXPLODED"})
	s.ErrorIs(err, apperr.ErrValidation)
}

func (s *ServiceSuite) TestFailedMutationPublishesNothing() {
	p := s.createPrompt(s.alice, "p")
	s.pub.reset()

	s.ErrorIs(s.svc.Prompts.Delete(s.ctx, s.bob.ID, p.ID), apperr.ErrForbidden)
	_, err := s.svc.Prompts.RestoreVersion(s.ctx, s.alice.ID, p.ID, 1)
	s.ErrorIs(err, apperr.ErrNotFound)
	s.Empty(s.pub.actions())

	recent, err := s.svc.Activity.Recent(s.ctx, s.alice.ID, 0)
	s.Require().NoError(err)
	s.Len(recent, 1)
}

// Users

func (s *ServiceSuite) TestSignupAndAuthenticate() {
	email := "Dave@Example.com"
	u, err := s.svc.Users.Signup(s.ctx, SignupRequest{Username: "dave", Password: "correct horse", Email: &email})
	s.Require().NoError(err)
	s.NotEqual("correct horse", u.PasswordHash)

	got, err := s.svc.Users.Authenticate(s.ctx, LoginRequest{Username: "dave", Password: "correct horse"})
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.svc.Users.Authenticate(s.ctx, LoginRequest{Username: "dave", Password: "wrong password"})
	s.ErrorIs(err, apperr.ErrUnauthenticated)
	_, err = s.svc.Users.Authenticate(s.ctx, LoginRequest{Username: "nobody", Password: "whatever1"})
	s.ErrorIs(err, apperr.ErrUnauthenticated)

	found, err := s.svc.Users.Lookup(s.ctx, s.alice.ID, "dave@example.com")
	s.Require().NoError(err)
	s.Equal("dave", found.Username)

	_, err = s.svc.Users.Signup(s.ctx, SignupRequest{Username: "dave", Password: "another one"})
	s.ErrorIs(err, apperr.ErrInvalidState)
}

func (s *ServiceSuite) TestSignupValidation() {
	cases := []SignupRequest{
		{Username: "ab", Password: "password123"},
		{Username: "has space", Password: "password123"},
		{Username: "valid_name", Password: "short"},
		{Username: "valid_name", Password: "password123", Email: strPtr("not-an-email")},
	}
	for _, req := range cases {
		_, err := s.svc.Users.Signup(s.ctx, req)
		s.ErrorIs(err, apperr.ErrValidation, "%+v", req)
	}
}

func (s *ServiceSuite) TestMe() {
	me, err := s.svc.Users.Me(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal("alice", me.Username)

	_, err = s.svc.Users.Me(s.ctx, "")
	s.ErrorIs(err, apperr.ErrUnauthenticated)
}
