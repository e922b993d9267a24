package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

// UserService handles accounts and credentials. Issuing tokens is left to
// the auth package.
type UserService struct {
	*core
}

// Signup registers a new account.
func (s *UserService) Signup(ctx context.Context, req SignupRequest) (u *models.User, err error) {
	ctx, done := s.begin(ctx, "user.signup", "")
	defer done(&err)

	req.Username = strings.TrimSpace(req.Username)
	if req.Email != nil {
		req.Email = emptyToNil(strPtr(strings.TrimSpace(*req.Email)))
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	u, err = s.read().Users.Create(ctx, &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Email:        req.Email,
		Name:         emptyToNil(req.Name),
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("User signed up")
	return u, nil
}

// Authenticate checks a username and password. Any mismatch is an
// authentication failure that does not reveal which part was wrong.
func (s *UserService) Authenticate(ctx context.Context, req LoginRequest) (u *models.User, err error) {
	ctx, done := s.begin(ctx, "user.authenticate", "")
	defer done(&err)

	if err = s.check(req); err != nil {
		return nil, err
	}
	u, err = s.read().Users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, apperr.Unauthenticated("invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperr.Unauthenticated("invalid username or password")
		}
		return nil, apperr.Internal("compare password", err)
	}
	return u, nil
}

// Me returns the authenticated user's account.
func (s *UserService) Me(ctx context.Context, actorID string) (u *models.User, err error) {
	ctx, done := s.begin(ctx, "user.me", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	u, err = s.read().Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		// The token outlived its account.
		return nil, apperr.Unauthenticated("account no longer exists")
	}
	return u, nil
}

// Lookup finds a user by username, or by email when query contains "@".
func (s *UserService) Lookup(ctx context.Context, actorID, query string) (summary *models.UserSummary, err error) {
	ctx, done := s.begin(ctx, "user.lookup", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("q is required")
	}
	u, err := s.read().Users.Lookup(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		return nil, apperr.NotFound("no user matches %q", query)
	}
	return u.Summary(), nil
}
