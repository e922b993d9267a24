package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// TeamService manages teams and their memberships.
type TeamService struct {
	*core
}

// Create adds a team with actorID as its creator and sole admin.
func (s *TeamService) Create(ctx context.Context, actorID string, req CreateTeamRequest) (t *models.Team, err error) {
	ctx, done := s.begin(ctx, "team.create", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	t = &models.Team{Name: req.Name, Description: emptyToNil(req.Description), CreatorID: actorID}
	err = s.inTx(ctx, func(tx *scope) error {
		if err := tx.Teams.Create(ctx, t); err != nil {
			return fmt.Errorf("create team: %w", err)
		}
		if _, err := tx.Teams.AddMember(ctx, t.ID, actorID, models.TeamRoleAdmin); err != nil {
			return fmt.Errorf("add creator: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("team_id", t.ID).Msg("Team created")
	return t, nil
}

// Get returns a team with its creator and members. Members only.
func (s *TeamService) Get(ctx context.Context, actorID, id string) (d *models.TeamDetail, err error) {
	ctx, done := s.begin(ctx, "team.get", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	st := s.read()
	team, _, err := st.perm.RequireTeamMember(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, st, id)
	if err != nil {
		return nil, err
	}
	d = &models.TeamDetail{Team: team, Members: members}
	for _, m := range members {
		if m.UserID == team.CreatorID {
			d.Creator = m.User
		}
	}
	return d, nil
}

// List returns the teams actorID belongs to, newest first.
func (s *TeamService) List(ctx context.Context, actorID string) (teams []*models.Team, err error) {
	ctx, done := s.begin(ctx, "team.list", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	teams, err = s.read().Teams.ListForUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

// Update renames a team or changes its description. Admins only.
func (s *TeamService) Update(ctx context.Context, actorID, id string, req UpdateTeamRequest) (t *models.Team, err error) {
	ctx, done := s.begin(ctx, "team.update", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		current, err := tx.perm.RequireTeamAdmin(ctx, actorID, id)
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
		if err := tx.Teams.Update(ctx, id, name, description); err != nil {
			return fmt.Errorf("update team: %w", err)
		}
		t, err = tx.Teams.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("team_id", id).Msg("Team updated")
	return t, nil
}

// Delete removes a team. Only its creator may do it. Prompts shared with no
// other team become private, and every grant to this team is dropped.
func (s *TeamService) Delete(ctx context.Context, actorID, id string) (err error) {
	ctx, done := s.begin(ctx, "team.delete", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return err
	}

	var orphaned []string
	err = s.inTx(ctx, func(tx *scope) error {
		team, err := tx.Teams.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load team: %w", err)
		}
		if team == nil {
			return apperr.NotFound("team %s not found", id)
		}
		if team.CreatorID != actorID {
			return apperr.Forbidden("only the team creator can delete the team")
		}

		if orphaned, err = tx.Prompts.IDsSharedOnlyWith(ctx, id); err != nil {
			return fmt.Errorf("find team-only prompts: %w", err)
		}
		if err := tx.Prompts.MakePrivate(ctx, orphaned); err != nil {
			return fmt.Errorf("make prompts private: %w", err)
		}
		if err := tx.Prompts.DeleteTeamAccessForTeam(ctx, id); err != nil {
			return fmt.Errorf("drop team access: %w", err)
		}
		if err := tx.Teams.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete team: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("actor", actorID).Str("team_id", id).Int("privatized", len(orphaned)).Msg("Team deleted")
	return nil
}

// ListMembers returns the team's members in join order. Members only.
func (s *TeamService) ListMembers(ctx context.Context, actorID, id string) (members []*models.TeamMember, err error) {
	ctx, done := s.begin(ctx, "team.list_members", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}

	st := s.read()
	if _, _, err = st.perm.RequireTeamMember(ctx, actorID, id); err != nil {
		return nil, err
	}
	return s.members(ctx, st, id)
}

func (s *TeamService) members(ctx context.Context, st *scope, teamID string) ([]*models.TeamMember, error) {
	members, err := st.Teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	users, err := st.Users.GetSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	for _, m := range members {
		m.User = users[m.UserID]
	}
	return members, nil
}

// AddMember adds a user to the team, as MEMBER unless a role is given. Admins only.
func (s *TeamService) AddMember(ctx context.Context, actorID, teamID string, req AddMemberRequest) (m *models.TeamMember, err error) {
	ctx, done := s.begin(ctx, "team.add_member", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = models.TeamRoleMember
	}

	err = s.inTx(ctx, func(tx *scope) error {
		if _, err := tx.perm.RequireTeamAdmin(ctx, actorID, teamID); err != nil {
			return err
		}
		user, err := tx.Users.GetByID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			return apperr.NotFound("user %s not found", req.UserID)
		}
		if m, err = tx.Teams.AddMember(ctx, teamID, user.ID, role); err != nil {
			return err
		}
		m.User = user.Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("team_id", teamID).Str("user_id", req.UserID).Str("role", string(role)).Msg("Team member added")
	return m, nil
}

// RemoveMember drops a user from the team. Admins only; the creator cannot
// be removed. Removing a non-member succeeds without effect.
func (s *TeamService) RemoveMember(ctx context.Context, actorID, teamID, userID string) (err error) {
	ctx, done := s.begin(ctx, "team.remove_member", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return err
	}

	var removed bool
	err = s.inTx(ctx, func(tx *scope) error {
		team, err := tx.perm.RequireTeamAdmin(ctx, actorID, teamID)
		if err != nil {
			return err
		}
		if userID == team.CreatorID {
			return apperr.InvalidState("the team creator cannot be removed")
		}
		removed, err = tx.Teams.RemoveMember(ctx, teamID, userID)
		return err
	})
	if err != nil {
		return err
	}

	if removed {
		log.Info().Str("actor", actorID).Str("team_id", teamID).Str("user_id", userID).Msg("Team member removed")
	}
	return nil
}

// UpdateMemberRole changes a member's role. Admins only; the creator's role is fixed.
func (s *TeamService) UpdateMemberRole(ctx context.Context, actorID, teamID, userID string, req UpdateMemberRoleRequest) (m *models.TeamMember, err error) {
	ctx, done := s.begin(ctx, "team.update_member_role", actorID)
	defer done(&err)

	if err = requireActor(actorID); err != nil {
		return nil, err
	}
	if err = s.check(req); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *scope) error {
		team, err := tx.perm.RequireTeamAdmin(ctx, actorID, teamID)
		if err != nil {
			return err
		}
		if userID == team.CreatorID {
			return apperr.InvalidState("the team creator's role cannot be changed")
		}
		current, err := tx.Teams.GetMember(ctx, teamID, userID)
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		if current == nil {
			return apperr.NotFound("user %s is not a member of this team", userID)
		}
		if err := tx.Teams.SetMemberRole(ctx, teamID, userID, req.Role); err != nil {
			return fmt.Errorf("set role: %w", err)
		}
		current.Role = req.Role
		m = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("actor", actorID).Str("team_id", teamID).Str("user_id", userID).Str("role", string(req.Role)).Msg("Team member role changed")
	return m, nil
}
