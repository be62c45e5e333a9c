package services_test

import (
	"context"
	"testing"

	"taskhub/backend/internal/database/dbtest"
	"taskhub/backend/internal/logger"
	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"
	"taskhub/backend/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type teamFixture struct {
	service *services.TeamServiceImpl
	users   *repositories.GormUserRepository
}

func newTeamFixture(t *testing.T) teamFixture {
	t.Helper()
	db := dbtest.Open(t)
	users := repositories.NewUserRepository(db)
	return teamFixture{
		service: services.NewTeamService(repositories.NewTeamRepository(db), users, nil, logger.Discard()),
		users:   users,
	}
}

func (f teamFixture) user(t *testing.T, username string) uuid.UUID {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "hash", IsActive: true}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user.ID
}

func TestTeamService_CreateAndList(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator")

	_, err := f.service.CreateTeam(ctx, creator, "   ", "")
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	team, err := f.service.CreateTeam(ctx, creator, " Backend ", "APIs")
	require.NoError(t, err)
	assert.Equal(t, "Backend", team.Name)
	assert.True(t, team.HasMember(creator))

	got, err := f.service.GetTeam(ctx, team.ID, newID())
	require.NoError(t, err)
	assert.Equal(t, team.ID, got.ID)

	_, err = f.service.GetTeam(ctx, newID(), creator)
	assert.ErrorIs(t, err, services.ErrNotFound)

	teams, err := f.service.ListTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 1)
}

func TestTeamService_MembersOnlyChanges(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator")
	outsider := f.user(t, "outsider")

	team, err := f.service.CreateTeam(ctx, creator, "Backend", "")
	require.NoError(t, err)

	name := "Hijacked"
	_, err = f.service.UpdateTeam(ctx, team.ID, outsider, repositories.TeamUpdate{Name: &name})
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = f.service.AddMember(ctx, team.ID, outsider, outsider)
	assert.ErrorIs(t, err, services.ErrForbidden)

	assert.ErrorIs(t, f.service.DeleteTeam(ctx, team.ID, outsider), services.ErrForbidden)

	name = "Platform"
	updated, err := f.service.UpdateTeam(ctx, team.ID, creator, repositories.TeamUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Platform", updated.Name)

	empty := " "
	_, err = f.service.UpdateTeam(ctx, team.ID, creator, repositories.TeamUpdate{Name: &empty})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestTeamService_AddAndRemoveMembers(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()
	creator := f.user(t, "creator")
	member := f.user(t, "member")

	team, err := f.service.CreateTeam(ctx, creator, "Backend", "")
	require.NoError(t, err)

	_, err = f.service.AddMember(ctx, team.ID, creator, newID())
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	assert.ErrorIs(t, err, services.ErrNotFound)

	added, err := f.service.AddMember(ctx, team.ID, creator, member)
	require.NoError(t, err)
	assert.Len(t, added.Members, 2)

	_, err = f.service.AddMember(ctx, team.ID, creator, member)
	assert.ErrorIs(t, err, services.ErrAlreadyMember)

	removed, err := f.service.RemoveMember(ctx, team.ID, member, creator)
	require.NoError(t, err)
	assert.False(t, removed.HasMember(creator))

	_, err = f.service.RemoveMember(ctx, team.ID, member, creator)
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = f.service.RemoveMember(ctx, team.ID, member, member)
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	require.NoError(t, f.service.DeleteTeam(ctx, team.ID, member))
	_, err = f.service.GetTeam(ctx, team.ID, member)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
