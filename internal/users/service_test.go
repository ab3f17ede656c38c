package users

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

type memoryRepo struct {
	nextID int64
	users  map[int64]*User
	emails map[string]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, users: map[int64]*User{}, emails: map[string]int64{}}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *memoryRepo) List(_ context.Context) ([]User, error) {
	var out []User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memoryRepo) ListByRole(_ context.Context, role workflow.Role) ([]Summary, error) {
	var out []Summary
	for _, u := range m.users {
		if u.Role == role && u.IsActive {
			out = append(out, Summary{ID: u.ID, Name: u.Name, Email: u.Email})
		}
	}
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, u *User) error {
	if _, exists := m.emails[u.Email]; exists {
		return ErrDuplicateEmail
	}
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	m.users[u.ID] = &stored
	m.emails[u.Email] = u.ID
	return nil
}

func (m *memoryRepo) Update(_ context.Context, u *User) error {
	stored, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if owner, exists := m.emails[u.Email]; exists && owner != u.ID {
		return ErrDuplicateEmail
	}
	delete(m.emails, stored.Email)
	stored.Name = u.Name
	stored.Email = u.Email
	stored.Role = u.Role
	m.emails[u.Email] = u.ID
	return nil
}

func (m *memoryRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	stored, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	stored.PasswordHash = hash
	return nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool) error {
	stored, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	stored.IsActive = active
	return nil
}

func (m *memoryRepo) SetAssignments(_ context.Context, supervisorID int64, projectIDs, engineerIDs []int64) error {
	stored, ok := m.users[supervisorID]
	if !ok {
		return ErrNotFound
	}
	stored.AssignedProjectIDs = projectIDs
	stored.AssignedEngineerIDs = engineerIDs
	return nil
}

var _ RepositoryPort = (*memoryRepo)(nil)

// The acting admin lives outside the repo so its ID never collides with the
// IDs the repo hands out to created users.
var admin = shared.Principal{UserID: 99, Role: workflow.RoleAdmin}

func newService(t *testing.T) (*Service, *memoryRepo, *shared.TokenManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := shared.NewTokenManager(client, time.Hour)
	repo := newMemoryRepo()
	return NewService(repo, tokens, nil, nil), repo, tokens
}

func TestCreateHashesPassword(t *testing.T) {
	svc, repo, _ := newService(t)

	u, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "Samir", Email: "Samir@Site.Local", Password: "construct0r", Role: "engineer",
	})
	require.NoError(t, err)
	require.Equal(t, "samir@site.local", u.Email)
	require.Equal(t, workflow.RoleEngineer, u.Role)
	require.True(t, u.IsActive)

	stored := repo.users[u.ID]
	require.NotEqual(t, "construct0r", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("construct0r")))
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "X", Email: "x@site.local", Password: "construct0r", Role: "chief_wizard",
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "A", Email: "dup@site.local", Password: "construct0r", Role: "supervisor",
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), admin, CreateUserInput{
		Name: "B", Email: "dup@site.local", Password: "construct0r", Role: "printer",
	})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestResetPasswordRevokesSessions(t *testing.T) {
	svc, _, tokens := newService(t)
	u, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "Samir", Email: "samir@site.local", Password: "construct0r", Role: "engineer",
	})
	require.NoError(t, err)

	token, err := tokens.Issue(context.Background(), shared.Principal{UserID: u.ID, Role: u.Role})
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(context.Background(), admin, u.ID, "n3w-passw0rd"))

	_, err = tokens.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}

func TestToggleActiveLocksOutImmediately(t *testing.T) {
	svc, _, tokens := newService(t)
	u, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "Samir", Email: "samir@site.local", Password: "construct0r", Role: "engineer",
	})
	require.NoError(t, err)

	token, err := tokens.Issue(context.Background(), shared.Principal{UserID: u.ID, Role: u.Role})
	require.NoError(t, err)

	toggled, err := svc.ToggleActive(context.Background(), admin, u.ID)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)

	_, err = tokens.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrTokenExpired)

	// Re-activation does not resurrect revoked sessions.
	toggled, err = svc.ToggleActive(context.Background(), admin, u.ID)
	require.NoError(t, err)
	require.True(t, toggled.IsActive)
	_, err = tokens.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}

func TestToggleActiveSelfRejected(t *testing.T) {
	svc, _, _ := newService(t)
	u, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "Root", Email: "root@site.local", Password: "construct0r", Role: "admin",
	})
	require.NoError(t, err)

	self := shared.Principal{UserID: u.ID, Role: workflow.RoleAdmin}
	_, err = svc.ToggleActive(context.Background(), self, u.ID)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateRoleChangeRevokesSessions(t *testing.T) {
	svc, _, tokens := newService(t)
	u, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "Samir", Email: "samir@site.local", Password: "construct0r", Role: "engineer",
	})
	require.NoError(t, err)
	token, err := tokens.Issue(context.Background(), shared.Principal{UserID: u.ID, Role: u.Role})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), admin, u.ID, UpdateUserInput{
		Name: "Samir", Email: "samir@site.local", Role: "procurement_manager",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.RoleProcurementManager, updated.Role)

	_, err = tokens.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}

func TestUpdateSupervisorAssignments(t *testing.T) {
	svc, repo, _ := newService(t)
	u, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "Huda", Email: "huda@site.local", Password: "construct0r", Role: "supervisor",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), admin, u.ID, UpdateUserInput{
		Name: "Huda", Email: "huda@site.local", Role: "supervisor",
		AssignedProjectIDs:  []int64{3, 5},
		AssignedEngineerIDs: []int64{9},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 5}, updated.AssignedProjectIDs)
	require.Equal(t, []int64{9}, repo.users[u.ID].AssignedEngineerIDs)
}

func TestDeactivateIsIdempotentSoftDelete(t *testing.T) {
	svc, repo, _ := newService(t)
	u, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "Samir", Email: "samir@site.local", Password: "construct0r", Role: "engineer",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), admin, u.ID))
	require.NoError(t, svc.Deactivate(context.Background(), admin, u.ID))
	require.False(t, repo.users[u.ID].IsActive)
}

func TestEngineersListsActiveOnly(t *testing.T) {
	svc, _, _ := newService(t)
	active, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "Active", Email: "active@site.local", Password: "construct0r", Role: "engineer",
	})
	require.NoError(t, err)
	inactive, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name: "Gone", Email: "gone@site.local", Password: "construct0r", Role: "engineer",
	})
	require.NoError(t, err)
	_, err = svc.ToggleActive(context.Background(), admin, inactive.ID)
	require.NoError(t, err)

	out, err := svc.Engineers(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, active.ID, out[0].ID)
}
