package users

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]*User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[string]*User),
		byEmail: make(map[string]*User),
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, params CreateParams) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[params.Email]; ok {
		return nil, ErrEmailTaken
	}
	user := &User{
		ID:           params.ID,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
	}
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user
	return user, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.byID[id]; ok {
		return user, nil
	}
	return nil, ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.byEmail[email]; ok {
		return user, nil
	}
	return nil, ErrNotFound
}

func newTestService() (*Service, *fakeUserRepo) {
	repo := newFakeUserRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func TestRegisterCreatesUser(t *testing.T) {
	svc, _ := newTestService()

	user, err := svc.Register(context.Background(), RegisterParams{
		Name:     "PuddingMaster",
		Email:    "  Master@Example.COM ",
		Password: "schoko-pudding-52",
	})

	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "PuddingMaster", user.Name)
	require.Equal(t, "master@example.com", user.Email)
	require.Equal(t, RoleUser, user.Role)
	require.NotEqual(t, "schoko-pudding-52", user.PasswordHash)
}

func TestRegisterSanitizesName(t *testing.T) {
	svc, _ := newTestService()

	user, err := svc.Register(context.Background(), RegisterParams{
		Name:     "<script>alert(1)</script>Pudding Fan",
		Email:    "fan@example.com",
		Password: "schoko-pudding-52",
	})

	require.NoError(t, err)
	require.Equal(t, "Pudding Fan", user.Name)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), RegisterParams{
		Name: "First", Email: "dup@example.com", Password: "schoko-pudding-52",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterParams{
		Name: "Second", Email: "DUP@example.com", Password: "vanille-pudding-52",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), RegisterParams{Email: "a@b.de", Password: "schoko-pudding-52"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(context.Background(), RegisterParams{Name: "A", Email: "not-an-email", Password: "schoko-pudding-52"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(context.Background(), RegisterParams{Name: "A", Email: "a@b.de", Password: "short"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()

	registered, err := svc.Register(context.Background(), RegisterParams{
		Name: "PuddingDummy", Email: "dummy@example.com", Password: "dummytest-123",
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), "Dummy@Example.com", "dummytest-123")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), RegisterParams{
		Name: "PuddingDummy", Email: "dummy@example.com", Password: "dummytest-123",
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "dummy@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmailSameError(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Authenticate(context.Background(), "nobody@example.com", "whatever-123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
