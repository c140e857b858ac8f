package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"viewsphere/internal/errs"
	"viewsphere/internal/user"
)

// fakeStore mirrors the Postgres session-field semantics, including the
// conditional rotation and the failed-login upsert.
type fakeStore struct {
	users        map[string]*user.User
	failedLogins map[string]int
	lockedUntil  map[string]time.Time
	writes       int
	setErr       error
	clearErr     error
}

func newFakeStore(users ...*user.User) *fakeStore {
	s := &fakeStore{
		users:        make(map[string]*user.User),
		failedLogins: make(map[string]int),
		lockedUntil:  make(map[string]time.Time),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeStore) GetByUsernameOrEmail(_ context.Context, username, email string) (*user.User, error) {
	for _, u := range f.users {
		if (username != "" && strings.EqualFold(u.Username, username)) ||
			(email != "" && strings.EqualFold(u.Email, email)) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeStore) SetRefreshToken(_ context.Context, id, token string) error {
	if f.setErr != nil {
		return f.setErr
	}
	u, ok := f.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.RefreshToken = token
	f.writes++
	return nil
}

func (f *fakeStore) RotateRefreshToken(_ context.Context, id, presented, next string) error {
	u, ok := f.users[id]
	if !ok || u.RefreshToken == "" || u.RefreshToken != presented {
		return errs.ErrSessionMismatch
	}
	u.RefreshToken = next
	f.writes++
	return nil
}

func (f *fakeStore) ClearRefreshToken(_ context.Context, id string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	u, ok := f.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.RefreshToken = ""
	f.writes++
	return nil
}

func (f *fakeStore) LoginLockedUntil(_ context.Context, identifier string) (*time.Time, error) {
	if until, ok := f.lockedUntil[identifier]; ok {
		return &until, nil
	}
	return nil, nil
}

func (f *fakeStore) RegisterFailedLogin(_ context.Context, identifier string, maxAttempts int, lockUntil, now time.Time) (*time.Time, error) {
	if until, ok := f.lockedUntil[identifier]; ok && now.Before(until) {
		return &until, nil
	}
	failed := f.failedLogins[identifier] + 1
	if failed >= maxAttempts {
		f.failedLogins[identifier] = 0
		f.lockedUntil[identifier] = lockUntil
		return &lockUntil, nil
	}
	f.failedLogins[identifier] = failed
	return nil, nil
}

func (f *fakeStore) ResetLoginAttempts(_ context.Context, identifier string) error {
	delete(f.failedLogins, identifier)
	delete(f.lockedUntil, identifier)
	return nil
}

func newTestService(t *testing.T, store IdentityStore) *Service {
	t.Helper()
	return NewService(store, NewTokenIssuer(testTokenConfig()), NewPasswordHasher())
}

func storedTestUser(t *testing.T, password string) *user.User {
	t.Helper()
	hash, err := NewPasswordHasher().Hash(password)
	require.NoError(t, err)
	return &user.User{
		ID:           "0198f2a0-0000-7000-8000-000000000001",
		Username:     "alice",
		Email:        "a@b.com",
		FullName:     "Alice Example",
		PasswordHash: hash,
	}
}

func TestService_Login_ByUsername(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)

	pair, u, err := service.Login(context.Background(), "alice", "", "Correct1!")
	require.NoError(t, err)
	require.Equal(t, alice.ID, u.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// The stored token is exactly the one delivered to the client,
	// persisted with a single write.
	require.Equal(t, pair.RefreshToken, store.users[alice.ID].RefreshToken)
	require.Equal(t, 1, store.writes)
}

func TestService_Login_ByEmail(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)

	pair, _, err := service.Login(context.Background(), "", "a@b.com", "Correct1!")
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, store.users[alice.ID].RefreshToken)
}

func TestService_Login_WrongPassword(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)

	pair, _, err := service.Login(context.Background(), "alice", "", "wrongpw")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Empty(t, pair.AccessToken)
	require.Empty(t, pair.RefreshToken)
	require.Zero(t, store.writes)
	require.Empty(t, store.users[alice.ID].RefreshToken)
}

func TestService_Login_UnknownUser(t *testing.T) {
	t.Parallel()

	service := newTestService(t, newFakeStore())

	_, _, err := service.Login(context.Background(), "nobody", "", "Correct1!")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_Login_MissingIdentifier(t *testing.T) {
	t.Parallel()

	service := newTestService(t, newFakeStore())

	_, _, err := service.Login(context.Background(), "", "", "Correct1!")
	require.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestService_Login_ReplacesForeignSession(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)

	first, _, err := service.Login(context.Background(), "alice", "", "Correct1!")
	require.NoError(t, err)
	second, _, err := service.Login(context.Background(), "alice", "", "Correct1!")
	require.NoError(t, err)

	// The second login invalidated the first session: its refresh token no
	// longer matches the stored value.
	_, err = service.Refresh(context.Background(), first.RefreshToken)
	require.ErrorIs(t, err, errs.ErrSessionMismatch)

	_, err = service.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)
}

func TestService_Login_LocksAfterMaxFailedAttempts(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)
	service.WithLockoutPolicy(3, time.Minute)

	for i := 0; i < 2; i++ {
		_, _, err := service.Login(context.Background(), "alice", "", "wrongpw")
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	}

	// The third failure trips the lock.
	var locked ErrLoginLocked
	_, _, err := service.Login(context.Background(), "alice", "", "wrongpw")
	require.ErrorAs(t, err, &locked)
	require.True(t, locked.Until.After(time.Now()))

	// Even the correct password is refused while the lock holds, and no
	// session is created.
	_, _, err = service.Login(context.Background(), "alice", "", "Correct1!")
	require.ErrorAs(t, err, &locked)
	require.Empty(t, store.users[alice.ID].RefreshToken)
	require.Zero(t, store.writes)
}

func TestService_Login_SuccessResetsFailedAttempts(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)
	service.WithLockoutPolicy(3, time.Minute)

	for i := 0; i < 2; i++ {
		_, _, err := service.Login(context.Background(), "alice", "", "wrongpw")
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	}

	_, _, err := service.Login(context.Background(), "alice", "", "Correct1!")
	require.NoError(t, err)

	// The counter started over: two more failures do not lock.
	for i := 0; i < 2; i++ {
		_, _, err := service.Login(context.Background(), "alice", "", "wrongpw")
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	}
}

func TestService_Login_UnknownUserCountsTowardLockout(t *testing.T) {
	t.Parallel()

	service := newTestService(t, newFakeStore())
	service.WithLockoutPolicy(2, time.Minute)

	_, _, err := service.Login(context.Background(), "ghost", "", "whatever")
	require.ErrorIs(t, err, errs.ErrNotFound)

	var locked ErrLoginLocked
	_, _, err = service.Login(context.Background(), "ghost", "", "whatever")
	require.ErrorAs(t, err, &locked)
}

func TestService_Refresh_RotatesExactlyOnce(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)

	pair, _, err := service.Login(context.Background(), "alice", "", "Correct1!")
	require.NoError(t, err)

	rotated, err := service.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.Equal(t, rotated.RefreshToken, store.users[alice.ID].RefreshToken)

	// Replaying the consumed token must fail.
	_, err = service.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, errs.ErrSessionMismatch)

	// The freshly rotated token still works.
	_, err = service.Refresh(context.Background(), rotated.RefreshToken)
	require.NoError(t, err)
}

func TestService_Refresh_MissingToken(t *testing.T) {
	t.Parallel()

	service := newTestService(t, newFakeStore())

	_, err := service.Refresh(context.Background(), "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestService_Refresh_AccessTokenRejected(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)

	pair, _, err := service.Login(context.Background(), "alice", "", "Correct1!")
	require.NoError(t, err)

	_, err = service.Refresh(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, pair.RefreshToken, store.users[alice.ID].RefreshToken)
}

func TestService_Refresh_ExpiredToken(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)

	issuer := NewTokenIssuer(testTokenConfig())
	service := NewService(store, issuer, NewPasswordHasher())

	pair, _, err := service.Login(context.Background(), "alice", "", "Correct1!")
	require.NoError(t, err)

	// Mint a well-formed refresh token whose expiry already passed.
	expiredIssuer := NewTokenIssuer(testTokenConfig())
	expiredIssuer.now = func() time.Time { return time.Now().Add(-241 * time.Hour) }
	expired, err := expiredIssuer.IssueRefresh(alice.ID)
	require.NoError(t, err)

	_, err = service.Refresh(context.Background(), expired)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// Store untouched: the live session still refreshes.
	require.Equal(t, pair.RefreshToken, store.users[alice.ID].RefreshToken)
}

func TestService_Refresh_SubjectVanished(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)

	pair, _, err := service.Login(context.Background(), "alice", "", "Correct1!")
	require.NoError(t, err)

	delete(store.users, alice.ID)

	_, err = service.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestService_Logout_InvalidatesSession(t *testing.T) {
	t.Parallel()

	alice := storedTestUser(t, "Correct1!")
	store := newFakeStore(alice)
	service := newTestService(t, store)

	pair, _, err := service.Login(context.Background(), "alice", "", "Correct1!")
	require.NoError(t, err)

	require.NoError(t, service.Logout(context.Background(), alice.ID))
	require.Empty(t, store.users[alice.ID].RefreshToken)

	_, err = service.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, errs.ErrSessionMismatch)
}
