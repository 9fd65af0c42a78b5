package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/repository/memory"
	"github.com/ignatzorin/vialert-backend/internal/storage"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, idToken string) (*FederatedClaims, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FederatedClaims), args.Error(1)
}

func newAuthFixture(t *testing.T, verifier IDTokenVerifier) (*AuthService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	db, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tm := NewTokenManager("access-secret-for-tests-0123456789", "refresh-secret-for-tests-012345678", 15*time.Minute, time.Hour)
	return NewAuthService(NewProfileService(store, nil), tm, storage.NewRevocations(db), verifier), store
}

func TestAuthService_SignInAnonymousCreatesProfile(t *testing.T) {
	svc, store := newAuthFixture(t, nil)
	ctx := context.Background()

	res, err := svc.SignInAnonymous(ctx)
	require.NoError(t, err)
	assert.True(t, res.Identity.IsAnonymous())
	assert.NotEmpty(t, res.TokenPair.AccessToken)
	assert.Equal(t, 100, res.Profile.TrustScore)

	p, err := store.GetProfile(ctx, res.Identity.UserID)
	require.NoError(t, err)
	assert.Zero(t, p.ReportsCount)
	assert.Zero(t, p.Penalties)

	id, err := svc.tokenManager.ParseAccess(res.TokenPair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Identity.UserID, id.UserID)
	assert.Equal(t, ProviderAnonymous, id.Provider)
}

func TestAuthService_RefreshRotatesToken(t *testing.T) {
	svc, _ := newAuthFixture(t, nil)
	ctx := context.Background()

	first, err := svc.SignInAnonymous(ctx)
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.TokenPair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, first.Identity.UserID, second.Identity.UserID)

	// Старый refresh токен больше не принимается.
	_, err = svc.Refresh(ctx, first.TokenPair.RefreshToken)
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
}

func TestAuthService_SignOutRevokes(t *testing.T) {
	svc, _ := newAuthFixture(t, nil)
	ctx := context.Background()

	res, err := svc.SignInAnonymous(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, res.TokenPair.RefreshToken))
	assert.ErrorIs(t, svc.SignOut(ctx, res.TokenPair.RefreshToken), apperror.ErrInvalidToken)

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
}

func TestAuthService_SignInGoogle(t *testing.T) {
	verifier := new(mockVerifier)
	svc, _ := newAuthFixture(t, verifier)
	ctx := context.Background()

	verifier.On("Verify", ctx, "good-token").Return(&FederatedClaims{Subject: "1234567890", Email: "Ana@Example.com", Name: "Ana"}, nil)
	verifier.On("Verify", ctx, "bad-token").Return(nil, errors.New("audience mismatch"))

	res, err := svc.SignInGoogle(ctx, "good-token")
	require.NoError(t, err)
	assert.Equal(t, GoogleUserID("1234567890"), res.Identity.UserID)
	assert.Equal(t, "ana@example.com", res.Identity.Email)
	assert.Equal(t, ProviderGoogle, res.Identity.Provider)

	// Тот же subject - тот же пользователь.
	again, err := svc.SignInGoogle(ctx, "good-token")
	require.NoError(t, err)
	assert.Equal(t, res.Identity.UserID, again.Identity.UserID)

	_, err = svc.SignInGoogle(ctx, "bad-token")
	assert.True(t, apperror.IsUnauthorized(err))

	_, err = svc.SignInGoogle(ctx, " ")
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_GoogleNotConfigured(t *testing.T) {
	svc, _ := newAuthFixture(t, nil)
	_, err := svc.SignInGoogle(context.Background(), "token")
	assert.Equal(t, apperror.ErrCodeBadRequest, apperror.CodeOf(err))
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	a := NewTokenManager("secret-a-secret-a-secret-a-secret-a", "refresh-a-refresh-a-refresh-a-refre", time.Minute, time.Hour)
	b := NewTokenManager("secret-b-secret-b-secret-b-secret-b", "refresh-b-refresh-b-refresh-b-refre", time.Minute, time.Hour)

	pair, err := a.GeneratePair(Identity{UserID: uuid.New(), Provider: ProviderAnonymous})
	require.NoError(t, err)

	_, err = b.ParseAccess(pair.AccessToken)
	assert.Error(t, err)
	_, err = a.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("secret-a-secret-a-secret-a-secret-a", "refresh-a-refresh-a-refresh-a-refre", time.Minute, time.Hour)
	issued := time.Now().Add(-2 * time.Minute)
	tm.now = func() time.Time { return issued }
	pair, err := tm.GeneratePair(Identity{UserID: uuid.New(), Provider: ProviderAnonymous})
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ParseAccess(pair.AccessToken)
	assert.Error(t, err)
}
