package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-api-assets/internal/application/asset"
	"github.com/go-api-assets/internal/application/ratelimit"
	"github.com/go-api-assets/internal/application/requirement"
	"github.com/go-api-assets/internal/application/session"
	"github.com/go-api-assets/internal/domain"
	jwtinfra "github.com/go-api-assets/internal/infrastructure/jwt"
	"github.com/go-api-assets/internal/infrastructure/memory"
	"github.com/go-api-assets/internal/infrastructure/redis"
	"github.com/go-api-assets/internal/pkg/id"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stack struct {
	auth     Service
	assets   asset.Service
	sessions session.Service
}

func newStack(t *testing.T) stack {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := redis.NewCache(rdb)

	access, err := jwtinfra.NewProvider("access-secret", 15*time.Minute)
	require.NoError(t, err)
	refresh, err := jwtinfra.NewProvider("refresh-secret", time.Hour)
	require.NoError(t, err)

	caps := asset.DefaultCapabilities(5 * time.Minute)
	assets := asset.NewService(asset.ServiceDeps{
		AssetRepo:    memory.NewAssetStore(),
		Capabilities: caps,
		ExposeSecret: true,
		HashCost:     bcrypt.MinCost,
	})
	sessions := session.NewService(session.ServiceDeps{Cache: cache, Access: access, Refresh: refresh})
	svc := NewService(ServiceDeps{
		Assets:       assets,
		Requirements: requirement.New(caps.TaggedTypes()...),
		UserRepo:     memory.NewUserStore(),
		Sessions:     sessions,
		Limiter:      ratelimit.New(cache, ratelimit.Options{}),
		HashCost:     bcrypt.MinCost,
	})
	return stack{auth: svc, assets: assets, sessions: sessions}
}

func (s stack) claim(t *testing.T, email string, op domain.AssetOperation) string {
	t.Helper()
	ctx := context.Background()
	created, err := s.assets.CreateAsset(ctx, domain.CreateAssetRequest{
		Type: domain.AssetTypeEmail,
		Data: domain.AssetData{Email: email, Operation: op},
	})
	require.NoError(t, err)
	verified, err := s.assets.VerifyAsset(ctx, created.SubmitID, domain.VerifyAssetRequest{Code: created.Secret})
	require.NoError(t, err)
	return verified.ClaimID
}

func TestFlow_RegisterLoginRefreshLogout(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	regClaim := s.claim(t, "alice@example.com", domain.OperationRegistration)
	reg, err := s.auth.Register(ctx, domain.RegisterRequest{
		ClaimIDs: []string{regClaim},
		Name:     domain.Name{First: "alice", Last: "smith"},
		Password: strongPassword,
	})
	require.NoError(t, err)
	userID := reg.User.UserID

	// The registration claim cannot be reused.
	_, err = s.auth.Register(ctx, domain.RegisterRequest{
		ClaimIDs: []string{regClaim},
		Name:     domain.Name{First: "bob", Last: "smith"},
		Password: strongPassword,
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	// Login with the registration claim is rejected: wrong tag.
	_, err = s.auth.Login(ctx, domain.LoginRequest{ClaimIDs: []string{regClaim}, Password: strongPassword})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	loginClaim := s.claim(t, "alice@example.com", domain.OperationLogin)
	login, err := s.auth.Login(ctx, domain.LoginRequest{ClaimIDs: []string{loginClaim}, Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, userID, login.User.ID)

	// Registration tokens were superseded by the login session.
	_, err = s.sessions.Authenticate(ctx, reg.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// A login claim is single use.
	_, err = s.auth.Login(ctx, domain.LoginRequest{ClaimIDs: []string{loginClaim}, Password: strongPassword})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	newAccess, err := s.auth.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	_, err = s.sessions.Authenticate(ctx, login.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	claims, err := s.sessions.Authenticate(ctx, newAccess)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, claims.Role)

	me, err := s.auth.Profile(ctx, claims.Subject)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)

	require.NoError(t, s.auth.Logout(ctx, userID))
	_, err = s.sessions.Authenticate(ctx, newAccess)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = s.auth.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorIs(t, s.auth.Logout(ctx, userID), domain.ErrInternal)
}

func TestFlow_LoginLockout(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	regClaim := s.claim(t, "bob@example.com", domain.OperationRegistration)
	_, err := s.auth.Register(ctx, domain.RegisterRequest{
		ClaimIDs: []string{regClaim},
		Name:     domain.Name{First: "bob", Last: "jones"},
		Password: strongPassword,
	})
	require.NoError(t, err)

	loginClaim := s.claim(t, "bob@example.com", domain.OperationLogin)
	for i := 0; i < ratelimit.DefaultMaxAttempts; i++ {
		_, err = s.auth.Login(ctx, domain.LoginRequest{ClaimIDs: []string{loginClaim}, Password: "Wrong#Pass1"})
		assert.ErrorIs(t, err, domain.ErrBadRequest)
	}

	// Even the right password is refused while blocked.
	_, err = s.auth.Login(ctx, domain.LoginRequest{ClaimIDs: []string{loginClaim}, Password: strongPassword})
	assert.ErrorIs(t, err, domain.ErrTooManyRequests)
}

func TestFlow_RegisterWithUnknownClaimKeepsEmailUsable(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	regClaim := s.claim(t, "erin@example.com", domain.OperationRegistration)
	req := domain.RegisterRequest{
		ClaimIDs: []string{regClaim, id.New()},
		Name:     domain.Name{First: "erin", Last: "green"},
		Password: strongPassword,
	}
	_, err := s.auth.Register(ctx, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	view, err := s.assets.GetAsset(ctx, regClaim)
	require.NoError(t, err)
	require.NotNil(t, view.IsLinked)
	assert.False(t, *view.IsLinked)

	req.ClaimIDs = []string{regClaim}
	reg, err := s.auth.Register(ctx, req)
	require.NoError(t, err)

	loginClaim := s.claim(t, "erin@example.com", domain.OperationLogin)
	login, err := s.auth.Login(ctx, domain.LoginRequest{ClaimIDs: []string{loginClaim}, Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, reg.User.UserID, login.User.ID)
}
