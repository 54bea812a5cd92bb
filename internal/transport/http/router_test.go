package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-api-assets/internal/config"
	"github.com/go-api-assets/internal/domain"
	jwtinfra "github.com/go-api-assets/internal/infrastructure/jwt"
	"github.com/go-api-assets/internal/infrastructure/memory"
	"github.com/go-api-assets/internal/infrastructure/redis"
	"github.com/go-api-assets/internal/transport/http/handler"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Str0ng!Pass"

// promotedUsers reports every stored user as an admin.
type promotedUsers struct{ *memory.UserStore }

func (p promotedUsers) Get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := p.UserStore.Get(ctx, userID)
	if u != nil {
		u.Role = domain.RoleAdmin
	}
	return u, err
}

func newTestRouter(t *testing.T, users UserRepository) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := redis.NewCache(rdb)

	access, err := jwtinfra.NewProvider("access-secret", 15*time.Minute)
	require.NoError(t, err)
	refresh, err := jwtinfra.NewProvider("refresh-secret", time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{
		AllowedOrigins: []string{"*"},
		Asset:          config.AssetConfig{EmailTTL: 5 * time.Minute, ExposeSecret: true},
		Rate:           config.RateLimitConfig{MaxAttempts: 3, AttemptWindow: 15 * time.Minute, BlockDuration: time.Hour},
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := NewRouter(ctx, cfg, &Deps{
		AssetRepo:     memory.NewAssetStore(),
		UserRepo:      users,
		Cache:         cache,
		AccessTokens:  access,
		RefreshTokens: refresh,
		Pingers:       map[string]handler.Pinger{"redis": cache},
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}

// claim creates and verifies an email asset over HTTP and returns its claim id.
func claim(t *testing.T, h http.Handler, email string, op domain.AssetOperation) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/assets", "", domain.CreateAssetRequest{
		Type: domain.AssetTypeEmail,
		Data: domain.AssetData{Email: email, Operation: op},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created domain.CreateAssetResult
	decode(t, rr, &created)

	rr = do(t, h, http.MethodPost, "/v1/assets/"+created.SubmitID+"/verify", "", domain.VerifyAssetRequest{Code: created.Secret})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var verified domain.VerifyAssetResult
	decode(t, rr, &verified)
	return verified.ClaimID
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, memory.NewUserStore())
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/health-check/ping", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/health-check/ready", "", nil).Code)
}

func TestRouter_FullFlow(t *testing.T) {
	h := newTestRouter(t, memory.NewUserStore())

	regClaim := claim(t, h, "carol@example.com", domain.OperationRegistration)

	rr := do(t, h, http.MethodGet, "/v1/assets/"+regClaim, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var view domain.AssetView
	decode(t, rr, &view)
	assert.Equal(t, domain.AssetStatusVerified, view.Status)
	require.NotNil(t, view.IsLinked)
	assert.False(t, *view.IsLinked)

	rr = do(t, h, http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{
		ClaimIDs: []string{regClaim},
		Name:     domain.Name{First: "carol", Last: "white"},
		Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	loginClaim := claim(t, h, "carol@example.com", domain.OperationLogin)
	rr = do(t, h, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{ClaimIDs: []string{loginClaim}, Password: testPassword})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var pair domain.LoginResult
	decode(t, rr, &pair)
	assert.NotEmpty(t, pair.User.ID)

	rr = do(t, h, http.MethodGet, "/v1/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var me domain.User
	decode(t, rr, &me)
	assert.Equal(t, "carol@example.com", me.Email)

	// Non-admins cannot read other profiles.
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/v1/users/"+me.UserID, pair.AccessToken, nil).Code)

	rr = do(t, h, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refreshToken": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)
	var refreshed handler.AccessTokenEnvelope
	decode(t, rr, &refreshed)

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/users/me", pair.AccessToken, nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/auth/logout", refreshed.AccessToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/users/me", refreshed.AccessToken, nil).Code)
}

func TestRouter_AdminReadsAnyProfile(t *testing.T) {
	h := newTestRouter(t, promotedUsers{memory.NewUserStore()})

	regClaim := claim(t, h, "dave@example.com", domain.OperationRegistration)
	rr := do(t, h, http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{
		ClaimIDs: []string{regClaim},
		Name:     domain.Name{First: "dave", Last: "brown"},
		Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var reg domain.RegisterResult
	decode(t, rr, &reg)

	// Registration tokens carry the role at creation; refresh picks up the current one.
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/v1/users/"+reg.User.UserID, reg.AccessToken, nil).Code)

	rr = do(t, h, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)
	var refreshed handler.AccessTokenEnvelope
	decode(t, rr, &refreshed)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/users/"+reg.User.UserID, refreshed.AccessToken, nil).Code)
}

func TestRouter_AuthRequired(t *testing.T) {
	h := newTestRouter(t, memory.NewUserStore())
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/users/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/v1/auth/logout", "garbage", nil).Code)
}
