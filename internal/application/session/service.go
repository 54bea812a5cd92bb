package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-assets/internal/domain"
	jwtinfra "github.com/go-api-assets/internal/infrastructure/jwt"
	"github.com/go-api-assets/internal/pkg/id"
	"github.com/rs/zerolog/log"
)

// Service mints and rotates the single live token session of a principal.
type Service interface {
	Issue(ctx context.Context, u *domain.User) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, lookup PrincipalLookup) (string, error)
	Revoke(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, accessToken string) (*jwtinfra.Claims, error)
}

// PrincipalLookup resolves the user behind a refresh token so the new access
// token carries the current role. A nil lookup issues a token without a role.
type PrincipalLookup func(ctx context.Context, userID string) (*domain.User, error)

type tokenSigner interface {
	Sign(subject, sessionID, role string) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
	Expiry() time.Duration
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) (bool, error)
}

type service struct {
	cache   cacheStore
	access  tokenSigner
	refresh tokenSigner
	now     func() time.Time
}

type ServiceDeps struct {
	Cache   cacheStore
	Access  tokenSigner
	Refresh tokenSigner
	Now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		cache:   deps.Cache,
		access:  deps.Access,
		refresh: deps.Refresh,
		now:     deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func sessionKey(userID string) string { return "session:userId:" + userID }

// Issue overwrites any previous session of u. The record lives as long as the
// refresh token.
func (s *service) Issue(ctx context.Context, u *domain.User) (*domain.TokenPair, error) {
	rec := domain.SessionRecord{AccessSessionID: id.New(), RefreshSessionID: id.New()}

	accessToken, err := s.access.Sign(u.UserID, rec.AccessSessionID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.refresh.Sign(u.UserID, rec.RefreshSessionID, "")
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKey(u.UserID), rec.String(), s.refresh.Expiry()); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh mints a new access token for a live refresh token. The refresh
// session id is kept; the previous access token stops authenticating.
func (s *service) Refresh(ctx context.Context, refreshToken string, lookup PrincipalLookup) (string, error) {
	claims, err := s.refresh.Verify(refreshToken)
	if err != nil {
		return "", fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
	}
	rec, err := s.load(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if rec.RefreshSessionID != claims.SessionID {
		return "", fmt.Errorf("refresh token was superseded: %w", domain.ErrUnauthorized)
	}

	role := ""
	if lookup != nil {
		u, err := lookup(ctx, claims.Subject)
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("principal no longer exists: %w", domain.ErrUnauthorized)
		}
		if err != nil {
			return "", err
		}
		role = u.Role
	}

	remaining := claims.ExpiresAt.Time.Sub(s.now())
	if remaining <= 0 {
		return "", fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}

	next := domain.SessionRecord{AccessSessionID: id.New(), RefreshSessionID: rec.RefreshSessionID}
	accessToken, err := s.access.Sign(claims.Subject, next.AccessSessionID, role)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKey(claims.Subject), next.String(), remaining); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return accessToken, nil
}

func (s *service) Revoke(ctx context.Context, userID string) error {
	deleted, err := s.cache.Del(ctx, sessionKey(userID))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		return fmt.Errorf("no active session to revoke: %w", domain.ErrInternal)
	}
	return nil
}

// Authenticate accepts an access token only while it belongs to the stored session.
func (s *service) Authenticate(ctx context.Context, accessToken string) (*jwtinfra.Claims, error) {
	claims, err := s.access.Verify(accessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid token or session expired: %w", domain.ErrUnauthorized)
	}
	rec, err := s.load(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if rec.AccessSessionID != claims.SessionID {
		return nil, fmt.Errorf("invalid token or session expired: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

func (s *service) load(ctx context.Context, userID string) (domain.SessionRecord, error) {
	v, err := s.cache.Get(ctx, sessionKey(userID))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.SessionRecord{}, fmt.Errorf("session expired or invalid: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("read session: %w", err)
	}
	rec, err := domain.ParseSessionRecord(v)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("discarding corrupt session record")
		return domain.SessionRecord{}, fmt.Errorf("session expired or invalid: %w", domain.ErrUnauthorized)
	}
	return rec, nil
}
