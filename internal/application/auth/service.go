package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-api-assets/internal/application/ratelimit"
	"github.com/go-api-assets/internal/application/session"
	"github.com/go-api-assets/internal/domain"
	"github.com/go-api-assets/internal/pkg/id"
	"github.com/go-api-assets/internal/pkg/validate"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Service composes the asset ledger, requirement rules, rate limiter and
// session issuer into the principal-facing flows.
type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, userID string) error
	Profile(ctx context.Context, userID string) (*domain.User, error)
}

type assetLedger interface {
	FindAssetsWithSameKeysCheck(ctx context.Context, claimIDs []string) ([]domain.AggregatedAsset, error)
	LinkAssets(ctx context.Context, claimIDs []string, entity domain.LinkedEntity) (bool, error)
	UseAssets(ctx context.Context, claimIDs []string) (bool, error)
}

type requirementChecker interface {
	Validate(op domain.AssetOperation, assets []domain.AggregatedAsset) bool
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Delete(ctx context.Context, u *domain.User) error
}

type sessionIssuer interface {
	Issue(ctx context.Context, u *domain.User) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, lookup session.PrincipalLookup) (string, error)
	Revoke(ctx context.Context, userID string) error
}

type attemptLimiter interface {
	IsBlocked(ctx context.Context, identifier, op string) (bool, error)
	IncrementFailure(ctx context.Context, identifier, op string) (domain.AttemptResult, error)
	ResetAttempts(ctx context.Context, identifier, op string) error
}

type service struct {
	assets       assetLedger
	requirements requirementChecker
	users        userStore
	sessions     sessionIssuer
	limiter      attemptLimiter
	hashCost     int
	now          func() time.Time
}

type ServiceDeps struct {
	Assets       assetLedger
	Requirements requirementChecker
	UserRepo     userStore
	Sessions     sessionIssuer
	Limiter      attemptLimiter
	HashCost     int
	Now          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		assets:       deps.Assets,
		requirements: deps.Requirements,
		users:        deps.UserRepo,
		sessions:     deps.Sessions,
		limiter:      deps.Limiter,
		hashCost:     deps.HashCost,
		now:          deps.Now,
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	assets, err := s.resolveAssets(ctx, req.ClaimIDs)
	if err != nil {
		return nil, err
	}
	if !s.requirements.Validate(domain.OperationRegistration, assets) {
		return nil, fmt.Errorf("required assets are invalid: %w", domain.ErrBadRequest)
	}

	email := emailOf(assets)
	if email == "" {
		return nil, fmt.Errorf("required assets are invalid: %w", domain.ErrBadRequest)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID: id.New(),
		Email:  email,
		Name: domain.Name{
			First: capitalize(req.Name.First),
			Last:  capitalize(req.Name.Last),
		},
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	linked, err := s.assets.LinkAssets(ctx, req.ClaimIDs, domain.LinkedEntity{Type: domain.LinkedEntityUser, ID: u.UserID})
	if err != nil {
		return nil, err
	}
	if !linked {
		// Another request consumed a claim in between; release the email.
		log.Warn().Str("user_id", u.UserID).Msg("assets could not be linked, removing user")
		if err := s.users.Delete(ctx, u); err != nil {
			log.Error().Err(err).Str("user_id", u.UserID).Msg("could not remove unlinked user")
		}
		return nil, fmt.Errorf("failed to link assets: %w", domain.ErrInternal)
	}

	tokens, err := s.sessions.Issue(ctx, u)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", u.UserID).Msg("user registered")
	return &domain.RegisterResult{User: u, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	assets, err := s.resolveAssets(ctx, req.ClaimIDs)
	if err != nil {
		return nil, err
	}

	identifier := emailOf(assets)
	if identifier == "" {
		identifier = assets[0].Key
	}
	blocked, err := s.limiter.IsBlocked(ctx, identifier, ratelimit.OpLogin)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, fmt.Errorf("too many failed login attempts, try again later: %w", domain.ErrTooManyRequests)
	}

	if !s.requirements.Validate(domain.OperationLogin, assets) {
		return nil, s.loginFailed(ctx, identifier, "requirements unmet")
	}
	u, err := s.users.GetByEmail(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.loginFailed(ctx, identifier, "unknown principal")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, s.loginFailed(ctx, identifier, "password mismatch")
	}

	used, err := s.assets.UseAssets(ctx, req.ClaimIDs)
	if err != nil {
		return nil, err
	}
	if !used {
		return nil, fmt.Errorf("failed to mark assets as used: %w", domain.ErrInternal)
	}
	if err := s.limiter.ResetAttempts(ctx, identifier, ratelimit.OpLogin); err != nil {
		log.Warn().Err(err).Str("user_id", u.UserID).Msg("could not reset login attempts")
	}

	tokens, err := s.sessions.Issue(ctx, u)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{User: domain.PrincipalRef{ID: u.UserID}, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

// resolveAssets loads the aggregated assets behind claimIDs. Every id must
// resolve; a partial set would pass the rules but fail the link or use step.
func (s *service) resolveAssets(ctx context.Context, claimIDs []string) ([]domain.AggregatedAsset, error) {
	assets, err := s.assets.FindAssetsWithSameKeysCheck(ctx, claimIDs)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("no assets found for the given claim ids: %w", domain.ErrNotFound)
	}
	if len(assets) != len(claimIDs) {
		return nil, fmt.Errorf("%d of %d claim ids were not found: %w", len(claimIDs)-len(assets), len(claimIDs), domain.ErrNotFound)
	}
	return assets, nil
}

// loginFailed counts the failure and returns the uniform credential error.
func (s *service) loginFailed(ctx context.Context, identifier, reason string) error {
	res, err := s.limiter.IncrementFailure(ctx, identifier, ratelimit.OpLogin)
	if err != nil {
		log.Warn().Err(err).Msg("could not count login failure")
	} else {
		log.Info().Str("reason", reason).Int("attempts", res.Attempts).Bool("blocked", res.IsBlocked).Msg("login failed")
	}
	return fmt.Errorf("invalid credentials: %w", domain.ErrBadRequest)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", fmt.Errorf("refresh token is required: %w", domain.ErrBadRequest)
	}
	return s.sessions.Refresh(ctx, refreshToken, s.users.Get)
}

func (s *service) Logout(ctx context.Context, userID string) error {
	return s.sessions.Revoke(ctx, userID)
}

func (s *service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	return u, nil
}

// emailOf returns the address of the first email asset.
func emailOf(assets []domain.AggregatedAsset) string {
	for _, a := range assets {
		if a.Type == domain.AssetTypeEmail && a.Data.Email != "" {
			return a.Data.Email
		}
	}
	return ""
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
