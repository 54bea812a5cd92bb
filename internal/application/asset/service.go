package asset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-assets/internal/domain"
	"github.com/go-api-assets/internal/pkg/id"
	pkgtoken "github.com/go-api-assets/internal/pkg/token"
	"github.com/go-api-assets/internal/pkg/validate"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeDigits = 6
	// OpVerify is the rate-limit operation for wrong verification codes.
	OpVerify = "asset-verify"
)

type Service interface {
	CreateAsset(ctx context.Context, req domain.CreateAssetRequest) (*domain.CreateAssetResult, error)
	VerifyAsset(ctx context.Context, submitID string, req domain.VerifyAssetRequest) (*domain.VerifyAssetResult, error)
	GetAsset(ctx context.Context, claimID string) (*domain.AssetView, error)
	FindAssetsWithSameKeysCheck(ctx context.Context, claimIDs []string) ([]domain.AggregatedAsset, error)
	LinkAssets(ctx context.Context, claimIDs []string, entity domain.LinkedEntity) (bool, error)
	UseAssets(ctx context.Context, claimIDs []string) (bool, error)
}

type assetStore interface {
	Create(ctx context.Context, a *domain.Asset) error
	FindPending(ctx context.Context, submitID string, now time.Time) (*domain.Asset, error)
	MarkVerified(ctx context.Context, a *domain.Asset, claimID string, now time.Time) (int, error)
	FindWithSameKeyCheck(ctx context.Context, claimIDs []string, now time.Time) ([]domain.AggregatedAsset, error)
	Link(ctx context.Context, claimIDs []string, entity domain.LinkedEntity, now time.Time) (int, error)
	Use(ctx context.Context, claimIDs []string, now time.Time) (int, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type attemptGuard interface {
	IsBlocked(ctx context.Context, identifier, op string) (bool, error)
	IncrementFailure(ctx context.Context, identifier, op string) (domain.AttemptResult, error)
	ResetAttempts(ctx context.Context, identifier, op string) error
}

type service struct {
	repo         assetStore
	mailer       mailer
	guard        attemptGuard
	caps         Capabilities
	exposeSecret bool
	hashCost     int
	now          func() time.Time
}

// ServiceDeps wires the ledger. Mailer and Guard are optional.
type ServiceDeps struct {
	AssetRepo    assetStore
	Mailer       mailer
	Guard        attemptGuard
	Capabilities Capabilities
	ExposeSecret bool
	HashCost     int
	Now          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:         deps.AssetRepo,
		mailer:       deps.Mailer,
		guard:        deps.Guard,
		caps:         deps.Capabilities,
		exposeSecret: deps.ExposeSecret,
		hashCost:     deps.HashCost,
		now:          deps.Now,
	}
	if s.caps == nil {
		s.caps = DefaultCapabilities(defaultTTL)
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) CreateAsset(ctx context.Context, req domain.CreateAssetRequest) (*domain.CreateAssetResult, error) {
	capability, ok := s.caps[req.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported asset type %q: %w", req.Type, domain.ErrBadRequest)
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	data, err := capability.Normalize(req.Data)
	if err != nil {
		return nil, err
	}

	code, err := pkgtoken.NewNumericCode(codeDigits)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return nil, err
	}
	data.SecretHash = string(hash)

	now := s.now().UTC()
	a := &domain.Asset{
		AssetID:   id.New(),
		Type:      req.Type,
		Key:       capability.Key(data),
		Status:    domain.AssetStatusPending,
		Data:      data,
		SubmitID:  id.New(),
		ExpiresAt: now.Add(capability.TTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.deliver(capability, data, code)

	res := &domain.CreateAssetResult{SubmitID: a.SubmitID}
	if s.exposeSecret {
		res.Secret = code
	}
	return res, nil
}

// deliver sends the code out of band. Failures are logged, not returned:
// the record already exists and the client can create a fresh one.
func (s *service) deliver(c Capability, data domain.AssetData, code string) {
	if s.mailer == nil || c.Recipient == nil {
		return
	}
	to := c.Recipient(data)
	if to == "" {
		return
	}
	if err := s.mailer.SendEmail(to, "Your verification code", "Your verification code: "+code); err != nil {
		log.Warn().Err(err).Str("key", c.Key(data)).Msg("could not deliver verification code")
	}
}

func (s *service) VerifyAsset(ctx context.Context, submitID string, req domain.VerifyAssetRequest) (*domain.VerifyAssetResult, error) {
	if s.guard != nil {
		blocked, err := s.guard.IsBlocked(ctx, submitID, OpVerify)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, fmt.Errorf("too many invalid codes, try again later: %w", domain.ErrTooManyRequests)
		}
	}

	now := s.now().UTC()
	a, err := s.repo.FindPending(ctx, submitID, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("asset not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	if _, ok := s.caps[a.Type]; !ok {
		return nil, fmt.Errorf("stored asset has unsupported type %q: %w", a.Type, domain.ErrInternal)
	}
	if req.Code == "" {
		return nil, fmt.Errorf("code should not be empty: %w", domain.ErrBadRequest)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Data.SecretHash), []byte(req.Code)) != nil {
		s.recordFailure(ctx, submitID)
		return nil, fmt.Errorf("invalid code: %w", domain.ErrBadRequest)
	}

	claimID := id.New()
	n, err := s.repo.MarkVerified(ctx, a, claimID, now)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("asset could not be verified: %w", domain.ErrInternal)
	}
	if s.guard != nil {
		if err := s.guard.ResetAttempts(ctx, submitID, OpVerify); err != nil {
			log.Warn().Err(err).Str("submit_id", submitID).Msg("could not reset verify attempts")
		}
	}
	return &domain.VerifyAssetResult{ClaimID: claimID}, nil
}

func (s *service) recordFailure(ctx context.Context, submitID string) {
	if s.guard == nil {
		return
	}
	res, err := s.guard.IncrementFailure(ctx, submitID, OpVerify)
	if err != nil {
		log.Warn().Err(err).Str("submit_id", submitID).Msg("could not count verify failure")
		return
	}
	if res.IsBlocked {
		log.Info().Str("submit_id", submitID).Int("attempts", res.Attempts).Msg("asset verification blocked")
	}
}

func (s *service) GetAsset(ctx context.Context, claimID string) (*domain.AssetView, error) {
	aggs, err := s.repo.FindWithSameKeyCheck(ctx, []string{claimID}, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, fmt.Errorf("asset not found: %w", domain.ErrNotFound)
	}
	return project(aggs[0]), nil
}

// project shapes the client view by status. The secret hash never leaves.
func project(a domain.AggregatedAsset) *domain.AssetView {
	v := &domain.AssetView{
		ClaimID:   a.ClaimID,
		Status:    a.Status,
		IsExpired: a.IsExpired,
	}
	switch a.Status {
	case domain.AssetStatusVerified:
		data := a.Data
		data.SecretHash = ""
		linked, used := a.IsLinked, a.IsUsed
		v.Data = &data
		v.IsLinked = &linked
		v.IsUsed = &used
	case domain.AssetStatusUnverified, domain.AssetStatusFailed:
		v.StatusReason = a.StatusReason
	}
	return v
}

func (s *service) FindAssetsWithSameKeysCheck(ctx context.Context, claimIDs []string) ([]domain.AggregatedAsset, error) {
	if len(claimIDs) == 0 {
		return nil, nil
	}
	return s.repo.FindWithSameKeyCheck(ctx, claimIDs, s.now().UTC())
}

func (s *service) LinkAssets(ctx context.Context, claimIDs []string, entity domain.LinkedEntity) (bool, error) {
	if len(claimIDs) == 0 {
		return false, nil
	}
	n, err := s.repo.Link(ctx, claimIDs, entity, s.now().UTC())
	if err != nil {
		return false, err
	}
	if n != len(claimIDs) {
		log.Warn().Int("requested", len(claimIDs)).Int("linked", n).Str("entity_id", entity.ID).Msg("assets not linked")
	}
	return n == len(claimIDs), nil
}

func (s *service) UseAssets(ctx context.Context, claimIDs []string) (bool, error) {
	if len(claimIDs) == 0 {
		return false, nil
	}
	n, err := s.repo.Use(ctx, claimIDs, s.now().UTC())
	if err != nil {
		return false, err
	}
	if n != len(claimIDs) {
		log.Warn().Int("requested", len(claimIDs)).Int("used", n).Msg("assets not marked used")
	}
	return n == len(claimIDs), nil
}
