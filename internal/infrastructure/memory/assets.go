package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-api-assets/internal/domain"
)

// AssetStore is a thread-safe in-process asset ledger. It mirrors the
// conditional semantics of the DynamoDB repo under a single mutex.
type AssetStore struct {
	mu     sync.RWMutex
	assets map[string]*domain.Asset // by asset id
}

func NewAssetStore() *AssetStore {
	return &AssetStore{assets: make(map[string]*domain.Asset)}
}

func (s *AssetStore) Create(_ context.Context, a *domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[a.AssetID]; ok {
		return fmt.Errorf("asset %s already exists: %w", a.AssetID, domain.ErrConflict)
	}
	cp := *a
	s.assets[a.AssetID] = &cp
	return nil
}

func (s *AssetStore) FindPending(_ context.Context, submitID string, now time.Time) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.assets {
		if a.SubmitID == submitID && a.Status == domain.AssetStatusPending && now.Before(a.ExpiresAt) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("pending asset %s: %w", submitID, domain.ErrNotFound)
}

func (s *AssetStore) MarkVerified(_ context.Context, a *domain.Asset, claimID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.assets[a.AssetID]
	if !ok || cur.SubmitID != a.SubmitID || cur.Status != domain.AssetStatusPending ||
		!now.Before(cur.ExpiresAt) || cur.ClaimID != "" {
		return 0, nil
	}
	cur.Status = domain.AssetStatusVerified
	cur.ClaimID = claimID
	cur.UpdatedAt = now
	return 1, nil
}

func (s *AssetStore) FindWithSameKeyCheck(_ context.Context, claimIDs []string, now time.Time) ([]domain.AggregatedAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AggregatedAsset, 0, len(claimIDs))
	for _, cid := range claimIDs {
		target := s.byClaimID(cid)
		if target == nil {
			continue
		}
		var siblings []domain.Asset
		for _, a := range s.assets {
			if a.Key == target.Key {
				siblings = append(siblings, *a)
			}
		}
		result = append(result, domain.Aggregate(*target, siblings, now))
	}
	return result, nil
}

func (s *AssetStore) Link(_ context.Context, claimIDs []string, entity domain.LinkedEntity, now time.Time) (int, error) {
	return s.update(claimIDs, func(a *domain.Asset) {
		le := entity
		a.LinkedEntity = &le
		a.UsedAt = &now
		a.UpdatedAt = now
	}), nil
}

func (s *AssetStore) Use(_ context.Context, claimIDs []string, now time.Time) (int, error) {
	return s.update(claimIDs, func(a *domain.Asset) {
		a.UsedAt = &now
		a.UpdatedAt = now
	}), nil
}

// update applies fn to every asset in claimIDs, or to none of them when any
// is missing, not Verified, already linked or already used.
func (s *AssetStore) update(claimIDs []string, fn func(*domain.Asset)) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := make([]*domain.Asset, 0, len(claimIDs))
	seen := make(map[string]bool, len(claimIDs))
	for _, cid := range claimIDs {
		a := s.byClaimID(cid)
		if a == nil || seen[a.AssetID] || a.Status != domain.AssetStatusVerified ||
			a.LinkedEntity != nil || a.UsedAt != nil {
			return 0
		}
		seen[a.AssetID] = true
		targets = append(targets, a)
	}
	for _, a := range targets {
		fn(a)
	}
	return len(targets)
}

// byClaimID expects s.mu to be held.
func (s *AssetStore) byClaimID(claimID string) *domain.Asset {
	if claimID == "" {
		return nil
	}
	for _, a := range s.assets {
		if a.ClaimID == claimID {
			return a
		}
	}
	return nil
}
