package http

import (
	"context"
	"time"

	"github.com/go-api-assets/internal/domain"
)

// AssetRepository is the minimal interface the router requires from an asset store.
type AssetRepository interface {
	Create(ctx context.Context, a *domain.Asset) error
	FindPending(ctx context.Context, submitID string, now time.Time) (*domain.Asset, error)
	MarkVerified(ctx context.Context, a *domain.Asset, claimID string, now time.Time) (int, error)
	FindWithSameKeyCheck(ctx context.Context, claimIDs []string, now time.Time) ([]domain.AggregatedAsset, error)
	// Link and Use report how many records changed; any value below
	// len(claimIDs) means nothing was written.
	Link(ctx context.Context, claimIDs []string, entity domain.LinkedEntity, now time.Time) (int, error)
	Use(ctx context.Context, claimIDs []string, now time.Time) (int, error)
}

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Delete removes the user and releases its email.
	Delete(ctx context.Context, u *domain.User) error
}

// Cache is the key/value store backing sessions and attempt counters.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Mailer delivers one-time codes.
type Mailer interface {
	SendEmail(to, subject, body string) error
}
