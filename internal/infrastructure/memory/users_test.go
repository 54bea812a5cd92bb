package memory

import (
	"context"
	"testing"

	"github.com/go-api-assets/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore_CreateGet(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "u1", Email: "a@b.com"}))

	u, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)

	u, err = s.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
}

func TestUserStore_NotFound(t *testing.T) {
	s := NewUserStore()
	_, err := s.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetByEmail(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserStore_DuplicateEmail(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "u1", Email: "a@b.com"}))
	err := s.Create(ctx, &domain.User{UserID: "u2", Email: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserStore_DeleteReleasesEmail(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	u := &domain.User{UserID: "u1", Email: "a@b.com"}
	require.NoError(t, s.Create(ctx, u))

	require.NoError(t, s.Delete(ctx, u))
	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetByEmail(ctx, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Create(ctx, &domain.User{UserID: "u2", Email: "a@b.com"}))
	assert.NoError(t, s.Delete(ctx, &domain.User{UserID: "missing"}))
}
