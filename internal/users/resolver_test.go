package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/receivr-io/receivr/internal/database"
	"github.com/receivr-io/receivr/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestResolveCaller(t *testing.T) {
	require := require.New(t)
	db, err := database.NewTestDatabase(zaptest.NewLogger(t).Sugar())
	require.NoError(err)
	resolver := NewResolver(db)
	ctx := context.Background()

	_, err = resolver.ResolveCaller(ctx, "")
	require.ErrorIs(err, ErrNoSubject)

	first, err := resolver.ResolveCaller(ctx, "auth0|alice")
	require.NoError(err)
	require.NotEqual(uuid.Nil, first)

	again, err := resolver.ResolveCaller(ctx, "auth0|alice")
	require.NoError(err)
	require.Equal(first, again)

	other, err := resolver.ResolveCaller(ctx, "auth0|bob")
	require.NoError(err)
	require.NotEqual(first, other)

	var count int64
	require.NoError(db.Model(&models.User{}).Count(&count).Error)
	require.Equal(int64(2), count)
}
