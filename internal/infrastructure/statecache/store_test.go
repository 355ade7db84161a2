package statecache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appidentity "github.com/erp/console/internal/application/identity"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestLoadEmptyCache(t *testing.T) {
	store := openTestStore(t)

	cached, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestSaveAndLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Save(ctx, appidentity.CachedSession{
		UserID:       "u1",
		RefreshToken: "rt",
		CompanyID:    "1",
	})
	require.NoError(t, err)

	cached, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "u1", cached.UserID)
	assert.Equal(t, "rt", cached.RefreshToken)
	assert.Equal(t, "1", cached.CompanyID)
}

func TestSaveReplacesPreviousSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, appidentity.CachedSession{UserID: "u1", RefreshToken: "old"}))
	require.NoError(t, store.Save(ctx, appidentity.CachedSession{UserID: "u2", RefreshToken: "new"}))

	cached, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "u2", cached.UserID)
	assert.Equal(t, "new", cached.RefreshToken)
}

func TestSaveActiveCompany(t *testing.T) {
	t.Run("updates only the company selection", func(t *testing.T) {
		store := openTestStore(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, appidentity.CachedSession{
			UserID: "u1", RefreshToken: "rt", CompanyID: "1",
		}))
		require.NoError(t, store.SaveActiveCompany(ctx, "2"))

		cached, err := store.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.Equal(t, "2", cached.CompanyID)
		assert.Equal(t, "rt", cached.RefreshToken)
	})

	t.Run("without a cached session there is nothing to update", func(t *testing.T) {
		store := openTestStore(t)
		ctx := context.Background()

		require.NoError(t, store.SaveActiveCompany(ctx, "2"))

		cached, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, cached)
	})
}

func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, appidentity.CachedSession{UserID: "u1", RefreshToken: "rt"}))
	require.NoError(t, store.Clear(ctx))

	cached, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)

	// clearing an already empty cache is a no-op
	require.NoError(t, store.Clear(ctx))
}
