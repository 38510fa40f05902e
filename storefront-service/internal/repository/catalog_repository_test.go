package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/repository"
)

func setupCatalog(t *testing.T) *repository.CatalogRepository {
	t.Helper()

	repo, err := repository.NewCatalogRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.RunMigrations("../../migrations/sqlite"))
	return repo
}

func TestListProducts_ReturnsSeededCatalog(t *testing.T) {
	repo := setupCatalog(t)

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, "performance-tennis-shirt", products[0].ID)
	assert.Equal(t, "love-cap", products[1].ID)
	assert.Equal(t, "tennis-tank-top", products[2].ID)
}

func TestGetProduct_DecodesColumns(t *testing.T) {
	repo := setupCatalog(t)

	tee, err := repo.GetProduct(context.Background(), "performance-tennis-shirt")
	require.NoError(t, err)

	assert.Equal(t, "Uni Tee", tee.Name)
	assert.Equal(t, "120.00", tee.Price.StringFixed(2))
	assert.Equal(t, []string{"XS", "S", "M", "L", "XL", "XXL"}, tee.Sizes)
	assert.Equal(t, []string{"Green"}, tee.Colors)
	assert.Len(t, tee.Images, 3)
	assert.True(t, tee.IsNew)

	hat, err := repo.GetProduct(context.Background(), "love-cap")
	require.NoError(t, err)
	assert.Empty(t, hat.Sizes)
	assert.True(t, hat.Offers(domain.Variant{Size: "M", Color: "White"}))
	assert.False(t, hat.Offers(domain.Variant{Color: "Green"}))
}

func TestGetProduct_Unknown(t *testing.T) {
	repo := setupCatalog(t)

	_, err := repo.GetProduct(context.Background(), "racket")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListProducts_CancelledContext(t *testing.T) {
	repo := setupCatalog(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListProducts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunMigrations_Twice(t *testing.T) {
	repo := setupCatalog(t)
	assert.NoError(t, repo.RunMigrations("../../migrations/sqlite"))
}
