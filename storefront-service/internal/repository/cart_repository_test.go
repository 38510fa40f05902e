package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

func setupCartRepo(t *testing.T) *CartRepository {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, MongoOptions{URI: uri, Database: "testdb"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(ctx) })

	repo := NewCartRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))
	return repo
}

func sampleCart(id string) *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	c := domain.NewCart(id, now)
	c.UserID = "user-1"
	tee := &domain.Product{
		ID:       "performance-tennis-shirt",
		Name:     "Uni Tee",
		Price:    decimal.RequireFromString("120.00"),
		Sizes:    []string{"S", "M"},
		Category: "Women's Apparel",
	}
	hat := &domain.Product{ID: "love-cap", Name: "Love Cap", Price: decimal.RequireFromString("33.335")}
	_ = c.AddItem(tee, 2, domain.Variant{Size: "M"})
	_ = c.AddItem(tee, 1, domain.Variant{Size: "S"})
	_ = c.AddItem(hat, 3, domain.Variant{Color: "White"})
	return c
}

func TestCartDocument_RoundTrip(t *testing.T) {
	c := sampleCart("cart-1")

	doc, err := toCartDocument(c)
	require.NoError(t, err)
	back, err := fromCartDocument(doc)
	require.NoError(t, err)

	require.Len(t, back.Items, len(c.Items))
	for i := range c.Items {
		assert.True(t, c.Items[i].UnitPrice.Equal(back.Items[i].UnitPrice))
		back.Items[i].UnitPrice = c.Items[i].UnitPrice
	}
	assert.Equal(t, c, back)
}

func TestCartRepository_GetCart_NotFound(t *testing.T) {
	repo := setupCartRepo(t)

	_, err := repo.GetCart(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCartRepository_SaveAndReload(t *testing.T) {
	repo := setupCartRepo(t)
	ctx := context.Background()
	c := sampleCart("cart-1")

	require.NoError(t, repo.SaveCart(ctx, c))
	assert.Equal(t, int64(1), c.Version)

	loaded, err := repo.GetCart(ctx, "cart-1")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 3)
	for i := range c.Items {
		assert.Equal(t, c.Items[i].ProductID, loaded.Items[i].ProductID)
		assert.Equal(t, c.Items[i].Variant, loaded.Items[i].Variant)
		assert.Equal(t, c.Items[i].Quantity, loaded.Items[i].Quantity)
		assert.True(t, c.Items[i].UnitPrice.Equal(loaded.Items[i].UnitPrice))
	}
	assert.Equal(t, int64(1), loaded.Version)
}

func TestCartRepository_StaleVersionConflicts(t *testing.T) {
	repo := setupCartRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveCart(ctx, sampleCart("cart-1")))

	first, err := repo.GetCart(ctx, "cart-1")
	require.NoError(t, err)
	second, err := repo.GetCart(ctx, "cart-1")
	require.NoError(t, err)

	require.NoError(t, first.RemoveItem(0))
	require.NoError(t, repo.SaveCart(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Clear()
	assert.ErrorIs(t, repo.SaveCart(ctx, second), domain.ErrVersionConflict)

	loaded, err := repo.GetCart(ctx, "cart-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Items, 2)
}

func TestCartRepository_DuplicateInsertConflicts(t *testing.T) {
	repo := setupCartRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCart(ctx, sampleCart("cart-1")))
	assert.ErrorIs(t, repo.SaveCart(ctx, sampleCart("cart-1")), domain.ErrVersionConflict)
}
