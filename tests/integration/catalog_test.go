//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/tests/testenv"
)

// TestCatalog_ProductLookup exercises the product catalog repository
// directly: the Sale Service's joined snapshot covers the purchase path,
// but a standalone product lookup (e.g. an admin catalog view) goes
// straight through ProductRepository.GetByID.
func TestCatalog_ProductLookup(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "cat-prod", "Catalog Item", 2499)

	product, err := env.Products.GetByID(ctx, "cat-prod")
	require.NoError(t, err)
	assert.Equal(t, "cat-prod", product.ProductID)
	assert.Equal(t, "Catalog Item", product.Name)
	assert.EqualValues(t, 2499, product.PriceCents)

	_, err = env.Products.GetByID(ctx, "does-not-exist")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
