package subscription

import (
	"testing"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPaddlePrice(t *testing.T) {
	t.Parallel()

	p := &paddle.Price{
		ID:        "pri_01",
		ProductID: "pro_01",
		UnitPrice: paddle.Money{Amount: "2900", CurrencyCode: paddle.CurrencyCodeUSD},
	}

	price, err := fromPaddlePrice("pro_01", p)
	require.NoError(t, err)
	assert.Equal(t, Price{ID: "pri_01", PlanID: "pro_01", UnitAmount: 2900, Currency: "USD"}, price)

	p.UnitPrice.Amount = "29.00"
	_, err = fromPaddlePrice("pro_01", p)
	assert.Error(t, err)
}

func TestNewPaddleCatalog(t *testing.T) {
	t.Parallel()

	_, err := NewPaddleCatalog(PaddleConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewPaddleCatalog(PaddleConfig{APIKey: "pdl_key", Environment: "staging"})
	assert.ErrorIs(t, err, ErrInvalidProviderEnvironment)

	catalog, err := NewPaddleCatalog(PaddleConfig{APIKey: "pdl_key", Environment: "sandbox"})
	require.NoError(t, err)
	assert.NotNil(t, catalog)

	assert.Panics(t, func() { NewPaddleCatalogWithClient(nil) })
}
