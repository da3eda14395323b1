package subscription

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle price catalog.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY,required"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddlePriceLister is the subset of the Paddle prices API the catalog uses.
type PaddlePriceLister interface {
	ListPrices(ctx context.Context, req *paddle.ListPricesRequest) (*paddle.Collection[*paddle.Price], error)
}

// PaddleCatalog resolves plan prices from the Paddle catalog.
// Plan IDs are Paddle product IDs (pro_xxx); only active prices are returned.
type PaddleCatalog struct {
	prices PaddlePriceLister
}

// NewPaddleCatalog creates a catalog backed by the Paddle API.
func NewPaddleCatalog(config PaddleConfig) (*PaddleCatalog, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnvironment, config.Environment)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return NewPaddleCatalogWithClient(client.PricesClient), nil
}

// NewPaddleCatalogWithClient wires the catalog to an explicit prices client.
// Panics if prices is nil to fail fast during initialization.
func NewPaddleCatalogWithClient(prices PaddlePriceLister) *PaddleCatalog {
	if prices == nil {
		panic("subscription: PaddlePriceLister is required")
	}
	return &PaddleCatalog{prices: prices}
}

// Prices lists the active prices of a Paddle product.
func (c *PaddleCatalog) Prices(ctx context.Context, planID string) ([]Price, error) {
	if planID == "" {
		return nil, ErrMissingPlanID
	}

	res, err := c.prices.ListPrices(ctx, &paddle.ListPricesRequest{
		ProductID: []string{planID},
		Status:    []string{string(paddle.StatusActive)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list paddle prices: %w", err)
	}

	var prices []Price
	err = res.Iter(ctx, func(p *paddle.Price) (bool, error) {
		price, err := fromPaddlePrice(planID, p)
		if err != nil {
			return false, err
		}
		prices = append(prices, price)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate paddle prices: %w", err)
	}

	return prices, nil
}

// fromPaddlePrice converts a Paddle price. Paddle sends amounts as decimal strings
// in the lowest currency unit.
func fromPaddlePrice(planID string, p *paddle.Price) (Price, error) {
	amount, err := strconv.ParseInt(p.UnitPrice.Amount, 10, 64)
	if err != nil {
		return Price{}, fmt.Errorf("invalid unit amount %q for price %s: %w", p.UnitPrice.Amount, p.ID, err)
	}
	return Price{
		ID:         p.ID,
		PlanID:     planID,
		UnitAmount: amount,
		Currency:   string(p.UnitPrice.CurrencyCode),
	}, nil
}
