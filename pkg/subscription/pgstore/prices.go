package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// Prices returns the active prices of a plan, oldest first.
func (s *Store) Prices(ctx context.Context, planID string) ([]subscription.Price, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, plan_id, unit_amount, currency
		 FROM plan_prices
		 WHERE plan_id = $1 AND active
		 ORDER BY created_at, id`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("query plan prices: %w", err)
	}
	defer rows.Close()

	var out []subscription.Price
	for rows.Next() {
		var p subscription.Price
		if err := rows.Scan(&p.ID, &p.PlanID, &p.UnitAmount, &p.Currency); err != nil {
			return nil, fmt.Errorf("scan plan price: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan prices: %w", err)
	}
	return out, nil
}

// UpsertPrice creates or replaces a price and marks it active.
func (s *Store) UpsertPrice(ctx context.Context, p subscription.Price) error {
	if p.ID == "" || p.PlanID == "" {
		return subscription.ErrMissingPlanID
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO plan_prices (id, plan_id, unit_amount, currency, active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 ON CONFLICT (id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			unit_amount = EXCLUDED.unit_amount,
			currency = EXCLUDED.currency,
			active = TRUE`,
		p.ID, p.PlanID, p.UnitAmount, strings.ToUpper(p.Currency),
	)
	if err != nil {
		return fmt.Errorf("upsert plan price: %w", err)
	}
	return nil
}

// DeactivatePrice hides a price from Prices without deleting it.
func (s *Store) DeactivatePrice(ctx context.Context, priceID string) error {
	if _, err := s.db.Exec(ctx, `UPDATE plan_prices SET active = FALSE WHERE id = $1`, priceID); err != nil {
		return fmt.Errorf("deactivate plan price: %w", err)
	}
	return nil
}
