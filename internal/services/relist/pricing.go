package relist

import (
	"github.com/shopspring/decimal"

	"github.com/noakmilo/qventory-relist/internal/models"
)

// ApplyPriceDecay computes the price a relist should republish at. Returns nil
// when decay is disabled or the inputs are incomplete, meaning the listing
// keeps its current price.
func ApplyPriceDecay(currentPrice *decimal.Decimal, cfg *models.AutoRelistConfig) *decimal.Decimal {
	if cfg == nil || !cfg.EnablePriceDecrease {
		return nil
	}
	if currentPrice == nil || cfg.PriceDecreaseAmount == nil {
		return nil
	}

	var next decimal.Decimal
	switch cfg.PriceDecreaseType {
	case models.PriceDecreaseFixed:
		next = currentPrice.Sub(*cfg.PriceDecreaseAmount)
	case models.PriceDecreasePercentage:
		factor := decimal.NewFromInt(1).Sub(cfg.PriceDecreaseAmount.Div(decimal.NewFromInt(100)))
		next = currentPrice.Mul(factor)
	default:
		return nil
	}

	if cfg.MinPrice != nil && next.LessThan(*cfg.MinPrice) {
		next = *cfg.MinPrice
	}
	if next.IsNegative() {
		next = decimal.Zero
	}

	next = next.Round(2)
	return &next
}
