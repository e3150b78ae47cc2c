package relist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/services/marketplace"
)

const (
	CheckPositiveQuantity = "require_positive_quantity"
	CheckActiveReturns    = "check_active_returns"
	CheckRecentOrder      = "min_hours_since_last_order"
	CheckDuplicateSKUs    = "check_duplicate_skus"
)

// SafetyResult reports which enabled checks failed. A failed check makes the
// run a skip, not an error.
type SafetyResult struct {
	Passed       bool
	FailedChecks []string
	Reason       string
}

// SafetyPipeline evaluates a rule's enabled safety checks against current
// inventory and order state, immediately before execution. Auto mode only.
type SafetyPipeline struct {
	inventory marketplace.InventoryQuery
	log       *logrus.Logger
}

func NewSafetyPipeline(inventory marketplace.InventoryQuery, log *logrus.Logger) *SafetyPipeline {
	return &SafetyPipeline{
		inventory: inventory,
		log:       log,
	}
}

func (p *SafetyPipeline) Evaluate(ctx context.Context, rule *models.RelistRuleEntity, now time.Time) (*SafetyResult, error) {
	if rule.Mode != models.ModeAuto || rule.AutoConfig == nil {
		return &SafetyResult{Passed: true}, nil
	}
	cfg := rule.AutoConfig

	var failed []string
	var reasons []string

	if cfg.RequirePositiveQuantity {
		qty, err := p.inventory.CurrentQuantity(ctx, rule.UserID, rule.SKU)
		if err != nil {
			return nil, fmt.Errorf("quantity check failed: %w", err)
		}
		if qty <= 0 {
			failed = append(failed, CheckPositiveQuantity)
			reasons = append(reasons, "listing has no stock")
		}
	}

	if cfg.CheckActiveReturns {
		open, err := p.inventory.HasOpenReturn(ctx, rule.UserID, rule.SKU)
		if err != nil {
			return nil, fmt.Errorf("returns check failed: %w", err)
		}
		if open {
			failed = append(failed, CheckActiveReturns)
			reasons = append(reasons, "an open return or case exists for this SKU")
		}
	}

	if cfg.MinHoursSinceLastOrder > 0 {
		lastOrder, err := p.inventory.LastOrderTime(ctx, rule.UserID, rule.SKU)
		if err != nil {
			return nil, fmt.Errorf("last order check failed: %w", err)
		}
		if lastOrder != nil {
			window := time.Duration(cfg.MinHoursSinceLastOrder) * time.Hour
			if now.Sub(*lastOrder) < window {
				failed = append(failed, CheckRecentOrder)
				reasons = append(reasons, fmt.Sprintf("an order completed within the last %d hours", cfg.MinHoursSinceLastOrder))
			}
		}
	}

	if cfg.CheckDuplicateSKUs {
		duplicated, err := p.inventory.IsSKUDuplicatedActive(ctx, rule.UserID, rule.SKU, rule.OfferID)
		if err != nil {
			return nil, fmt.Errorf("duplicate SKU check failed: %w", err)
		}
		if duplicated {
			failed = append(failed, CheckDuplicateSKUs)
			reasons = append(reasons, "another active listing shares this SKU")
		}
	}

	if len(failed) > 0 {
		p.log.WithFields(logrus.Fields{
			"rule_id": rule.ID,
			"sku":     rule.SKU,
			"checks":  failed,
		}).Info("Safety checks failed, skipping relist")
		return &SafetyResult{
			Passed:       false,
			FailedChecks: failed,
			Reason:       strings.Join(reasons, "; "),
		}, nil
	}
	return &SafetyResult{Passed: true}, nil
}
