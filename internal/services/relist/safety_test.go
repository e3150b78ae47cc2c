package relist

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/models"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSafetyPipeline_Evaluate(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	recentOrder := now.Add(-2 * time.Hour)
	oldOrder := now.Add(-72 * time.Hour)

	tests := []struct {
		name        string
		cfg         models.AutoRelistConfig
		inventory   *fakeInventory
		wantPassed  bool
		wantChecks  []string
	}{
		{
			name:       "no checks enabled passes",
			cfg:        models.AutoRelistConfig{},
			inventory:  &fakeInventory{},
			wantPassed: true,
		},
		{
			name:       "positive quantity ok",
			cfg:        models.AutoRelistConfig{RequirePositiveQuantity: true},
			inventory:  &fakeInventory{quantity: 3},
			wantPassed: true,
		},
		{
			name:       "zero quantity fails",
			cfg:        models.AutoRelistConfig{RequirePositiveQuantity: true},
			inventory:  &fakeInventory{quantity: 0},
			wantPassed: false,
			wantChecks: []string{CheckPositiveQuantity},
		},
		{
			name:       "open return fails",
			cfg:        models.AutoRelistConfig{CheckActiveReturns: true},
			inventory:  &fakeInventory{openReturn: true},
			wantPassed: false,
			wantChecks: []string{CheckActiveReturns},
		},
		{
			name:       "recent order inside window fails",
			cfg:        models.AutoRelistConfig{MinHoursSinceLastOrder: 24},
			inventory:  &fakeInventory{lastOrder: &recentOrder},
			wantPassed: false,
			wantChecks: []string{CheckRecentOrder},
		},
		{
			name:       "old order outside window passes",
			cfg:        models.AutoRelistConfig{MinHoursSinceLastOrder: 24},
			inventory:  &fakeInventory{lastOrder: &oldOrder},
			wantPassed: true,
		},
		{
			name:       "no orders at all passes",
			cfg:        models.AutoRelistConfig{MinHoursSinceLastOrder: 24},
			inventory:  &fakeInventory{},
			wantPassed: true,
		},
		{
			name:       "duplicate active SKU fails",
			cfg:        models.AutoRelistConfig{CheckDuplicateSKUs: true},
			inventory:  &fakeInventory{duplicated: true},
			wantPassed: false,
			wantChecks: []string{CheckDuplicateSKUs},
		},
		{
			name: "all failures are collected, not just the first",
			cfg: models.AutoRelistConfig{
				RequirePositiveQuantity: true,
				CheckActiveReturns:      true,
				MinHoursSinceLastOrder:  24,
				CheckDuplicateSKUs:      true,
			},
			inventory:  &fakeInventory{quantity: 0, openReturn: true, lastOrder: &recentOrder, duplicated: true},
			wantPassed: false,
			wantChecks: []string{CheckPositiveQuantity, CheckActiveReturns, CheckRecentOrder, CheckDuplicateSKUs},
		},
		{
			name: "disabled checks are not consulted",
			cfg: models.AutoRelistConfig{
				RequirePositiveQuantity: true,
			},
			inventory:  &fakeInventory{quantity: 2, openReturn: true, duplicated: true},
			wantPassed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := NewSafetyPipeline(tt.inventory, newTestLogger())
			rule := &models.RelistRuleEntity{
				ID:         1,
				UserID:     10,
				SKU:        "SKU-1",
				OfferID:    "offer-1",
				Mode:       models.ModeAuto,
				AutoConfig: &tt.cfg,
			}

			result, err := pipeline.Evaluate(context.Background(), rule, now)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if result.Passed != tt.wantPassed {
				t.Errorf("Evaluate() passed = %v, want %v (reason: %s)", result.Passed, tt.wantPassed, result.Reason)
			}
			if !reflect.DeepEqual(result.FailedChecks, tt.wantChecks) {
				t.Errorf("Evaluate() failed checks = %v, want %v", result.FailedChecks, tt.wantChecks)
			}
			if !tt.wantPassed && result.Reason == "" {
				t.Error("Evaluate() failing result has empty reason")
			}
		})
	}
}

func TestSafetyPipeline_ManualModeSkipsChecks(t *testing.T) {
	pipeline := NewSafetyPipeline(&fakeInventory{quantity: 0, openReturn: true}, newTestLogger())
	rule := &models.RelistRuleEntity{
		ID:           1,
		Mode:         models.ModeManual,
		ManualConfig: &models.ManualRelistConfig{ManualTriggerRequested: true},
	}

	result, err := pipeline.Evaluate(context.Background(), rule, time.Now())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.Passed {
		t.Error("Evaluate() manual rule did not pass")
	}
}

func TestSafetyPipeline_QueryErrorIsAnError(t *testing.T) {
	pipeline := NewSafetyPipeline(&fakeInventory{failWith: errMarketplaceDown}, newTestLogger())
	rule := &models.RelistRuleEntity{
		ID:   1,
		Mode: models.ModeAuto,
		AutoConfig: &models.AutoRelistConfig{
			RequirePositiveQuantity: true,
		},
	}

	if _, err := pipeline.Evaluate(context.Background(), rule, time.Now()); err == nil {
		t.Fatal("Evaluate() error = nil, want inventory failure")
	}
}
