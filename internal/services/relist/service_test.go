package relist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/noakmilo/qventory-relist/internal/config"
	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

func newTestService(rules *fakeRuleRepo, api *fakeListingAPI, inventory *fakeInventory) RelistService {
	cfg := &config.RelistConfig{
		WithdrawPublishDelay:  time.Second,
		DueBatchLimit:         50,
		DefaultMaxConsecutive: 3,
	}
	log := newTestLogger()
	histories := newFakeHistoryRepo()
	engine := NewEngine(cfg, log, rules, histories, fakeUnitOfWork{}, api, inventory,
		NewSafetyPipeline(inventory, log), inlinePool{})
	engine.schedule = func(d time.Duration, fn func()) { fn() }
	engine.nowFn = func() time.Time { return engineNow }

	scheduler := NewScheduler(cfg, log, rules, engine, inlinePool{})
	scheduler.nowFn = func() time.Time { return engineNow }

	svc := NewRelistService(cfg, log, rules, histories, scheduler)
	svc.(*relistService).nowFn = func() time.Time { return engineNow }
	return svc
}

func TestRelistService_CreateRule(t *testing.T) {
	tests := []struct {
		name        string
		req         models.CreateRelistRuleRequest
		wantErr     error
		wantNextRun bool
	}{
		{
			name: "auto rule gets scheduled",
			req: models.CreateRelistRuleRequest{
				UserID:     10,
				OfferID:    "offer-1",
				SKU:        "SKU-1",
				Mode:       models.ModeAuto,
				AutoConfig: &models.AutoRelistConfig{Frequency: models.FrequencyWeekly},
			},
			wantNextRun: true,
		},
		{
			name: "manual rule stays unscheduled",
			req: models.CreateRelistRuleRequest{
				UserID:       10,
				OfferID:      "offer-2",
				SKU:          "SKU-2",
				Mode:         models.ModeManual,
				ManualConfig: &models.ManualRelistConfig{},
			},
		},
		{
			name: "invalid config rejected",
			req: models.CreateRelistRuleRequest{
				UserID:  10,
				OfferID: "offer-3",
				SKU:     "SKU-3",
				Mode:    models.ModeAuto,
			},
			wantErr: models.ErrMissingModeConfig,
		},
		{
			name: "both configs rejected",
			req: models.CreateRelistRuleRequest{
				UserID:       10,
				OfferID:      "offer-4",
				SKU:          "SKU-4",
				Mode:         models.ModeManual,
				AutoConfig:   &models.AutoRelistConfig{Frequency: models.FrequencyWeekly},
				ManualConfig: &models.ManualRelistConfig{},
			},
			wantErr: models.ErrMissingModeConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := newFakeRuleRepo()
			svc := newTestService(rules, &fakeListingAPI{}, &fakeInventory{})

			id, err := svc.CreateRule(context.Background(), &tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateRule() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateRule() error = %v", err)
			}

			stored, _ := rules.GetByID(context.Background(), id)
			if stored == nil {
				t.Fatal("rule not persisted")
			}
			if !stored.Enabled {
				t.Error("new rule not enabled by default")
			}
			if (stored.NextRunAt != nil) != tt.wantNextRun {
				t.Errorf("next run = %v, want set=%v", stored.NextRunAt, tt.wantNextRun)
			}
		})
	}
}

func TestRelistService_UpdateRule(t *testing.T) {
	rule := dueAutoRule(1)
	rules := newFakeRuleRepo(rule)
	svc := newTestService(rules, &fakeListingAPI{}, &fakeInventory{})

	err := svc.UpdateRule(context.Background(), 1, &models.UpdateRelistRuleRequest{
		AutoConfig: &models.AutoRelistConfig{Frequency: models.FrequencyMonthly},
	})
	if err != nil {
		t.Fatalf("UpdateRule() error = %v", err)
	}

	stored, _ := rules.GetByID(context.Background(), 1)
	if stored.AutoConfig.Frequency != models.FrequencyMonthly {
		t.Errorf("frequency = %s, want monthly", stored.AutoConfig.Frequency)
	}
	want := engineNow.AddDate(0, 0, 30)
	if stored.NextRunAt == nil || !stored.NextRunAt.Equal(want) {
		t.Errorf("next run = %v, want recomputed %v", stored.NextRunAt, want)
	}

	if err := svc.UpdateRule(context.Background(), 99, &models.UpdateRelistRuleRequest{}); !errors.Is(err, models.ErrRuleNotFound) {
		t.Errorf("UpdateRule() missing rule error = %v, want ErrRuleNotFound", err)
	}
}

func TestRelistService_EnableRule_PushesStaleSchedule(t *testing.T) {
	rule := dueAutoRule(1)
	rule.Enabled = false
	rule.NextRunAt = utils.ToPointer(engineNow.AddDate(0, 0, -3))
	rules := newFakeRuleRepo(rule)
	svc := newTestService(rules, &fakeListingAPI{}, &fakeInventory{})

	if err := svc.EnableRule(context.Background(), 1); err != nil {
		t.Fatalf("EnableRule() error = %v", err)
	}

	stored, _ := rules.GetByID(context.Background(), 1)
	if !stored.Enabled {
		t.Error("rule not enabled")
	}
	if stored.NextRunAt == nil || !stored.NextRunAt.After(engineNow) {
		t.Errorf("next run = %v, want pushed past %v", stored.NextRunAt, engineNow)
	}
}

func TestRelistService_EnableRule_FreshRuleKeepsSchedule(t *testing.T) {
	// A rule that never ran keeps its first slot even when it is in the past,
	// so the next tick picks it up.
	rule := dueAutoRule(1)
	rule.Enabled = false
	rule.RunCount = 0
	firstSlot := engineNow.Add(-time.Minute)
	rule.NextRunAt = utils.ToPointer(firstSlot)
	rules := newFakeRuleRepo(rule)
	svc := newTestService(rules, &fakeListingAPI{}, &fakeInventory{})

	if err := svc.EnableRule(context.Background(), 1); err != nil {
		t.Fatalf("EnableRule() error = %v", err)
	}

	stored, _ := rules.GetByID(context.Background(), 1)
	if stored.NextRunAt == nil || !stored.NextRunAt.Equal(firstSlot) {
		t.Errorf("next run = %v, want untouched %v", stored.NextRunAt, firstSlot)
	}
}

func TestRelistService_DisableRule(t *testing.T) {
	rules := newFakeRuleRepo(dueAutoRule(1))
	svc := newTestService(rules, &fakeListingAPI{}, &fakeInventory{})

	if err := svc.DisableRule(context.Background(), 1); err != nil {
		t.Fatalf("DisableRule() error = %v", err)
	}
	stored, _ := rules.GetByID(context.Background(), 1)
	if stored.Enabled {
		t.Error("rule still enabled")
	}
	if stored.NextRunAt == nil {
		t.Error("disable cleared next_run_at; the schedule should survive")
	}

	if err := svc.DisableRule(context.Background(), 99); !errors.Is(err, models.ErrRuleNotFound) {
		t.Errorf("DisableRule() missing rule error = %v, want ErrRuleNotFound", err)
	}
}

func TestRelistService_DeleteRule(t *testing.T) {
	rules := newFakeRuleRepo(dueAutoRule(1))
	svc := newTestService(rules, &fakeListingAPI{}, &fakeInventory{})

	if err := svc.DeleteRule(context.Background(), 1, 99); !errors.Is(err, models.ErrRuleNotFound) {
		t.Errorf("DeleteRule() wrong owner error = %v, want ErrRuleNotFound", err)
	}
	if err := svc.DeleteRule(context.Background(), 1, 10); err != nil {
		t.Fatalf("DeleteRule() error = %v", err)
	}
	if stored, _ := rules.GetByID(context.Background(), 1); stored != nil {
		t.Error("rule still present after delete")
	}
}

func TestRelistService_TriggerManualRelist(t *testing.T) {
	rule := &models.RelistRuleEntity{
		ID:           2,
		UserID:       10,
		OfferID:      "offer-1",
		SKU:          "SKU-1",
		Mode:         models.ModeManual,
		Enabled:      true,
		ManualConfig: &models.ManualRelistConfig{},
	}
	rules := newFakeRuleRepo(rule)
	api := &fakeListingAPI{newListingID: "listing-5"}
	svc := newTestService(rules, api, &fakeInventory{listing: activeListing("50")})

	res, err := svc.TriggerManualRelist(context.Background(), 2, &models.PendingChanges{Price: decPtr("42")})
	if err != nil {
		t.Fatalf("TriggerManualRelist() error = %v", err)
	}
	if res.Status != models.RunStatusSuccess {
		t.Fatalf("status = %s, want success (%s)", res.Status, res.ErrorMessage)
	}
	if res.NewListingID != "listing-5" {
		t.Errorf("new listing id = %q, want listing-5", res.NewListingID)
	}
	if api.lastChanges.Price == nil || !api.lastChanges.Price.Equal(*decPtr("42")) {
		t.Errorf("update price = %v, want the provided change", api.lastChanges.Price)
	}
}

func TestRelistService_TriggerManualRelist_Errors(t *testing.T) {
	rules := newFakeRuleRepo(dueAutoRule(1))
	svc := newTestService(rules, &fakeListingAPI{}, &fakeInventory{})

	if _, err := svc.TriggerManualRelist(context.Background(), 1, nil); !errors.Is(err, models.ErrInvalidMode) {
		t.Errorf("TriggerManualRelist() on auto rule error = %v, want ErrInvalidMode", err)
	}
	if _, err := svc.TriggerManualRelist(context.Background(), 99, nil); !errors.Is(err, models.ErrRuleNotFound) {
		t.Errorf("TriggerManualRelist() missing rule error = %v, want ErrRuleNotFound", err)
	}
}
