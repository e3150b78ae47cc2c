package relist

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/config"
	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/repository"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

// RelistService is the operation surface the rest of the application (and the
// HTTP handlers) use to manage relist rules.
type RelistService interface {
	CreateRule(ctx context.Context, req *models.CreateRelistRuleRequest) (uint, error)
	UpdateRule(ctx context.Context, id uint, req *models.UpdateRelistRuleRequest) error
	EnableRule(ctx context.Context, id uint) error
	DisableRule(ctx context.Context, id uint) error
	DeleteRule(ctx context.Context, id uint, userID uint) error
	TriggerManualRelist(ctx context.Context, id uint, changes *models.PendingChanges) (*models.ExecutionResult, error)
	RunDueRules(ctx context.Context) ([]models.ExecutionResult, error)
	GetRules(ctx context.Context, param *models.GetRelistRuleParam) ([]models.RelistRuleEntity, error)
	GetHistory(ctx context.Context, param *models.GetRelistHistoryParam) ([]models.RelistHistoryEntity, error)
}

type relistService struct {
	cfg         *config.RelistConfig
	log         *logrus.Logger
	ruleRepo    repository.RelistRuleRepository
	historyRepo repository.RelistHistoryRepository
	scheduler   *Scheduler

	nowFn func() time.Time
}

func NewRelistService(
	cfg *config.RelistConfig,
	log *logrus.Logger,
	ruleRepo repository.RelistRuleRepository,
	historyRepo repository.RelistHistoryRepository,
	scheduler *Scheduler,
) RelistService {
	return &relistService{
		cfg:         cfg,
		log:         log,
		ruleRepo:    ruleRepo,
		historyRepo: historyRepo,
		scheduler:   scheduler,
		nowFn:       utils.TimeNowUTC,
	}
}

// CreateRule validates and persists a new rule. Invalid configuration is
// rejected here and never reaches the database.
func (s *relistService) CreateRule(ctx context.Context, req *models.CreateRelistRuleRequest) (uint, error) {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := &models.RelistRuleEntity{
		UserID:       req.UserID,
		OfferID:      req.OfferID,
		SKU:          req.SKU,
		Mode:         req.Mode,
		AutoConfig:   req.AutoConfig,
		ManualConfig: req.ManualConfig,
		Enabled:      enabled,
		ExecStatus:   models.ExecStatusIdle,
	}
	if err := rule.Validate(); err != nil {
		return 0, err
	}

	rule.NextRunAt = CalculateNextRun(rule, s.nowFn())

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		s.log.WithError(err).Error("Failed to create relist rule")
		return 0, fmt.Errorf("failed to create relist rule: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"rule_id": rule.ID,
		"mode":    rule.Mode,
		"sku":     rule.SKU,
	}).Info("Relist rule created")
	return rule.ID, nil
}

func (s *relistService) UpdateRule(ctx context.Context, id uint, req *models.UpdateRelistRuleRequest) error {
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rule == nil {
		return models.ErrRuleNotFound
	}

	if req.OfferID != nil {
		rule.OfferID = *req.OfferID
	}
	if req.SKU != nil {
		rule.SKU = *req.SKU
	}
	if req.AutoConfig != nil {
		rule.AutoConfig = req.AutoConfig
	}
	if req.ManualConfig != nil {
		rule.ManualConfig = req.ManualConfig
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	// A config change can shift the schedule; recompute except when a manual
	// trigger is pending.
	if rule.Mode == models.ModeAuto || rule.ManualConfig == nil || !rule.ManualConfig.ManualTriggerRequested {
		rule.NextRunAt = CalculateNextRun(rule, s.nowFn())
	}

	return s.ruleRepo.Update(ctx, rule)
}

func (s *relistService) EnableRule(ctx context.Context, id uint) error {
	return s.setEnabled(ctx, id, true)
}

func (s *relistService) DisableRule(ctx context.Context, id uint) error {
	return s.setEnabled(ctx, id, false)
}

func (s *relistService) setEnabled(ctx context.Context, id uint, enabled bool) error {
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rule == nil {
		return models.ErrRuleNotFound
	}

	fields := map[string]interface{}{"enabled": enabled}
	// A disabled auto rule keeps its next_run_at, but it may be in the past
	// by the time a user re-enables; push it forward so the rule does not
	// fire immediately for a stale slot.
	if enabled && rule.Mode == models.ModeAuto && rule.NextRunAt != nil && rule.NextRunAt.Before(s.nowFn()) && rule.RunCount > 0 {
		if next := CalculateNextRun(rule, s.nowFn()); next != nil {
			fields["next_run_at"] = *next
		}
	}
	return s.ruleRepo.UpdateFields(ctx, id, fields)
}

func (s *relistService) DeleteRule(ctx context.Context, id uint, userID uint) error {
	return s.ruleRepo.Delete(ctx, id, userID)
}

// TriggerManualRelist arms a manual rule and executes it synchronously,
// returning the attempt's outcome to the caller.
func (s *relistService) TriggerManualRelist(ctx context.Context, id uint, changes *models.PendingChanges) (*models.ExecutionResult, error) {
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, models.ErrRuleNotFound
	}
	if rule.Mode != models.ModeManual || rule.ManualConfig == nil {
		return nil, fmt.Errorf("%w: manual trigger requires a manual-mode rule", models.ErrInvalidMode)
	}

	rule.ManualConfig.ManualTriggerRequested = true
	if changes != nil && !changes.IsEmpty() {
		rule.ManualConfig.PendingChanges = changes
		rule.ManualConfig.ApplyChanges = true
	}
	rule.NextRunAt = utils.ToPointer(s.nowFn())

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to arm manual relist: %w", err)
	}

	return s.scheduler.RunRule(ctx, id)
}

func (s *relistService) RunDueRules(ctx context.Context) ([]models.ExecutionResult, error) {
	return s.scheduler.RunDueRules(ctx)
}

func (s *relistService) GetRules(ctx context.Context, param *models.GetRelistRuleParam) ([]models.RelistRuleEntity, error) {
	rules, err := s.ruleRepo.Get(ctx, param)
	if err != nil {
		s.log.WithError(err).Error("Failed to get relist rules")
		return nil, fmt.Errorf("failed to get relist rules: %w", err)
	}
	return rules, nil
}

func (s *relistService) GetHistory(ctx context.Context, param *models.GetRelistHistoryParam) ([]models.RelistHistoryEntity, error) {
	rows, err := s.historyRepo.Get(ctx, param)
	if err != nil {
		s.log.WithError(err).Error("Failed to get relist history")
		return nil, fmt.Errorf("failed to get relist history: %w", err)
	}
	return rows, nil
}
