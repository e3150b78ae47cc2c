package relist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noakmilo/qventory-relist/internal/config"
	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/repository"
	"github.com/noakmilo/qventory-relist/internal/services/marketplace"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

// Engine drives one relist attempt through its states:
// PENDING -> WITHDRAWING -> DELAY -> [UPDATING] -> PUBLISHING -> outcome.
//
// The DELAY between withdraw and publish is a scheduled continuation that
// re-enters the worker pool, never a blocking sleep. Marketplace calls are
// side-effecting and are never repeated within one attempt; the only backoff
// is the rule-level consecutive error counter.
type Engine struct {
	cfg         *config.RelistConfig
	log         *logrus.Logger
	ruleRepo    repository.RelistRuleRepository
	historyRepo repository.RelistHistoryRepository
	uow         repository.UnitOfWork
	listingAPI  marketplace.ListingAPI
	inventory   marketplace.InventoryQuery
	safety      *SafetyPipeline
	pool        TaskSubmitter

	// seams for tests
	schedule func(d time.Duration, fn func())
	nowFn    func() time.Time
}

func NewEngine(
	cfg *config.RelistConfig,
	log *logrus.Logger,
	ruleRepo repository.RelistRuleRepository,
	historyRepo repository.RelistHistoryRepository,
	uow repository.UnitOfWork,
	listingAPI marketplace.ListingAPI,
	inventory marketplace.InventoryQuery,
	safety *SafetyPipeline,
	pool TaskSubmitter,
) *Engine {
	e := &Engine{
		cfg:         cfg,
		log:         log,
		ruleRepo:    ruleRepo,
		historyRepo: historyRepo,
		uow:         uow,
		listingAPI:  listingAPI,
		inventory:   inventory,
		safety:      safety,
		pool:        pool,
	}
	e.schedule = func(d time.Duration, fn func()) {
		time.AfterFunc(d, func() {
			e.pool.Submit(fn)
		})
	}
	e.nowFn = utils.TimeNowUTC
	return e
}

func datatypesJSON(raw json.RawMessage) datatypes.JSON {
	return datatypes.JSON(raw)
}

type attempt struct {
	rule     *models.RelistRuleEntity
	history  *models.RelistHistoryEntity
	changes  marketplace.ListingChanges
	newPrice *decimal.Decimal
	done     func(models.ExecutionResult)
}

func (a *attempt) result(status models.RunStatus) models.ExecutionResult {
	return models.ExecutionResult{
		RuleID:    a.rule.ID,
		AttemptID: a.history.AttemptID,
		Status:    status,
	}
}

// Execute runs one attempt for an already claimed rule. The done callback
// fires exactly once with the outcome, possibly from a later worker after the
// withdraw-to-publish delay.
func (e *Engine) Execute(ctx context.Context, rule *models.RelistRuleEntity, done func(models.ExecutionResult)) {
	now := e.nowFn()

	listing, err := e.inventory.GetListingByOfferID(ctx, rule.UserID, rule.OfferID)
	if err != nil {
		e.log.WithError(err).WithField("rule_id", rule.ID).Warn("Failed to look up listing before relist")
	}

	a := &attempt{
		rule: rule,
		history: &models.RelistHistoryEntity{
			AttemptID:    uuid.NewString(),
			RuleID:       rule.ID,
			UserID:       rule.UserID,
			StartedAt:    now,
			Mode:         rule.Mode,
			Status:       models.RunStatusRunning,
			OldListingID: rule.OfferID,
		},
		done: done,
	}
	if listing != nil {
		a.history.OldPrice = decimal.NewNullDecimal(listing.Price)
		a.history.OldTitle = sql.NullString{String: listing.Title, Valid: listing.Title != ""}
	}

	if err := e.historyRepo.Create(ctx, a.history); err != nil {
		e.log.WithError(err).WithField("rule_id", rule.ID).Error("Failed to create relist history row")
		done(models.ExecutionResult{RuleID: rule.ID, Status: models.RunStatusError, ErrorMessage: err.Error()})
		return
	}

	// Safety checks gate auto rules only.
	safetyResult, err := e.safety.Evaluate(ctx, rule, now)
	if err != nil {
		e.markError(ctx, a, fmt.Sprintf("safety check evaluation failed: %v", err))
		return
	}
	if !safetyResult.Passed {
		e.markSkipped(ctx, a, safetyResult)
		return
	}

	e.prepareChanges(a, listing)

	// WITHDRAWING
	withdrawRaw, err := e.listingAPI.Withdraw(ctx, rule.UserID, rule.OfferID)
	if err != nil {
		e.markError(ctx, a, fmt.Sprintf("withdraw failed: %v", err))
		return
	}
	if err := e.historyRepo.UpdateOutcome(ctx, a.history.ID, map[string]interface{}{
		"withdraw_response": datatypesJSON(withdrawRaw),
	}); err != nil {
		e.log.WithError(err).WithField("rule_id", rule.ID).Warn("Failed to record withdraw response")
	}

	// DELAY. The listing is already withdrawn, so cancellation no longer
	// applies; the continuation runs on a context detached from the tick.
	contCtx := context.WithoutCancel(ctx)
	e.schedule(e.cfg.WithdrawPublishDelay, func() {
		e.finish(contCtx, a)
	})
}

// prepareChanges decides what the UPDATING state should rewrite: pending
// changes for manual rules, a decayed price for auto rules.
func (e *Engine) prepareChanges(a *attempt, listing *models.ListingEntity) {
	switch a.rule.Mode {
	case models.ModeManual:
		cfg := a.rule.ManualConfig
		if cfg == nil || !cfg.ApplyChanges || cfg.PendingChanges.IsEmpty() {
			return
		}
		pc := cfg.PendingChanges
		a.changes = marketplace.ListingChanges{
			Price:       pc.Price,
			Title:       pc.Title,
			Description: pc.Description,
			Quantity:    pc.Quantity,
			Condition:   pc.Condition,
		}
		a.newPrice = pc.Price
	case models.ModeAuto:
		var current *decimal.Decimal
		if listing != nil {
			current = utils.ToPointer(listing.Price)
		}
		if decayed := ApplyPriceDecay(current, a.rule.AutoConfig); decayed != nil {
			a.changes = marketplace.ListingChanges{Price: decayed}
			a.newPrice = decayed
		}
	}
}

func (a *attempt) hasChanges() bool {
	c := a.changes
	return c.Price != nil || c.Title != nil || c.Description != nil || c.Quantity != nil || c.Condition != nil
}

// finish runs the post-delay states: optional update, then publish.
func (e *Engine) finish(ctx context.Context, a *attempt) {
	var updateRaw json.RawMessage

	// UPDATING
	if a.hasChanges() {
		raw, err := e.listingAPI.Update(ctx, a.rule.UserID, a.rule.OfferID, a.changes)
		if err != nil {
			e.markError(ctx, a, fmt.Sprintf("update failed, listing remains withdrawn: %v", err))
			return
		}
		updateRaw = raw
	}

	// PUBLISHING
	pub, err := e.listingAPI.Publish(ctx, a.rule.UserID, a.rule.OfferID)
	if err != nil {
		e.markError(ctx, a, fmt.Sprintf("publish failed, listing remains withdrawn: %v", err))
		return
	}

	e.markSuccess(ctx, a, updateRaw, pub)
}

// markSuccess records a fully published relist: counters, cleared manual
// trigger and pending changes, recomputed schedule, completed history row.
// History and rule updates commit in one transaction.
func (e *Engine) markSuccess(ctx context.Context, a *attempt, updateRaw json.RawMessage, pub *marketplace.PublishResult) {
	now := e.nowFn()
	rule := a.rule

	rule.RunCount++
	rule.SuccessCount++
	rule.ConsecutiveErrors = 0
	rule.LastRunAt = utils.ToPointer(now)
	rule.LastRunStatus = utils.ToPointer(models.RunStatusSuccess)
	rule.LastErrorMessage = nil
	if rule.Mode == models.ModeManual && rule.ManualConfig != nil {
		rule.ManualConfig.ManualTriggerRequested = false
		rule.ManualConfig.PendingChanges = nil
	}
	rule.NextRunAt = CalculateNextRun(rule, now)

	historyFields := map[string]interface{}{
		"status":         models.RunStatusSuccess,
		"new_listing_id": pub.ListingID,
	}
	if a.newPrice != nil {
		historyFields["new_price"] = decimal.NewNullDecimal(*a.newPrice)
	}
	if a.changes.Title != nil {
		historyFields["new_title"] = sql.NullString{String: *a.changes.Title, Valid: true}
	}
	if updateRaw != nil {
		historyFields["update_response"] = datatypesJSON(updateRaw)
	}
	if pub.Raw != nil {
		historyFields["publish_response"] = datatypesJSON(pub.Raw)
	}

	err := e.uow.Execute(ctx, func(tx *gorm.DB) error {
		if err := e.historyRepo.UpdateOutcome(ctx, a.history.ID, historyFields, utils.WithTx(tx)); err != nil {
			return err
		}
		if err := e.historyRepo.MarkCompleted(ctx, a.history.ID, now, utils.WithTx(tx)); err != nil {
			return err
		}
		return e.ruleRepo.Update(ctx, rule, utils.WithTx(tx))
	})
	if err != nil {
		e.log.WithError(err).WithField("rule_id", rule.ID).Error("Failed to persist relist success")
	}

	e.log.WithFields(logrus.Fields{
		"rule_id":        rule.ID,
		"attempt_id":     a.history.AttemptID,
		"new_listing_id": pub.ListingID,
	}).Info("Relist succeeded")

	result := a.result(models.RunStatusSuccess)
	result.NewListingID = pub.ListingID
	a.done(result)
}

// markError records a failed attempt. Auto rules with pause_on_error are
// force-disabled once consecutive errors reach the limit; the rule still gets
// a future next_run_at so re-enabling resumes the schedule.
func (e *Engine) markError(ctx context.Context, a *attempt, message string) {
	now := e.nowFn()
	rule := a.rule

	rule.RunCount++
	rule.ErrorCount++
	rule.ConsecutiveErrors++
	rule.LastRunAt = utils.ToPointer(now)
	rule.LastRunStatus = utils.ToPointer(models.RunStatusError)
	rule.LastErrorMessage = utils.ToPointer(message)

	if rule.Mode == models.ModeAuto && rule.AutoConfig != nil && rule.AutoConfig.PauseOnError {
		limit := rule.MaxConsecutiveErrorsOrDefault(e.cfg.DefaultMaxConsecutive)
		if rule.ConsecutiveErrors >= limit {
			rule.Enabled = false
			e.log.WithFields(logrus.Fields{
				"rule_id":            rule.ID,
				"consecutive_errors": rule.ConsecutiveErrors,
			}).Warn("Rule disabled after reaching consecutive error limit")
		}
	}
	if rule.Mode == models.ModeManual && rule.ManualConfig != nil {
		rule.ManualConfig.ManualTriggerRequested = false
	}
	rule.NextRunAt = CalculateNextRun(rule, now)

	err := e.uow.Execute(ctx, func(tx *gorm.DB) error {
		if err := e.historyRepo.UpdateOutcome(ctx, a.history.ID, map[string]interface{}{
			"status":        models.RunStatusError,
			"error_message": sql.NullString{String: message, Valid: true},
		}, utils.WithTx(tx)); err != nil {
			return err
		}
		if err := e.historyRepo.MarkCompleted(ctx, a.history.ID, now, utils.WithTx(tx)); err != nil {
			return err
		}
		return e.ruleRepo.Update(ctx, rule, utils.WithTx(tx))
	})
	if err != nil {
		e.log.WithError(err).WithField("rule_id", rule.ID).Error("Failed to persist relist error")
	}

	result := a.result(models.RunStatusError)
	result.ErrorMessage = message
	a.done(result)
}

// markSkipped records a safety check skip. Skips count as runs but never as
// errors, and the rule reschedules normally.
func (e *Engine) markSkipped(ctx context.Context, a *attempt, safety *SafetyResult) {
	now := e.nowFn()
	rule := a.rule

	rule.RunCount++
	rule.LastRunAt = utils.ToPointer(now)
	rule.LastRunStatus = utils.ToPointer(models.RunStatusSkipped)
	if rule.Mode == models.ModeManual && rule.ManualConfig != nil {
		rule.ManualConfig.ManualTriggerRequested = false
	}
	rule.NextRunAt = CalculateNextRun(rule, now)

	err := e.uow.Execute(ctx, func(tx *gorm.DB) error {
		if err := e.historyRepo.UpdateOutcome(ctx, a.history.ID, map[string]interface{}{
			"status":        models.RunStatusSkipped,
			"skip_reason":   sql.NullString{String: safety.Reason, Valid: true},
			"checks_failed": pq.StringArray(safety.FailedChecks),
		}, utils.WithTx(tx)); err != nil {
			return err
		}
		if err := e.historyRepo.MarkCompleted(ctx, a.history.ID, now, utils.WithTx(tx)); err != nil {
			return err
		}
		return e.ruleRepo.Update(ctx, rule, utils.WithTx(tx))
	})
	if err != nil {
		e.log.WithError(err).WithField("rule_id", rule.ID).Error("Failed to persist relist skip")
	}

	result := a.result(models.RunStatusSkipped)
	result.SkipReason = safety.Reason
	a.done(result)
}
