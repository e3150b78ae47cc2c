package relist

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/config"
	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/repository"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

// Scheduler selects due rules and fans them out to the worker pool. A rule is
// dispatched only after an atomic claim succeeds, so overlapping ticks can
// never run the same rule twice; the claim is released unconditionally when
// the attempt finishes.
type Scheduler struct {
	cfg      *config.RelistConfig
	log      *logrus.Logger
	ruleRepo repository.RelistRuleRepository
	engine   *Engine
	pool     TaskSubmitter

	nowFn func() time.Time
}

func NewScheduler(cfg *config.RelistConfig, log *logrus.Logger, ruleRepo repository.RelistRuleRepository, engine *Engine, pool TaskSubmitter) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		log:      log,
		ruleRepo: ruleRepo,
		engine:   engine,
		pool:     pool,
		nowFn:    utils.TimeNowUTC,
	}
}

// RunDueRules executes every due rule and blocks until all dispatched attempts
// have finished, including their delay continuations. Workers are never held
// during a delay window; only this caller waits.
func (s *Scheduler) RunDueRules(ctx context.Context) ([]models.ExecutionResult, error) {
	now := s.nowFn()
	due, err := s.ruleRepo.GetDueRules(ctx, &models.GetDueRulesParam{
		Now:   now,
		Limit: s.cfg.DueBatchLimit,
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to select due relist rules")
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	s.log.WithField("count", len(due)).Info("Dispatching due relist rules")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []models.ExecutionResult
	)
	for i := range due {
		rule := due[i]

		claimed, err := s.ruleRepo.Claim(ctx, rule.ID)
		if err != nil {
			s.log.WithError(err).WithField("rule_id", rule.ID).Error("Failed to claim relist rule")
			continue
		}
		if !claimed {
			// Another tick got there first, or the rule was disabled between
			// selection and claim.
			continue
		}

		wg.Add(1)
		s.pool.Submit(func() {
			s.engine.Execute(ctx, &rule, func(res models.ExecutionResult) {
				s.release(rule.ID)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				wg.Done()
			})
		})
	}
	wg.Wait()
	return results, nil
}

// RunRule claims and executes a single rule synchronously, returning its
// outcome. Used for manual triggers.
func (s *Scheduler) RunRule(ctx context.Context, ruleID uint) (*models.ExecutionResult, error) {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, models.ErrRuleNotFound
	}

	claimed, err := s.ruleRepo.Claim(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, models.ErrRuleInProgress
	}

	resultCh := make(chan models.ExecutionResult, 1)
	s.pool.Submit(func() {
		s.engine.Execute(ctx, rule, func(res models.ExecutionResult) {
			s.release(rule.ID)
			resultCh <- res
		})
	})

	select {
	case res := <-resultCh:
		return &res, nil
	case <-ctx.Done():
		// The attempt keeps running; only the caller stops waiting.
		return nil, ctx.Err()
	}
}

// release clears the claim on a background context so a canceled tick cannot
// leave the rule stuck in_progress.
func (s *Scheduler) release(ruleID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ruleRepo.Release(ctx, ruleID); err != nil {
		s.log.WithError(err).WithField("rule_id", ruleID).Error("Failed to release relist rule claim")
	}
}
