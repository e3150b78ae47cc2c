package relist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/services/marketplace"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

// inlinePool runs submitted tasks synchronously so tests see the full state
// machine without goroutines.
type inlinePool struct{}

func (inlinePool) Submit(task func()) { task() }

type fakeUnitOfWork struct{}

func (fakeUnitOfWork) Execute(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRuleRepo struct {
	mu         sync.Mutex
	rules      map[uint]*models.RelistRuleEntity
	claimDeny  map[uint]bool
	claimCalls int
}

func newFakeRuleRepo(rules ...*models.RelistRuleEntity) *fakeRuleRepo {
	r := &fakeRuleRepo{
		rules:     make(map[uint]*models.RelistRuleEntity),
		claimDeny: make(map[uint]bool),
	}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
	}
	return r
}

func (r *fakeRuleRepo) Get(ctx context.Context, param *models.GetRelistRuleParam, opts ...utils.DBOption) ([]models.RelistRuleEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RelistRuleEntity
	for _, rule := range r.rules {
		out = append(out, *rule)
	}
	return out, nil
}

func (r *fakeRuleRepo) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.RelistRuleEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, nil
	}
	copied := *rule
	return &copied, nil
}

func (r *fakeRuleRepo) Create(ctx context.Context, rule *models.RelistRuleEntity, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.ID == 0 {
		rule.ID = uint(len(r.rules) + 1)
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *fakeRuleRepo) Update(ctx context.Context, rule *models.RelistRuleEntity, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = rule
	return nil
}

func (r *fakeRuleRepo) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return models.ErrRuleNotFound
	}
	if v, ok := fields["enabled"]; ok {
		rule.Enabled = v.(bool)
	}
	if v, ok := fields["next_run_at"]; ok {
		t := v.(time.Time)
		rule.NextRunAt = &t
	}
	if v, ok := fields["exec_status"]; ok {
		rule.ExecStatus = v.(models.ExecStatus)
	}
	return nil
}

func (r *fakeRuleRepo) Delete(ctx context.Context, id uint, userID uint, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok || rule.UserID != userID {
		return models.ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *fakeRuleRepo) GetDueRules(ctx context.Context, param *models.GetDueRulesParam, opts ...utils.DBOption) ([]models.RelistRuleEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []models.RelistRuleEntity
	for _, rule := range r.rules {
		if rule.ExecStatus == models.ExecStatusInProgress {
			continue
		}
		if rule.IsDue(param.Now) {
			due = append(due, *rule)
		}
	}
	return due, nil
}

func (r *fakeRuleRepo) Claim(ctx context.Context, id uint, opts ...utils.DBOption) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimCalls++
	rule, ok := r.rules[id]
	if !ok {
		return false, nil
	}
	if r.claimDeny[id] || !rule.Enabled || rule.ExecStatus == models.ExecStatusInProgress {
		return false, nil
	}
	rule.ExecStatus = models.ExecStatusInProgress
	return true, nil
}

func (r *fakeRuleRepo) Release(ctx context.Context, id uint, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule, ok := r.rules[id]; ok {
		rule.ExecStatus = models.ExecStatusIdle
	}
	return nil
}

func (r *fakeRuleRepo) ReleaseAll(ctx context.Context, opts ...utils.DBOption) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released int64
	for _, rule := range r.rules {
		if rule.ExecStatus == models.ExecStatusInProgress {
			rule.ExecStatus = models.ExecStatusIdle
			released++
		}
	}
	return released, nil
}

type fakeHistoryRepo struct {
	mu   sync.Mutex
	rows map[uint]*models.RelistHistoryEntity
	next uint
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{rows: make(map[uint]*models.RelistHistoryEntity)}
}

func (r *fakeHistoryRepo) Create(ctx context.Context, history *models.RelistHistoryEntity, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	history.ID = r.next
	r.rows[history.ID] = history
	return nil
}

func (r *fakeHistoryRepo) UpdateOutcome(ctx context.Context, historyID uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[historyID]
	if !ok || row.CompletedAt.Valid {
		return nil
	}
	if v, ok := fields["status"]; ok {
		row.Status = v.(models.RunStatus)
	}
	if v, ok := fields["new_listing_id"]; ok {
		row.NewListingID = v.(string)
	}
	if v, ok := fields["error_message"]; ok {
		row.ErrorMessage = v.(sql.NullString)
	}
	if v, ok := fields["skip_reason"]; ok {
		row.SkipReason = v.(sql.NullString)
	}
	if v, ok := fields["checks_failed"]; ok {
		row.ChecksFailed = v.(pq.StringArray)
	}
	if v, ok := fields["new_price"]; ok {
		row.NewPrice = v.(decimal.NullDecimal)
	}
	if v, ok := fields["new_title"]; ok {
		row.NewTitle = v.(sql.NullString)
	}
	if v, ok := fields["withdraw_response"]; ok {
		row.WithdrawResponse = v.(datatypes.JSON)
	}
	return nil
}

func (r *fakeHistoryRepo) MarkCompleted(ctx context.Context, historyID uint, completedAt time.Time, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[historyID]
	if !ok || row.CompletedAt.Valid {
		return nil
	}
	row.CompletedAt.Time = completedAt
	row.CompletedAt.Valid = true
	return nil
}

func (r *fakeHistoryRepo) Get(ctx context.Context, param *models.GetRelistHistoryParam, opts ...utils.DBOption) ([]models.RelistHistoryEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RelistHistoryEntity
	for _, row := range r.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (r *fakeHistoryRepo) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.RelistHistoryEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (r *fakeHistoryRepo) onlyRow() *models.RelistHistoryEntity {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		return row
	}
	return nil
}

type fakeListingAPI struct {
	mu            sync.Mutex
	withdrawErr   error
	updateErr     error
	publishErr    error
	withdrawCalls int
	updateCalls   int
	publishCalls  int
	lastChanges   marketplace.ListingChanges
	newListingID  string
}

func (f *fakeListingAPI) Withdraw(ctx context.Context, userID uint, offerID string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawCalls++
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	return json.RawMessage(`{"withdrawn":true}`), nil
}

func (f *fakeListingAPI) Update(ctx context.Context, userID uint, offerID string, changes marketplace.ListingChanges) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastChanges = changes
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return json.RawMessage(`{"updated":true}`), nil
}

func (f *fakeListingAPI) Publish(ctx context.Context, userID uint, offerID string) (*marketplace.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishCalls++
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	id := f.newListingID
	if id == "" {
		id = "listing-new"
	}
	return &marketplace.PublishResult{ListingID: id, Raw: json.RawMessage(`{"listingId":"` + id + `"}`)}, nil
}

type fakeInventory struct {
	listing    *models.ListingEntity
	quantity   int
	openReturn bool
	lastOrder  *time.Time
	duplicated bool
	failWith   error
}

func (f *fakeInventory) CurrentQuantity(ctx context.Context, userID uint, sku string) (int, error) {
	return f.quantity, f.failWith
}

func (f *fakeInventory) GetListingByOfferID(ctx context.Context, userID uint, offerID string) (*models.ListingEntity, error) {
	return f.listing, nil
}

func (f *fakeInventory) HasOpenReturn(ctx context.Context, userID uint, sku string) (bool, error) {
	return f.openReturn, f.failWith
}

func (f *fakeInventory) LastOrderTime(ctx context.Context, userID uint, sku string) (*time.Time, error) {
	return f.lastOrder, f.failWith
}

func (f *fakeInventory) IsSKUDuplicatedActive(ctx context.Context, userID uint, sku string, excludeOfferID string) (bool, error) {
	return f.duplicated, f.failWith
}

var errMarketplaceDown = errors.New("marketplace unavailable")
