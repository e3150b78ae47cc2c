package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

type RelistRuleRepository interface {
	Get(ctx context.Context, param *models.GetRelistRuleParam, opts ...utils.DBOption) ([]models.RelistRuleEntity, error)
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.RelistRuleEntity, error)
	Create(ctx context.Context, rule *models.RelistRuleEntity, opts ...utils.DBOption) error
	Update(ctx context.Context, rule *models.RelistRuleEntity, opts ...utils.DBOption) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error
	Delete(ctx context.Context, id uint, userID uint, opts ...utils.DBOption) error
	GetDueRules(ctx context.Context, param *models.GetDueRulesParam, opts ...utils.DBOption) ([]models.RelistRuleEntity, error)
	Claim(ctx context.Context, id uint, opts ...utils.DBOption) (bool, error)
	Release(ctx context.Context, id uint, opts ...utils.DBOption) error
	ReleaseAll(ctx context.Context, opts ...utils.DBOption) (int64, error)
}

type relistRuleRepository struct {
	db *gorm.DB
}

func NewRelistRuleRepository(db *gorm.DB) RelistRuleRepository {
	return &relistRuleRepository{db: db}
}

func (r *relistRuleRepository) Get(ctx context.Context, param *models.GetRelistRuleParam, opts ...utils.DBOption) ([]models.RelistRuleEntity, error) {
	var rules []models.RelistRuleEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Model(&models.RelistRuleEntity{})
	if len(param.IDs) > 0 {
		db = db.Where("id IN ?", param.IDs)
	}
	if param.UserID != nil {
		db = db.Where("user_id = ?", *param.UserID)
	}
	if len(param.SKUs) > 0 {
		db = db.Where("sku IN ?", param.SKUs)
	}
	if param.Mode != nil {
		db = db.Where("mode = ?", *param.Mode)
	}
	if param.Enabled != nil {
		db = db.Where("enabled = ?", *param.Enabled)
	}
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}
	result := db.Order("id ASC").Find(&rules)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return rules, nil
}

func (r *relistRuleRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.RelistRuleEntity, error) {
	var rule models.RelistRuleEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.First(&rule, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &rule, nil
}

func (r *relistRuleRepository) Create(ctx context.Context, rule *models.RelistRuleEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Create(rule).Error
}

func (r *relistRuleRepository) Update(ctx context.Context, rule *models.RelistRuleEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Save(rule).Error
}

func (r *relistRuleRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&models.RelistRuleEntity{}).Where("id = ?", id).Updates(fields).Error
}

// Delete removes a rule owned by the given user. History rows go with it via
// the ON DELETE CASCADE constraint.
func (r *relistRuleRepository) Delete(ctx context.Context, id uint, userID uint, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.RelistRuleEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrRuleNotFound
	}
	return nil
}

// GetDueRules selects enabled rules that are due and not already claimed by a
// previous tick: auto rules by next_run_at, manual rules by their trigger flag.
func (r *relistRuleRepository) GetDueRules(ctx context.Context, param *models.GetDueRulesParam, opts ...utils.DBOption) ([]models.RelistRuleEntity, error) {
	var rules []models.RelistRuleEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Model(&models.RelistRuleEntity{}).
		Where("enabled = ?", true).
		Where("exec_status <> ?", models.ExecStatusInProgress).
		Where(
			r.db.Where("mode = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", models.ModeAuto, param.Now).
				Or("mode = ? AND (manual_config->>'manual_trigger_requested')::boolean = true", models.ModeManual),
		)
	if param.Limit > 0 {
		db = db.Limit(param.Limit)
	}
	result := db.Order("next_run_at ASC NULLS LAST").Find(&rules)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return rules, nil
}

// Claim atomically flips a rule from idle to in_progress. Returns false when
// another tick already holds the claim or the rule was disabled meanwhile.
func (r *relistRuleRepository) Claim(ctx context.Context, id uint, opts ...utils.DBOption) (bool, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&models.RelistRuleEntity{}).
		Where("id = ? AND enabled = ? AND exec_status <> ?", id, true, models.ExecStatusInProgress).
		Updates(map[string]interface{}{
			"exec_status": models.ExecStatusInProgress,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Release clears the claim unconditionally. Called in a deferred cleanup so a
// failed run never leaves the rule stuck in_progress.
func (r *relistRuleRepository) Release(ctx context.Context, id uint, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&models.RelistRuleEntity{}).
		Where("id = ?", id).
		Update("exec_status", models.ExecStatusIdle).Error
}

// ReleaseAll clears every claim. Called once at startup: a crash or shutdown
// during an attempt must not leave rules stuck in_progress forever.
func (r *relistRuleRepository) ReleaseAll(ctx context.Context, opts ...utils.DBOption) (int64, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&models.RelistRuleEntity{}).
		Where("exec_status = ?", models.ExecStatusInProgress).
		Update("exec_status", models.ExecStatusIdle)
	return result.RowsAffected, result.Error
}
