package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

type RelistHistoryRepository interface {
	Create(ctx context.Context, history *models.RelistHistoryEntity, opts ...utils.DBOption) error
	UpdateOutcome(ctx context.Context, historyID uint, fields map[string]interface{}, opts ...utils.DBOption) error
	MarkCompleted(ctx context.Context, historyID uint, completedAt time.Time, opts ...utils.DBOption) error
	Get(ctx context.Context, param *models.GetRelistHistoryParam, opts ...utils.DBOption) ([]models.RelistHistoryEntity, error)
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.RelistHistoryEntity, error)
}

type relistHistoryRepository struct {
	db *gorm.DB
}

func NewRelistHistoryRepository(db *gorm.DB) RelistHistoryRepository {
	return &relistHistoryRepository{db: db}
}

func (r *relistHistoryRepository) Create(ctx context.Context, history *models.RelistHistoryEntity, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Create(history).Error
}

// UpdateOutcome writes attempt results onto an open history row. Rows that
// already have completed_at set are immutable and never match the guard.
func (r *relistHistoryRepository) UpdateOutcome(ctx context.Context, historyID uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&models.RelistHistoryEntity{}).
		Where("id = ? AND completed_at IS NULL", historyID).
		Updates(fields).Error
}

// MarkCompleted stamps completed_at and the derived duration. It is the only
// writer of completed_at.
func (r *relistHistoryRepository) MarkCompleted(ctx context.Context, historyID uint, completedAt time.Time, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&models.RelistHistoryEntity{}).
		Where("id = ? AND completed_at IS NULL", historyID).
		Updates(map[string]interface{}{
			"completed_at":     completedAt,
			"duration_seconds": gorm.Expr("EXTRACT(EPOCH FROM (?::timestamptz - started_at))", completedAt),
		}).Error
}

func (r *relistHistoryRepository) Get(ctx context.Context, param *models.GetRelistHistoryParam, opts ...utils.DBOption) ([]models.RelistHistoryEntity, error) {
	var rows []models.RelistHistoryEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Model(&models.RelistHistoryEntity{})
	if param.RuleID != nil {
		db = db.Where("rule_id = ?", *param.RuleID)
	}
	if param.UserID != nil {
		db = db.Where("user_id = ?", *param.UserID)
	}
	if param.Status != nil {
		db = db.Where("status = ?", *param.Status)
	}
	if param.Since != nil {
		db = db.Where("started_at >= ?", *param.Since)
	}
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}
	result := db.Order("started_at DESC").Find(&rows)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return rows, nil
}

func (r *relistHistoryRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.RelistHistoryEntity, error) {
	var row models.RelistHistoryEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.First(&row, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &row, nil
}
