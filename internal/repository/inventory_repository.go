package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

// InventoryRepository answers the read-only questions the safety check
// pipeline asks about listings, orders and returns.
type InventoryRepository interface {
	GetListingByOfferID(ctx context.Context, userID uint, offerID string, opts ...utils.DBOption) (*models.ListingEntity, error)
	CurrentQuantity(ctx context.Context, userID uint, sku string, opts ...utils.DBOption) (int, error)
	HasOpenReturn(ctx context.Context, userID uint, sku string, opts ...utils.DBOption) (bool, error)
	LastOrderTime(ctx context.Context, userID uint, sku string, opts ...utils.DBOption) (*time.Time, error)
	CountActiveListingsBySKU(ctx context.Context, userID uint, sku string, excludeOfferID string, opts ...utils.DBOption) (int64, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) GetListingByOfferID(ctx context.Context, userID uint, offerID string, opts ...utils.DBOption) (*models.ListingEntity, error) {
	var listing models.ListingEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Where("user_id = ? AND offer_id = ?", userID, offerID).First(&listing)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &listing, nil
}

func (r *inventoryRepository) CurrentQuantity(ctx context.Context, userID uint, sku string, opts ...utils.DBOption) (int, error) {
	var listing models.ListingEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Where("user_id = ? AND sku = ? AND is_active = ?", userID, sku, true).
		Order("updated_at DESC").First(&listing)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, result.Error
	}
	return listing.Quantity, nil
}

func (r *inventoryRepository) HasOpenReturn(ctx context.Context, userID uint, sku string, opts ...utils.DBOption) (bool, error) {
	var count int64
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&models.ReturnCaseEntity{}).
		Where("user_id = ? AND sku = ? AND closed_at IS NULL", userID, sku).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (r *inventoryRepository) LastOrderTime(ctx context.Context, userID uint, sku string, opts ...utils.DBOption) (*time.Time, error) {
	var order models.OrderEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Where("user_id = ? AND sku = ? AND completed_at IS NOT NULL", userID, sku).
		Order("completed_at DESC").First(&order)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return order.CompletedAt, nil
}

func (r *inventoryRepository) CountActiveListingsBySKU(ctx context.Context, userID uint, sku string, excludeOfferID string, opts ...utils.DBOption) (int64, error) {
	var count int64
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&models.ListingEntity{}).
		Where("user_id = ? AND sku = ? AND is_active = ? AND offer_id <> ?", userID, sku, true, excludeOfferID).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}
