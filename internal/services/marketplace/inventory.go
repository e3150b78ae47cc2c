package marketplace

import (
	"context"
	"time"

	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/repository"
)

// inventoryQuery adapts the inventory repository to the InventoryQuery
// interface the safety pipeline consumes.
type inventoryQuery struct {
	repo repository.InventoryRepository
}

func NewInventoryQuery(repo repository.InventoryRepository) InventoryQuery {
	return &inventoryQuery{repo: repo}
}

func (q *inventoryQuery) CurrentQuantity(ctx context.Context, userID uint, sku string) (int, error) {
	return q.repo.CurrentQuantity(ctx, userID, sku)
}

func (q *inventoryQuery) GetListingByOfferID(ctx context.Context, userID uint, offerID string) (*models.ListingEntity, error) {
	return q.repo.GetListingByOfferID(ctx, userID, offerID)
}

func (q *inventoryQuery) HasOpenReturn(ctx context.Context, userID uint, sku string) (bool, error) {
	return q.repo.HasOpenReturn(ctx, userID, sku)
}

func (q *inventoryQuery) LastOrderTime(ctx context.Context, userID uint, sku string) (*time.Time, error) {
	return q.repo.LastOrderTime(ctx, userID, sku)
}

func (q *inventoryQuery) IsSKUDuplicatedActive(ctx context.Context, userID uint, sku string, excludeOfferID string) (bool, error) {
	count, err := q.repo.CountActiveListingsBySKU(ctx, userID, sku, excludeOfferID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
