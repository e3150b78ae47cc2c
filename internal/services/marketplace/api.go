package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noakmilo/qventory-relist/internal/models"
)

var (
	ErrTokenUnavailable = errors.New("no valid marketplace access token for user")
	ErrCallFailed       = errors.New("marketplace call failed")
)

// TokenProvider hands out a valid marketplace access token for a seller
// account, refreshing it when the cached one is expired. Invalidate drops a
// cached token the marketplace rejected early.
type TokenProvider interface {
	GetValidAccessToken(ctx context.Context, userID uint) (string, error)
	Invalidate(ctx context.Context, userID uint) error
}

// ListingChanges is the subset of listing fields a relist may rewrite between
// withdraw and publish.
type ListingChanges struct {
	Price       *decimal.Decimal `json:"price,omitempty"`
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Condition   *string          `json:"condition,omitempty"`
}

// PublishResult carries the new listing identity the marketplace assigns on
// publish, plus the raw response for the history row.
type PublishResult struct {
	ListingID string
	Raw       json.RawMessage
}

// ListingAPI is the withdraw/update/publish surface of the marketplace.
// Calls are side-effecting and must not be repeated within one attempt.
type ListingAPI interface {
	Withdraw(ctx context.Context, userID uint, offerID string) (json.RawMessage, error)
	Update(ctx context.Context, userID uint, offerID string, changes ListingChanges) (json.RawMessage, error)
	Publish(ctx context.Context, userID uint, offerID string) (*PublishResult, error)
}

// InventoryQuery answers the safety check pipeline's questions about current
// marketplace state.
type InventoryQuery interface {
	CurrentQuantity(ctx context.Context, userID uint, sku string) (int, error)
	GetListingByOfferID(ctx context.Context, userID uint, offerID string) (*models.ListingEntity, error)
	HasOpenReturn(ctx context.Context, userID uint, sku string) (bool, error)
	LastOrderTime(ctx context.Context, userID uint, sku string) (*time.Time, error)
	IsSKUDuplicatedActive(ctx context.Context, userID uint, sku string, excludeOfferID string) (bool, error)
}
