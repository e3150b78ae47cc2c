package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.UserEntity, error)
	GetRefreshToken(ctx context.Context, userID uint) (string, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.UserEntity, error) {
	var user models.UserEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)

	result := tx.First(&user, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}

		return nil, result.Error
	}

	return &user, nil
}

func (r *userRepository) GetRefreshToken(ctx context.Context, userID uint) (string, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.MarketplaceRefreshToken, nil
}
