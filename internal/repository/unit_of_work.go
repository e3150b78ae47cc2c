package repository

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWork runs a closure inside a single database transaction. Repository
// calls made inside the closure must pass utils.WithTx(tx) so history rows and
// rule counter updates commit or roll back together.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type unitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Execute(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return u.db.WithContext(ctx).Transaction(fn)
}
