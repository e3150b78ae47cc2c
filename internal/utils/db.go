package utils

import "gorm.io/gorm"

// DBOption lets callers thread an open transaction (or any query modifier)
// through repository methods.
type DBOption func(*gorm.DB) *gorm.DB

func WithTx(tx *gorm.DB) DBOption {
	return func(db *gorm.DB) *gorm.DB {
		if tx != nil {
			return tx
		}
		return db
	}
}

func ApplyOptions(db *gorm.DB, opts ...DBOption) *gorm.DB {
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}
