package helpers

import (
	"context"

	"gorm.io/gorm"
)

// WrapTxAndCommit runs fn inside tx, or inside a new transaction when tx is nil.
// A transaction it opened is rolled back on error and committed otherwise.
func WrapTxAndCommit[T any](ctx context.Context, db *gorm.DB, tx *gorm.DB, fn func(*gorm.DB) (T, error)) (T, error) {
	if tx != nil {
		return fn(tx)
	}

	tx = db.WithContext(ctx).Begin()
	if tx.Error != nil {
		var zero T
		return zero, tx.Error
	}

	res, err := fn(tx)
	if err != nil {
		tx.Rollback()
		return res, err
	}
	if err := tx.Commit().Error; err != nil {
		return res, err
	}
	return res, nil
}
