package persistence

import (
	"context"
	"errors"

	"github.com/rentals/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sweepBatchMax caps cursor queries used by the background sweeps
const sweepBatchMax = 500

// forUpdate adds SELECT ... FOR UPDATE. Dialects without row locks drop it.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// notFound maps gorm's missing-row error onto the domain sentinel
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// insertOnce inserts model unless a unique constraint already holds the
// row. ON CONFLICT DO NOTHING keeps the surrounding postgres transaction
// usable, which a failed INSERT would not.
func insertOnce(ctx context.Context, db *gorm.DB, model any) error {
	result := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyExists
	}
	return nil
}

// updateVersioned writes every column of model where the stored version is
// still expected. The caller sets model's version to expected+1 first.
func updateVersioned(ctx context.Context, db *gorm.DB, model any, expected int) error {
	result := db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "created_at").
		Where("version = ?", expected).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func clampBatch(limit int) int {
	if limit <= 0 || limit > sweepBatchMax {
		return sweepBatchMax
	}
	return limit
}
