package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTx runs fn inside one transaction scoped to ctx. The transaction is
// committed when fn returns nil and rolled back on error or panic.
func WithTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fmt.Errorf("with tx: nil database handle")
	}
	return db.WithContext(ctx).Transaction(fn)
}
