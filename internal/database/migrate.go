package database

import (
	"github.com/sandeepkv93/taskgate/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Credential{},
		&domain.Session{},
	)
}
