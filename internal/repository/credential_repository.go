package repository

import (
	"context"

	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/observability"

	"gorm.io/gorm"
)

type CredentialRepository interface {
	Create(ctx context.Context, credential *domain.Credential) error
	FindByUserAndProvider(ctx context.Context, userID, providerID string) (*domain.Credential, error)
}

type GormCredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &GormCredentialRepository{db: db}
}

func (r *GormCredentialRepository) Create(ctx context.Context, credential *domain.Credential) error {
	err := r.db.WithContext(ctx).Create(credential).Error
	observability.RecordRepositoryOperation(ctx, "credential", "create", outcome(err))
	return translate(err, ErrCredentialNotFound)
}

func (r *GormCredentialRepository) FindByUserAndProvider(ctx context.Context, userID, providerID string) (*domain.Credential, error) {
	var c domain.Credential
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, providerID).
		First(&c).Error
	observability.RecordRepositoryOperation(ctx, "credential", "find_by_user_provider", outcome(err))
	if err != nil {
		return nil, translate(err, ErrCredentialNotFound)
	}
	return &c, nil
}
