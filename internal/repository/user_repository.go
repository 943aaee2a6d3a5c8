package repository

import (
	"context"

	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/observability"

	"gorm.io/gorm"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdateName(ctx context.Context, id, name string) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	observability.RecordRepositoryOperation(ctx, "user", "find_by_id", outcome(err))
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	return &u, nil
}

// FindByEmail is an exact, case-sensitive match.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	observability.RecordRepositoryOperation(ctx, "user", "find_by_email", outcome(err))
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	observability.RecordRepositoryOperation(ctx, "user", "create", outcome(err))
	return translate(err, ErrUserNotFound)
}

func (r *GormUserRepository) UpdateName(ctx context.Context, id, name string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("name", name)
	observability.RecordRepositoryOperation(ctx, "user", "update_name", outcome(res.Error))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func outcome(err error) string {
	switch translate(err, ErrUserNotFound) {
	case nil:
		return "success"
	case ErrUserNotFound:
		return "not_found"
	case ErrDuplicate:
		return "duplicate"
	default:
		return "error"
	}
}
