package repository

//go:generate mockgen -destination=gomock/mock_repositories.go -package=gomock github.com/sandeepkv93/taskgate/internal/repository UserRepository,CredentialRepository,SessionRepository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDuplicate          = errors.New("duplicate record")
)

func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
