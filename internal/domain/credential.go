package domain

import "time"

const ProviderCredential = "credential"

// Credential ties a user to a verifiable secret for one provider.
type Credential struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       string    `gorm:"size:36;not null;uniqueIndex:idx_credentials_user_provider" json:"user_id"`
	ProviderID   string    `gorm:"size:32;not null;uniqueIndex:idx_credentials_user_provider" json:"provider_id"`
	PasswordHash string    `gorm:"size:1024;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Credential) TableName() string { return "credentials" }
