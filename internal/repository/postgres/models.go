package postgres

import (
	"time"

	"capitol-watch/internal/domain"
)

type userModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

type followModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Username    string    `gorm:"not null;uniqueIndex:idx_follows_user_congressman;index"`
	Congressman string    `gorm:"not null;uniqueIndex:idx_follows_user_congressman"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (followModel) TableName() string { return "follows" }

func (m userModel) toDomain() *domain.User {
	return &domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (m followModel) toDomain() domain.Follow {
	return domain.Follow{
		ID:          m.ID,
		Username:    m.Username,
		Congressman: m.Congressman,
		CreatedAt:   m.CreatedAt,
	}
}
