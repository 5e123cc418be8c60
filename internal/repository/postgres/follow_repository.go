package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"capitol-watch/internal/domain"
	"capitol-watch/internal/repository"
)

type FollowRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) repository.FollowRepository {
	return &FollowRepository{db: db}
}

func (r *FollowRepository) Init(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&followModel{}); err != nil {
		return fmt.Errorf("migrate follows: %w", err)
	}
	return nil
}

func (r *FollowRepository) Add(ctx context.Context, username, congressman string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner userModel
		if err := tx.Select("id").Where("username = ?", username).First(&owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrUserNotFound
			}
			return fmt.Errorf("lookup follow owner: %w", err)
		}

		follow := followModel{
			Username:    username,
			Congressman: congressman,
			CreatedAt:   time.Now().UTC(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}, {Name: "congressman"}},
			DoNothing: true,
		}).Create(&follow).Error
		if err != nil {
			return fmt.Errorf("insert follow: %w", err)
		}
		return nil
	})
}

func (r *FollowRepository) Remove(ctx context.Context, username, congressman string) error {
	res := r.db.WithContext(ctx).
		Where("username = ? AND congressman = ?", username, congressman).
		Delete(&followModel{})
	if res.Error != nil {
		return fmt.Errorf("delete follow: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrFollowNotFound
	}
	return nil
}

func (r *FollowRepository) ListByUser(ctx context.Context, username string) ([]domain.Follow, error) {
	var models []followModel
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query follows: %w", err)
	}

	follows := make([]domain.Follow, 0, len(models))
	for _, m := range models {
		follows = append(follows, m.toDomain())
	}
	return follows, nil
}
