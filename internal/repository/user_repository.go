package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/grovia/internal/logging"
)

// UserRepository reads user profile settings.
type UserRepository struct {
	db *gorm.DB
	retryPolicy
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, retryPolicy: defaultRetryPolicy(logger.Named("user_repository"))}
}

// Timezone returns the IANA zone stored on the user's profile. A missing user
// yields ErrNotFound.
func (r *UserRepository) Timezone(ctx context.Context, userID string) (string, error) {
	var user User
	err := r.executeWithRetry(ctx, "repository.user.timezone", logging.RequestIDFromContext(ctx), func() error {
		return r.db.WithContext(ctx).Select("id", "timezone").First(&user, "id = ?", userID).Error
	})
	if err != nil {
		return "", err
	}
	return user.Timezone, nil
}

// Delete removes the user and, through the foreign key, their history.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	return r.executeWithRetry(ctx, "repository.user.delete", logging.RequestIDFromContext(ctx), func() error {
		res := r.db.WithContext(ctx).Delete(&User{}, "id = ?", userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Save creates or updates a user row.
func (r *UserRepository) Save(ctx context.Context, user *User) error {
	return r.executeWithRetry(ctx, "repository.user.save", logging.RequestIDFromContext(ctx), func() error {
		return r.db.WithContext(ctx).Save(user).Error
	})
}
