package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/grovia/internal/logging"
)

// Sort orders accepted by HistoryRepository.List.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
)

// ListOptions controls history pagination. Page is 1-based.
type ListOptions struct {
	Page  int
	Limit int
	Sort  string
}

// Offset returns the number of rows skipped for the page.
func (o ListOptions) Offset() int {
	if o.Page < 1 {
		return 0
	}
	return (o.Page - 1) * o.Limit
}

// HistoryRepository persists detection history rows.
type HistoryRepository struct {
	db *gorm.DB
	retryPolicy
}

// NewHistoryRepository creates a new repository instance.
func NewHistoryRepository(db *gorm.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, retryPolicy: defaultRetryPolicy(logger.Named("history_repository"))}
}

// Create inserts record, provisioning the owning user row when missing.
func (r *HistoryRepository) Create(ctx context.Context, record *DetectionHistory) error {
	requestID := logging.RequestIDFromContext(ctx)
	return r.executeWithRetry(ctx, "repository.history.create", requestID, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			owner := User{ID: record.UserID, IsActive: true}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&owner).Error; err != nil {
				return err
			}
			return tx.Create(record).Error
		})
	})
}

// List returns one page of the user's history and the user's total row count.
func (r *HistoryRepository) List(ctx context.Context, userID string, opts ListOptions) ([]DetectionHistory, int64, error) {
	requestID := logging.RequestIDFromContext(ctx)
	order := "detected_at DESC, id DESC"
	if opts.Sort == SortOldest {
		order = "detected_at ASC, id ASC"
	}

	var (
		items []DetectionHistory
		total int64
	)
	err := r.executeWithRetry(ctx, "repository.history.list", requestID, func() error {
		base := r.db.WithContext(ctx).Model(&DetectionHistory{}).Where("user_id = ?", userID).Session(&gorm.Session{})
		if err := base.Count(&total).Error; err != nil {
			return err
		}
		items = items[:0]
		return base.Order(order).Offset(opts.Offset()).Limit(opts.Limit).Find(&items).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// FindByID returns the user's record with the given id.
func (r *HistoryRepository) FindByID(ctx context.Context, userID string, id uint) (*DetectionHistory, error) {
	var record DetectionHistory
	err := r.executeWithRetry(ctx, "repository.history.find", logging.RequestIDFromContext(ctx), func() error {
		return r.db.WithContext(ctx).First(&record, "id = ? AND user_id = ?", id, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete removes the user's record. Records owned by other users are reported
// as not found.
func (r *HistoryRepository) Delete(ctx context.Context, userID string, id uint) error {
	return r.executeWithRetry(ctx, "repository.history.delete", logging.RequestIDFromContext(ctx), func() error {
		res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&DetectionHistory{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Count returns the number of records owned by the user.
func (r *HistoryRepository) Count(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.executeWithRetry(ctx, "repository.history.count", logging.RequestIDFromContext(ctx), func() error {
		return r.db.WithContext(ctx).Model(&DetectionHistory{}).Where("user_id = ?", userID).Count(&total).Error
	})
	return total, err
}

// CommonDiseases returns the user's most frequently detected diseases.
func (r *HistoryRepository) CommonDiseases(ctx context.Context, userID string, limit int) ([]DiseaseCount, error) {
	var rows []DiseaseCount
	err := r.executeWithRetry(ctx, "repository.history.common_diseases", logging.RequestIDFromContext(ctx), func() error {
		rows = rows[:0]
		return r.db.WithContext(ctx).Model(&DetectionHistory{}).
			Select("disease_id, MAX(disease_name) AS disease_name, COUNT(*) AS count").
			Where("user_id = ?", userID).
			Group("disease_id").
			Order("count DESC, disease_id ASC").
			Limit(limit).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
