package repository

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/grovia/internal/logging"
)

// DiseaseRepository reads the disease knowledge base.
type DiseaseRepository struct {
	db *gorm.DB
	retryPolicy
}

// NewDiseaseRepository creates a new repository instance.
func NewDiseaseRepository(db *gorm.DB, logger *zap.Logger) *DiseaseRepository {
	return &DiseaseRepository{db: db, retryPolicy: defaultRetryPolicy(logger.Named("disease_repository"))}
}

// List returns diseases ordered by name. A non-empty search matches name or
// scientific name case-insensitively; a non-empty category filters exactly.
func (r *DiseaseRepository) List(ctx context.Context, search, category string) ([]Disease, error) {
	var diseases []Disease
	err := r.executeWithRetry(ctx, "repository.disease.list", logging.RequestIDFromContext(ctx), func() error {
		q := r.db.WithContext(ctx).Model(&Disease{})
		if term := strings.TrimSpace(search); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(scientific_name) LIKE ?", like, like)
		}
		if category != "" {
			q = q.Where("category = ?", strings.ToLower(category))
		}
		diseases = diseases[:0]
		return q.Order("name ASC").Find(&diseases).Error
	})
	if err != nil {
		return nil, err
	}
	return diseases, nil
}

// FindByDiseaseID returns the entry with the given slug identifier.
func (r *DiseaseRepository) FindByDiseaseID(ctx context.Context, diseaseID string) (*Disease, error) {
	var disease Disease
	err := r.executeWithRetry(ctx, "repository.disease.find", logging.RequestIDFromContext(ctx), func() error {
		return r.db.WithContext(ctx).First(&disease, "disease_id = ?", diseaseID).Error
	})
	if err != nil {
		return nil, err
	}
	return &disease, nil
}

// Upsert inserts or replaces an entry keyed by DiseaseID.
func (r *DiseaseRepository) Upsert(ctx context.Context, disease *Disease) error {
	return r.executeWithRetry(ctx, "repository.disease.upsert", logging.RequestIDFromContext(ctx), func() error {
		var existing Disease
		err := r.db.WithContext(ctx).Select("id").First(&existing, "disease_id = ?", disease.DiseaseID).Error
		switch {
		case err == nil:
			disease.ID = existing.ID
			return r.db.WithContext(ctx).Save(disease).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return r.db.WithContext(ctx).Create(disease).Error
		default:
			return err
		}
	})
}
