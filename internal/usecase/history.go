package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/grovia/internal/logging"
	"github.com/example/grovia/internal/repository"
)

const (
	historyDetailTTL   = 5 * time.Minute
	commonDiseaseLimit = 5
	defaultPageSize    = 10
	maxPageSize        = 100
)

// HistoryStore is the persistence surface used by HistoryUseCase.
type HistoryStore interface {
	List(ctx context.Context, userID string, opts repository.ListOptions) ([]repository.DetectionHistory, int64, error)
	FindByID(ctx context.Context, userID string, id uint) (*repository.DetectionHistory, error)
	Delete(ctx context.Context, userID string, id uint) error
	Count(ctx context.Context, userID string) (int64, error)
	CommonDiseases(ctx context.Context, userID string, limit int) ([]repository.DiseaseCount, error)
}

// HistoryQuery selects one page of history. Timezone is the caller's
// X-Timezone header, possibly empty.
type HistoryQuery struct {
	Page     int
	Limit    int
	Sort     string
	Timezone string
}

// normalize fills absent fields with page 1, limit 10 and newest first, and
// rejects values outside the accepted ranges.
func (q HistoryQuery) normalize() (HistoryQuery, error) {
	switch {
	case q.Page == 0:
		q.Page = 1
	case q.Page < 0:
		return q, fmt.Errorf("%w: page must be at least 1", ErrInvalidHistoryQuery)
	}
	switch {
	case q.Limit == 0:
		q.Limit = defaultPageSize
	case q.Limit < 0 || q.Limit > maxPageSize:
		return q, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidHistoryQuery, maxPageSize)
	}
	switch q.Sort {
	case "":
		q.Sort = repository.SortNewest
	case repository.SortNewest, repository.SortOldest:
	default:
		return q, fmt.Errorf("%w: sort must be newest or oldest", ErrInvalidHistoryQuery)
	}
	return q, nil
}

// HistoryItem is one row of the history listing.
type HistoryItem struct {
	ID                uint    `json:"id"`
	HistoryID         uint    `json:"history_id"`
	DiseaseID         string  `json:"disease_id"`
	DiseaseName       string  `json:"disease_name"`
	ScientificName    string  `json:"scientific_name"`
	Confidence        float64 `json:"confidence"`
	ConfidencePercent float64 `json:"confidence_percent"`
	IsHealthy         bool    `json:"is_healthy"`
	ImageURL          string  `json:"image_url"`
	ImagePath         string  `json:"image_path"`
	DetectedAt        string  `json:"detected_at"`
	Date              string  `json:"date"`
	Time              string  `json:"time"`
}

// Pagination describes the position of a page within the full listing.
type Pagination struct {
	CurrentPage  int   `json:"current_page"`
	TotalPages   int   `json:"total_pages"`
	TotalItems   int64 `json:"total_items"`
	ItemsPerPage int   `json:"items_per_page"`
	HasNext      bool  `json:"has_next"`
	HasPrev      bool  `json:"has_prev"`
}

// HistoryPage is one page of the listing.
type HistoryPage struct {
	Items      []HistoryItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// HistoryDetail is a single history record rendered for its owner.
type HistoryDetail struct {
	HistoryID         uint     `json:"history_id"`
	DiseaseID         string   `json:"disease_id"`
	DiseaseName       string   `json:"disease_name"`
	ScientificName    string   `json:"scientific_name"`
	Confidence        float64  `json:"confidence"`
	ConfidencePercent float64  `json:"confidence_percent"`
	Severity          string   `json:"severity"`
	IsHealthy         bool     `json:"is_healthy"`
	ImageURL          string   `json:"image_url"`
	ImagePath         string   `json:"image_path"`
	Description       string   `json:"description"`
	Symptoms          []string `json:"symptoms"`
	Recommendations   []string `json:"recommendations"`
	Prevention        []string `json:"prevention"`
	DetectedAt        string   `json:"detected_at"`
}

// HistoryStats summarizes a user's detections.
type HistoryStats struct {
	UserID          string                    `json:"user_id"`
	TotalDetections int64                     `json:"total_detections"`
	CommonDiseases  []repository.DiseaseCount `json:"common_diseases"`
}

// HistoryUseCase serves the history endpoints.
type HistoryUseCase struct {
	store         HistoryStore
	timezones     *TimezoneResolver
	publicBaseURL string
	logger        *zap.Logger
	cacheRetry
}

// NewHistoryUseCase constructs a new use case instance. cache may be nil.
func NewHistoryUseCase(store HistoryStore, cache Cache, timezones *TimezoneResolver, publicBaseURL string, logger *zap.Logger) *HistoryUseCase {
	logger = logger.Named("history_usecase")
	return &HistoryUseCase{
		store:         store,
		timezones:     timezones,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
		cacheRetry:    newCacheRetry(cache, logger),
	}
}

// List returns one page of the user's history.
func (uc *HistoryUseCase) List(ctx context.Context, userID string, q HistoryQuery) (*HistoryPage, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}

	records, total, err := uc.store.List(ctx, userID, repository.ListOptions{Page: q.Page, Limit: q.Limit, Sort: q.Sort})
	if err != nil {
		return nil, err
	}

	loc := uc.timezones.Resolve(ctx, userID, q.Timezone)
	items := make([]HistoryItem, 0, len(records))
	for _, rec := range records {
		local := rec.DetectedAt.In(loc)
		items = append(items, HistoryItem{
			ID:                rec.ID,
			HistoryID:         rec.ID,
			DiseaseID:         rec.DiseaseID,
			DiseaseName:       rec.DiseaseName,
			ScientificName:    rec.ScientificName,
			Confidence:        roundTo(rec.Confidence, 4),
			ConfidencePercent: roundTo(rec.Confidence*100, 2),
			IsHealthy:         rec.IsHealthy,
			ImageURL:          ResolveImageURL(uc.publicBaseURL, rec.ImageURL),
			ImagePath:         rec.ImageURL,
			DetectedAt:        local.Format(time.RFC3339),
			Date:              local.Format("2006-01-02"),
			Time:              local.Format("15:04:05"),
		})
	}

	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return &HistoryPage{
		Items: items,
		Pagination: Pagination{
			CurrentPage:  q.Page,
			TotalPages:   totalPages,
			TotalItems:   total,
			ItemsPerPage: q.Limit,
			HasNext:      q.Page < totalPages,
			HasPrev:      q.Page > 1,
		},
	}, nil
}

// Detail returns one of the user's records. Reads are served from cache when
// possible.
func (uc *HistoryUseCase) Detail(ctx context.Context, userID string, id uint, timezone string) (*HistoryDetail, error) {
	requestID := logging.RequestIDFromContext(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.history_detail", requestID)
	key := historyCacheKey(userID, id)

	var record *repository.DetectionHistory
	if uc.cache != nil {
		cached, err := uc.withCacheGet(ctx, requestID, "cache.get.history", key)
		switch {
		case err == nil:
			var snapshot repository.DetectionHistory
			if err := json.Unmarshal([]byte(cached), &snapshot); err != nil {
				opLogger.Warn("failed to decode cached history", zap.Error(err))
			} else {
				record = &snapshot
			}
		case !errors.Is(err, ErrCacheMiss):
			opLogger.Warn("failed to read cache", zap.Error(err))
		}
	}

	if record == nil {
		found, err := uc.store.FindByID(ctx, userID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrHistoryNotFound
		}
		if err != nil {
			return nil, err
		}
		record = found
		uc.storeSnapshot(ctx, requestID, key, record)
	}

	loc := uc.timezones.Resolve(ctx, userID, timezone)
	return &HistoryDetail{
		HistoryID:         record.ID,
		DiseaseID:         record.DiseaseID,
		DiseaseName:       record.DiseaseName,
		ScientificName:    record.ScientificName,
		Confidence:        roundTo(record.Confidence, 4),
		ConfidencePercent: roundTo(record.Confidence*100, 2),
		Severity:          record.Severity,
		IsHealthy:         record.IsHealthy,
		ImageURL:          ResolveImageURL(uc.publicBaseURL, record.ImageURL),
		ImagePath:         record.ImageURL,
		Description:       record.Description,
		Symptoms:          nonNil(record.Symptoms),
		Recommendations:   nonNil(record.Recommendations),
		Prevention:        nonNil(record.Prevention),
		DetectedAt:        record.DetectedAt.In(loc).Format(time.RFC3339),
	}, nil
}

// Delete removes one of the user's records and drops its cache entry.
func (uc *HistoryUseCase) Delete(ctx context.Context, userID string, id uint) error {
	if err := uc.store.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrHistoryNotFound
		}
		return err
	}

	if uc.cache != nil {
		requestID := logging.RequestIDFromContext(ctx)
		key := historyCacheKey(userID, id)
		if err := uc.withCacheRetry(ctx, requestID, "cache.delete.history", func() error {
			return uc.cache.Delete(ctx, key)
		}); err != nil {
			logging.WithOperation(uc.logger, "usecase.history_delete", requestID).Warn("failed to invalidate cache", zap.Error(err))
		}
	}
	return nil
}

// Stats returns the user's detection count and most common diseases.
func (uc *HistoryUseCase) Stats(ctx context.Context, userID string) (*HistoryStats, error) {
	total, err := uc.store.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	common, err := uc.store.CommonDiseases(ctx, userID, commonDiseaseLimit)
	if err != nil {
		return nil, err
	}
	if common == nil {
		common = []repository.DiseaseCount{}
	}
	return &HistoryStats{UserID: userID, TotalDetections: total, CommonDiseases: common}, nil
}

func (uc *HistoryUseCase) storeSnapshot(ctx context.Context, requestID, key string, record *repository.DetectionHistory) {
	if uc.cache == nil {
		return
	}
	opLogger := logging.WithOperation(uc.logger, "usecase.history_detail", requestID)
	serialized, err := json.Marshal(record)
	if err != nil {
		opLogger.Warn("failed to serialize history", zap.Error(err))
		return
	}
	if err := uc.withCacheRetry(ctx, requestID, "cache.set.history", func() error {
		return uc.cache.Set(ctx, key, string(serialized), historyDetailTTL)
	}); err != nil {
		opLogger.Warn("failed to cache history", zap.Error(err))
	}
}

// ResolveImageURL expands a stored local reference into an absolute URL.
// Remote URLs are returned unchanged.
func ResolveImageURL(publicBaseURL, stored string) string {
	if strings.HasPrefix(stored, "http://") || strings.HasPrefix(stored, "https://") {
		return stored
	}
	name := strings.TrimLeft(stored, "/")
	name = strings.TrimPrefix(name, "uploads\\")
	name = strings.TrimPrefix(name, "uploads/")
	return strings.TrimRight(publicBaseURL, "/") + "/uploads/" + name
}

func historyCacheKey(userID string, id uint) string {
	return fmt.Sprintf("history:%s:%d", userID, id)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
