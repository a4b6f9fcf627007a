package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/grovia/internal/logging"
	"github.com/example/grovia/internal/repository"
)

type stubHistoryStore struct {
	records    map[uint]*repository.DetectionHistory
	listTotal  int64
	listOpts   repository.ListOptions
	findCalls  int
	deleteErr  error
	common     []repository.DiseaseCount
	countValue int64
}

func newStubHistoryStore(records ...*repository.DetectionHistory) *stubHistoryStore {
	s := &stubHistoryStore{records: map[uint]*repository.DetectionHistory{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *stubHistoryStore) List(ctx context.Context, userID string, opts repository.ListOptions) ([]repository.DetectionHistory, int64, error) {
	s.listOpts = opts
	var out []repository.DetectionHistory
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, s.listTotal, nil
}

func (s *stubHistoryStore) FindByID(ctx context.Context, userID string, id uint) (*repository.DetectionHistory, error) {
	s.findCalls++
	r, ok := s.records[id]
	if !ok || r.UserID != userID {
		return nil, repository.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *stubHistoryStore) Delete(ctx context.Context, userID string, id uint) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	r, ok := s.records[id]
	if !ok || r.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *stubHistoryStore) Count(ctx context.Context, userID string) (int64, error) {
	return s.countValue, nil
}

func (s *stubHistoryStore) CommonDiseases(ctx context.Context, userID string, limit int) ([]repository.DiseaseCount, error) {
	return s.common, nil
}

type stubCache struct {
	values  map[string]string
	setErrs []error
	getErrs []error
	setKeys []string
	deleted []string
}

func newStubCache() *stubCache {
	return &stubCache{values: map[string]string{}}
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	if len(s.setErrs) > 0 {
		err := s.setErrs[0]
		s.setErrs = s.setErrs[1:]
		if err != nil {
			return err
		}
	}
	s.values[key] = value.(string)
	return nil
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]
		if err != nil {
			return "", err
		}
	}
	value, ok := s.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return value, nil
}

func (s *stubCache) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.values, key)
	return nil
}

type transientCacheError struct{}

func (transientCacheError) Error() string   { return "cache transient" }
func (transientCacheError) Timeout() bool   { return true }
func (transientCacheError) Temporary() bool { return true }

func sampleRecord() *repository.DetectionHistory {
	return &repository.DetectionHistory{
		ID:          7,
		UserID:      "user-1",
		DiseaseID:   "leaf_rust",
		DiseaseName: "Karat Daun",
		Confidence:  0.87654,
		ImageURL:    "uploads/user_user-1_20240501_080000_abcd1234.jpg",
		Symptoms:    []string{"pustula oranye"},
		DetectedAt:  time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC),
	}
}

func newHistoryUseCase(store HistoryStore, cache Cache) *HistoryUseCase {
	return NewHistoryUseCase(store, cache, NewTimezoneResolver(nil, "", zap.NewNop()), "https://api.grovia.test/", zap.NewNop())
}

func TestHistoryListBuildsPaginationAndLocalTimes(t *testing.T) {
	store := newStubHistoryStore(sampleRecord())
	store.listTotal = 25
	uc := newHistoryUseCase(store, nil)

	page, err := uc.List(context.Background(), "user-1", HistoryQuery{Page: 3, Limit: 10, Sort: "oldest"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.listOpts.Sort != repository.SortOldest || store.listOpts.Page != 3 {
		t.Fatalf("unexpected list options %+v", store.listOpts)
	}
	want := Pagination{CurrentPage: 3, TotalPages: 3, TotalItems: 25, ItemsPerPage: 10, HasNext: false, HasPrev: true}
	if page.Pagination != want {
		t.Fatalf("unexpected pagination %+v", page.Pagination)
	}

	item := page.Items[0]
	if item.DetectedAt != "2024-05-02T04:30:00+08:00" || item.Date != "2024-05-02" || item.Time != "04:30:00" {
		t.Fatalf("unexpected local time fields %+v", item)
	}
	if item.ImageURL != "https://api.grovia.test/uploads/user_user-1_20240501_080000_abcd1234.jpg" {
		t.Fatalf("unexpected image url %q", item.ImageURL)
	}
	if item.Confidence != 0.8765 || item.ConfidencePercent != 87.65 {
		t.Fatalf("unexpected confidence %v / %v", item.Confidence, item.ConfidencePercent)
	}
}

func TestHistoryListDefaultsAbsentQueryValues(t *testing.T) {
	store := newStubHistoryStore()
	uc := newHistoryUseCase(store, nil)

	page, err := uc.List(context.Background(), "user-1", HistoryQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.listOpts != (repository.ListOptions{Page: 1, Limit: 10, Sort: repository.SortNewest}) {
		t.Fatalf("unexpected list options %+v", store.listOpts)
	}
	if page.Items == nil || page.Pagination.TotalPages != 0 || page.Pagination.HasNext {
		t.Fatalf("unexpected empty page %+v", page)
	}
}

func TestHistoryListRejectsOutOfRangeQuery(t *testing.T) {
	tests := map[string]HistoryQuery{
		"limit above maximum": {Limit: 500},
		"negative limit":      {Limit: -1},
		"negative page":       {Page: -2},
		"unknown sort":        {Sort: "random"},
	}
	for name, q := range tests {
		t.Run(name, func(t *testing.T) {
			store := newStubHistoryStore()
			uc := newHistoryUseCase(store, nil)

			if _, err := uc.List(context.Background(), "user-1", q); !errors.Is(err, ErrInvalidHistoryQuery) {
				t.Fatalf("expected ErrInvalidHistoryQuery, got %v", err)
			}
			if store.listOpts != (repository.ListOptions{}) {
				t.Fatalf("store must not be queried, got %+v", store.listOpts)
			}
		})
	}

	uc := newHistoryUseCase(newStubHistoryStore(), nil)
	if _, err := uc.List(context.Background(), "user-1", HistoryQuery{Page: 1, Limit: 100, Sort: "oldest"}); err != nil {
		t.Fatalf("boundary values must be accepted: %v", err)
	}
}

func TestHistoryDetailIsCachedAndInvalidatedOnDelete(t *testing.T) {
	store := newStubHistoryStore(sampleRecord())
	cache := newStubCache()
	uc := newHistoryUseCase(store, cache)
	ctx := context.Background()

	first, err := uc.Detail(ctx, "user-1", 7, "")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	second, err := uc.Detail(ctx, "user-1", 7, "")
	if err != nil {
		t.Fatalf("cached detail: %v", err)
	}
	if store.findCalls != 1 {
		t.Fatalf("expected one store read, got %d", store.findCalls)
	}
	if first.DetectedAt != second.DetectedAt || second.Symptoms[0] != "pustula oranye" {
		t.Fatalf("cached detail differs: %+v vs %+v", first, second)
	}
	if second.Recommendations == nil || second.Prevention == nil {
		t.Fatal("list fields must never be null")
	}

	if err := uc.Delete(ctx, "user-1", 7); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(cache.deleted) != 1 || cache.deleted[0] != "history:user-1:7" {
		t.Fatalf("expected cache invalidation, got %v", cache.deleted)
	}
	if _, err := uc.Detail(ctx, "user-1", 7, ""); !errors.Is(err, ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound after delete, got %v", err)
	}
}

func TestHistoryDetailHidesForeignRecords(t *testing.T) {
	uc := newHistoryUseCase(newStubHistoryStore(sampleRecord()), newStubCache())

	if _, err := uc.Detail(context.Background(), "intruder", 7, ""); !errors.Is(err, ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound, got %v", err)
	}
	if err := uc.Delete(context.Background(), "intruder", 7); !errors.Is(err, ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound, got %v", err)
	}
}

func TestHistoryDetailRetriesTransientCacheErrors(t *testing.T) {
	store := newStubHistoryStore(sampleRecord())
	cache := newStubCache()
	cache.setErrs = []error{transientCacheError{}}
	uc := newHistoryUseCase(store, cache)
	uc.initialBackoff = time.Millisecond

	if _, err := uc.Detail(context.Background(), "user-1", 7, ""); err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(cache.setKeys) != 2 || cache.setKeys[0] != cache.setKeys[1] {
		t.Fatalf("expected retried set on the same key, got %v", cache.setKeys)
	}
}

func TestHistoryDetailSurvivesCacheOutage(t *testing.T) {
	store := newStubHistoryStore(sampleRecord())
	cache := newStubCache()
	cache.getErrs = []error{errors.New("connection refused")}
	cache.setErrs = []error{errors.New("connection refused")}
	uc := newHistoryUseCase(store, cache)

	detail, err := uc.Detail(context.Background(), "user-1", 7, "")
	if err != nil {
		t.Fatalf("cache outage must not fail reads: %v", err)
	}
	if detail.HistoryID != 7 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestWithCacheRetryReturnsOperationError(t *testing.T) {
	retry := newCacheRetry(newStubCache(), zap.NewNop())
	retry.retryAttempts = 2

	attempts := 0
	err := retry.withCacheRetry(context.Background(), "req-2", "cache.set.test", func() error {
		attempts++
		return errors.New("boom")
	})

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) || opErr.Operation != "cache.set.test" || opErr.RequestID != "req-2" {
		t.Fatalf("expected OperationError, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt for a permanent error, got %d", attempts)
	}
}

func TestHistoryStats(t *testing.T) {
	store := newStubHistoryStore()
	store.countValue = 4
	uc := newHistoryUseCase(store, nil)

	stats, err := uc.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDetections != 4 || stats.UserID != "user-1" || stats.CommonDiseases == nil {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestResolveImageURL(t *testing.T) {
	tests := map[string]string{
		"uploads/a.jpg":                   "http://localhost:8080/uploads/a.jpg",
		"/uploads/a.jpg":                  "http://localhost:8080/uploads/a.jpg",
		`uploads\a.jpg`:                   "http://localhost:8080/uploads/a.jpg",
		"https://cdn.example.com/x/a.jpg": "https://cdn.example.com/x/a.jpg",
	}
	for stored, want := range tests {
		if got := ResolveImageURL("http://localhost:8080/", stored); got != want {
			t.Errorf("ResolveImageURL(%q) = %q, want %q", stored, got, want)
		}
	}
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := cache.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := cache.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("unexpected value %q (%v)", v, err)
	}
	_ = cache.Delete(ctx, "k")
	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}
