package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// objectStore is the subset of bucket operations the relocator needs.
type objectStore interface {
	Put(ctx context.Context, object, contentType string, r io.Reader) error
}

// GCSConfig configures a GCSRelocator.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	// PublicBaseURL overrides https://storage.googleapis.com/<bucket>.
	PublicBaseURL string
	MaxAttempts   int
}

// GCSRelocator stores images in a Google Cloud Storage bucket.
type GCSRelocator struct {
	store       objectStore
	baseURL     string
	maxAttempts int
	logger      *zap.Logger
	closeFn     func() error
}

// NewGCSRelocator connects to the configured bucket.
func NewGCSRelocator(ctx context.Context, cfg GCSConfig, logger *zap.Logger) (*GCSRelocator, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: bucket name is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: failed to create client: %w", err)
	}

	r := newGCSRelocator(&bucketStore{bucket: client.Bucket(cfg.Bucket)}, cfg, logger)
	r.closeFn = client.Close
	return r, nil
}

func newGCSRelocator(store objectStore, cfg GCSConfig, logger *zap.Logger) *GCSRelocator {
	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &GCSRelocator{
		store:       store,
		baseURL:     baseURL,
		maxAttempts: attempts,
		logger:      logger.Named("gcs_relocator"),
		closeFn:     func() error { return nil },
	}
}

// Relocate uploads localPath under folder and returns the public object URL.
// Transient upload failures are retried with exponential backoff.
func (r *GCSRelocator) Relocate(ctx context.Context, localPath, folder, identifier string) (*Upload, error) {
	meta, err := describeFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("gcs: %w", err)
	}

	object := ObjectName(localPath, folder, identifier)
	contentType := ContentType(localPath)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	attempt := 0
	op := func() error {
		attempt++
		f, err := os.Open(localPath)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer f.Close()

		if err := r.store.Put(ctx, object, contentType, f); err != nil {
			r.logger.Warn("gcs upload attempt failed",
				zap.Error(err), zap.String("object", object), zap.Int("attempt", attempt))
			return err
		}
		return nil
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.maxAttempts-1)), ctx)
	if err := backoff.Retry(op, retry); err != nil {
		return nil, fmt.Errorf("gcs: upload %s: %w", object, err)
	}

	meta.URL = r.baseURL + "/" + (&url.URL{Path: object}).EscapedPath()
	meta.RemoteID = object
	r.logger.Info("image relocated", zap.String("object", object), zap.Int("attempts", attempt))
	return &meta, nil
}

// Close releases the underlying client.
func (r *GCSRelocator) Close() error {
	return r.closeFn()
}

type bucketStore struct {
	bucket *gcs.BucketHandle
}

func (b *bucketStore) Put(ctx context.Context, object, contentType string, src io.Reader) error {
	w := b.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
