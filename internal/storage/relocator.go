// Package storage moves accepted uploads from the local uploads directory to
// durable object storage.
package storage

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Upload describes an object stored remotely.
type Upload struct {
	URL      string `json:"url"`
	RemoteID string `json:"remote_id"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int64  `json:"bytes"`
}

// Relocator copies a local file to durable storage. The caller owns the local
// file and decides whether to delete it afterwards.
type Relocator interface {
	Relocate(ctx context.Context, localPath, folder, identifier string) (*Upload, error)
}

// ObjectName builds the remote object key for a local file. identifier
// defaults to the file's base name without extension.
func ObjectName(localPath, folder, identifier string) string {
	ext := strings.ToLower(filepath.Ext(localPath))
	if identifier == "" {
		identifier = strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))
	}
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return identifier + ext
	}
	return folder + "/" + identifier + ext
}

// ContentType maps an image file extension to its MIME type.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// describeFile reads size, format and dimensions of a local image.
func describeFile(path string) (Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Upload{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Upload{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Upload{}, fmt.Errorf("read image header: %w", err)
	}
	return Upload{Format: format, Width: cfg.Width, Height: cfg.Height, Bytes: info.Size()}, nil
}
