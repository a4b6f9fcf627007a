package usecase

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// artifact is the local copy of one submission. It is removed on Release
// unless Keep was called first.
type artifact struct {
	path   string
	name   string
	keep   bool
	logger *zap.Logger
}

// ArtifactName builds the local filename for a user's upload.
func ArtifactName(userID, originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("user_%s_%s_%s%s", sanitizeUserID(userID), now.Format("20060102_150405"), suffix, ext)
}

func sanitizeUserID(userID string) string {
	var b strings.Builder
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "anonymous"
	}
	return b.String()
}

// writeArtifact stores content under dir and returns the owning artifact.
func writeArtifact(dir, userID, originalName string, content io.Reader, now time.Time, logger *zap.Logger) (*artifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	name := ArtifactName(userID, originalName, now)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	a := &artifact{path: path, name: name, logger: logger}
	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		a.Release()
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		a.Release()
		return nil, fmt.Errorf("close artifact: %w", err)
	}
	return a, nil
}

// Keep marks the artifact as the durable image reference.
func (a *artifact) Keep() { a.keep = true }

// Release deletes the file unless it was kept. Safe to call more than once.
func (a *artifact) Release() {
	if a == nil || a.keep {
		return
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.logger.Warn("failed to remove local artifact", zap.String("path", a.path), zap.Error(err))
		return
	}
	a.logger.Debug("local artifact removed", zap.String("path", a.path))
}
