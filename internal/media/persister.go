package media

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/storage"
)

// Persister uploads image bytes to the durable image host and returns a
// stable public URL. Assets are filed under one named collection (a key
// prefix whose bucket is ensured lazily, once per process). Every failure
// path returns "" so callers can fall back to a locally served path; the
// persister is never fatal.
type Persister struct {
	store      storage.ObjectStorage // nil when no image host is configured
	collection string
	log        *logger.Logger

	mu      sync.Mutex
	ensured bool
}

// NewPersister creates a Persister. A nil store means the image host is not
// configured and every Persist call returns "".
func NewPersister(store storage.ObjectStorage, collection string, log *logger.Logger) *Persister {
	if collection == "" {
		collection = "wishes"
	}
	return &Persister{
		store:      store,
		collection: collection,
		log:        log,
	}
}

// ensureCollection memoizes the bucket check. The flag is process-local and
// safe to recompute after a restart.
func (p *Persister) ensureCollection(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ensured {
		return true
	}
	if err := p.store.EnsureBucket(ctx); err != nil {
		p.log.WithError(err).Warn("Image host collection unavailable")
		return false
	}
	p.ensured = true
	return true
}

// Persist uploads the bytes and returns the asset's public URL, or "" when
// the host is unconfigured or the upload fails.
func (p *Persister) Persist(ctx context.Context, data []byte, filename, title string) string {
	if p.store == nil || len(data) == 0 {
		return ""
	}
	if !p.ensureCollection(ctx) {
		return ""
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("%s/%s%s", p.collection, uuid.New().String(), ext)

	if err := p.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentTypeForExt(ext)); err != nil {
		p.log.WithFields(logger.Fields{
			"key":   key,
			"title": title,
		}).WithError(err).Warn("Image upload failed")
		return ""
	}

	return p.store.GetURL(key)
}

func contentTypeForExt(ext string) string {
	switch strings.TrimPrefix(ext, ".") {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
