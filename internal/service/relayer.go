package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
)

// imagePersister uploads bytes to the durable image host. "" means the
// upload did not produce a durable copy.
type imagePersister interface {
	Persist(ctx context.Context, data []byte, filename, title string) string
}

// uploadStatusWriter is the slice of item persistence the relayer needs.
type uploadStatusWriter interface {
	SetUploadStatus(ctx context.Context, id string, status domain.UploadStatus, imageURL string) error
}

// Relayer moves an image-origin item's bytes from the ephemeral local copy
// to the durable image host. Upload failure is non-fatal: the local copy is
// adopted as the served fallback and the bytes still reach the analyzer.
type Relayer struct {
	items     uploadStatusWriter
	persister imagePersister
	basePath  string
	log       *logger.Logger
}

// NewRelayer creates a Relayer. basePath is the URL prefix under which the
// local upload directory is served, used for the fallback path.
func NewRelayer(items uploadStatusWriter, persister imagePersister, basePath string, log *logger.Logger) *Relayer {
	if basePath == "" {
		basePath = "/uploads"
	}
	return &Relayer{
		items:     items,
		persister: persister,
		basePath:  basePath,
		log:       log,
	}
}

// Relay uploads the item's local image copy and returns the best image URL
// plus the raw bytes for analysis. The ephemeral copy is deleted only once a
// durable copy exists; when the upload fails, the local path is adopted as
// the fallback URL and the file is kept.
func (r *Relayer) Relay(ctx context.Context, item *domain.Item) (string, []byte) {
	log := r.log.WithField(logger.FieldItemID, item.ID)

	data, err := os.ReadFile(item.LocalImagePath)
	if err != nil {
		log.WithError(err).Error("Ephemeral image copy unreadable")
		if err := r.items.SetUploadStatus(ctx, item.ID, domain.UploadStatusFailed, ""); err != nil {
			log.WithError(err).Warn("Upload status write failed")
		}
		return "", nil
	}

	if err := r.items.SetUploadStatus(ctx, item.ID, domain.UploadStatusUploading, ""); err != nil {
		log.WithError(err).Warn("Upload status write failed")
	}

	filename := filepath.Base(item.LocalImagePath)
	durableURL := r.persister.Persist(ctx, data, filename, item.Name)
	if durableURL == "" {
		localURL := r.basePath + "/" + filename
		log.Warn("Durable upload failed, serving local copy")
		if err := r.items.SetUploadStatus(ctx, item.ID, domain.UploadStatusFailed, localURL); err != nil {
			log.WithError(err).Warn("Upload status write failed")
		}
		return localURL, data
	}

	if err := r.items.SetUploadStatus(ctx, item.ID, domain.UploadStatusCompleted, durableURL); err != nil {
		log.WithError(err).Warn("Upload status write failed")
	}
	if err := os.Remove(item.LocalImagePath); err != nil {
		log.WithError(err).Warn("Failed to delete ephemeral image copy")
	}
	return durableURL, data
}

// ValidateImage confirms the bytes decode as a supported image and returns
// the detected format (jpeg, png, gif, webp).
func ValidateImage(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported or corrupt image: %w", err)
	}
	return format, nil
}
