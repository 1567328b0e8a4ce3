package storage

import (
	"strings"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/config"
)

// BackendType selects the object-storage implementation.
type BackendType string

const (
	BackendMinIO BackendType = "minio"
	BackendS3    BackendType = "s3"
	BackendR2    BackendType = "r2"
)

// New creates an ObjectStorage from configuration. The backend type is
// auto-detected from the endpoint when not set explicitly.
func New(cfg *config.StorageConfig) (ObjectStorage, error) {
	backend := BackendType(cfg.Type)
	if backend == "" {
		backend = detectBackend(cfg.Endpoint)
	}

	switch backend {
	case BackendMinIO:
		return NewMinIOStorage(cfg)
	default:
		return NewS3Storage(cfg, backend)
	}
}

func detectBackend(endpoint string) BackendType {
	endpoint = strings.ToLower(endpoint)
	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return BackendR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return BackendS3
	default:
		return BackendMinIO
	}
}
