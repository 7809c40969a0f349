package objectstore

import (
	"fmt"

	"trivia-backend/internal/config"
)

// NewBackend selects the backend named by cfg.StorageDriver.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverS3:
		return NewS3Backend(S3Config{
			Bucket:    cfg.StorageBucket,
			Host:      cfg.StorageHost,
			Endpoint:  cfg.StorageEndpoint,
			Region:    cfg.StorageRegion,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
		})
	case config.DriverGitHub:
		return NewGitHubBackend(cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch), nil
	case config.DriverFilesystem:
		return NewFilesystemBackend(cfg.LocalStorageDir, cfg.LocalPublicURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
