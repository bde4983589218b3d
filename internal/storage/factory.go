package storage

import "strings"

// NewStorage builds the artifact store gateway for the configured
// endpoint. When the backend type is not set explicitly it is detected
// from the endpoint host: AWS S3, Cloudflare R2, or a generic
// S3-compatible service such as MinIO or DigitalOcean Spaces.
// Parameters:
//   - cfg: storage configuration including endpoint, credentials, and bucket.
// Returns:
//   - ObjectStorage: initialized artifact store client.
//   - error: non-nil if the client cannot be created.
func NewStorage(cfg *S3Config) (ObjectStorage, error) {
	if cfg.Type == "" {
		cfg.Type = detectStorageType(cfg.Endpoint)
	}
	return NewS3Storage(cfg)
}

// detectStorageType classifies the endpoint host. R2 matters because it
// cannot create buckets over the API; everything unrecognized is treated
// as generic S3-compatible and addressed path-style.
func detectStorageType(endpoint string) StorageType {
	host := strings.ToLower(endpoint)
	switch {
	case strings.Contains(host, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(host, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
