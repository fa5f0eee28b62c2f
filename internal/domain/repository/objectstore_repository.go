package repository

import "context"

// ObjectStoreRepository publishes local files to object storage.
type ObjectStoreRepository interface {
	// Identity returns the account the credentials resolve to.
	Identity(ctx context.Context) (string, error)
	// Upload copies a local file to key and returns the object URI.
	Upload(ctx context.Context, localPath, key string) (string, error)
}
