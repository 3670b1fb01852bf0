// Package storage persists raw uploaded statement files. The import service
// only depends on the BlobStore interface; the statement row keeps the
// returned path so the original bytes stay retrievable.
package storage

import "context"

type BlobStore interface {
	// Put durably writes blob under the given account-scoped key and returns
	// a retrievable path.
	Put(ctx context.Context, key string, blob []byte) (string, error)
	// Get reads back the bytes previously written under path.
	Get(ctx context.Context, path string) ([]byte, error)
}
