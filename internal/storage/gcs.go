package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCS stores blobs in a Google Cloud Storage bucket and returns gs:// URIs.
// The client assumes Application Default Credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (s *GCS) Put(ctx context.Context, key string, blob []byte) (string, error) {
	object := s.client.Bucket(s.bucket).Object(key)
	writer := object.NewWriter(ctx)
	if _, err := writer.Write(blob); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("write object %q: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %q: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

func (s *GCS) Get(ctx context.Context, path string) ([]byte, error) {
	trimmed := strings.TrimPrefix(path, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid GCS path: %s", path)
	}
	reader, err := s.client.Bucket(parts[0]).Object(parts[1]).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", path, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}
	return data, nil
}

func (s *GCS) Close() error {
	return s.client.Close()
}
