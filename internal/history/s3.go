// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pdiddy/paperwatch/pkg/types"
)

const (
	defaultObjectKey = "sent_history.json"
	defaultRegion    = "us-east-1"
)

// ObjectStore keeps the history as a JSON array object in an S3-compatible
// bucket, for scheduled runs on machines without persistent disk.
type ObjectStore struct {
	client *minio.Client
	bucket string
	key    string
	keySet
}

// NewObjectStore creates a MinIO client for the configured endpoint.
func NewObjectStore(cfg types.HistoryConfig) (*ObjectStore, error) {
	if cfg.S3Endpoint == "" || cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 history requires history.s3_endpoint and history.s3_bucket")
	}
	region := cfg.S3Region
	if region == "" {
		region = defaultRegion
	}
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure:       cfg.S3UseSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	key := cfg.S3Key
	if key == "" {
		key = defaultObjectKey
	}
	return &ObjectStore{client: client, bucket: cfg.S3Bucket, key: key}, nil
}

// Load downloads the history object. A missing object is an empty history.
func (s *ObjectStore) Load(ctx context.Context) error {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to get history object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			s.reset(nil, false)
			return nil
		}
		return fmt.Errorf("failed to read history object: %w", err)
	}

	entries, err := decodeEntries(data)
	if err != nil {
		return fmt.Errorf("parsing history object %s/%s: %w", s.bucket, s.key, err)
	}
	s.reset(entries, true)
	return nil
}

// Contains reports whether p has been sent before.
func (s *ObjectStore) Contains(p types.CandidatePaper) bool { return s.contains(p) }

// Record buffers p for Persist.
func (s *ObjectStore) Record(p types.CandidatePaper) { s.record(p) }

// Len returns the number of known keys.
func (s *ObjectStore) Len() int { return s.len() }

// Keys returns every known key, sorted.
func (s *ObjectStore) Keys() []string { return s.keys() }

// Persist uploads the full key set as a single object PUT, which replaces
// the previous object atomically.
func (s *ObjectStore) Persist(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if !s.loaded {
		return ErrNotLoaded
	}
	data, err := encodeEntries(s.keys())
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload history object: %w", err)
	}
	s.pending = nil
	return nil
}

// Close is a no-op.
func (s *ObjectStore) Close() error { return nil }
