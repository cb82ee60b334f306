package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// Scanner walks a bronze bucket prefix and builds file metadata. The
// expected layout is <prefix><vendor>/<data_type>/<...>/<file>; anything
// shallower is skipped with a warning.
type Scanner struct {
	bucket *blob.Bucket
	prefix string
	log    *slog.Logger
}

// ScannerConfig configures bronze discovery.
type ScannerConfig struct {
	BucketURL string `yaml:"bucket_url"`
	Prefix    string `yaml:"prefix"`
}

// NewScanner opens the bronze bucket.
func NewScanner(ctx context.Context, cfg ScannerConfig) (*Scanner, error) {
	if cfg.BucketURL == "" {
		return nil, fmt.Errorf("bronze bucket URL is required")
	}
	bucket, err := blob.OpenBucket(ctx, cfg.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bronze bucket %s: %w", cfg.BucketURL, err)
	}
	return &Scanner{
		bucket: bucket,
		prefix: cfg.Prefix,
		log:    slog.With("component", "scanner"),
	}, nil
}

// Scan lists the bronze prefix and returns metadata for every file found.
// Content hashes are computed from the object bytes, so renaming a file
// does not change its idempotency identity's hash component.
func (s *Scanner) Scan(ctx context.Context) ([]FileMetadata, error) {
	var out []FileMetadata

	iter := s.bucket.List(&blob.ListOptions{Prefix: s.prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list bronze files: %w", err)
		}
		if obj.IsDir || strings.HasSuffix(obj.Key, "/") {
			continue
		}

		vendor, dataType, ok := splitKey(strings.TrimPrefix(obj.Key, s.prefix))
		if !ok {
			s.log.Warn("skipping file outside vendor/data_type layout", "key", obj.Key)
			continue
		}

		hash, err := s.hashObject(ctx, obj.Key)
		if err != nil {
			return nil, err
		}

		out = append(out, FileMetadata{
			Vendor:       vendor,
			DataType:     dataType,
			Path:         obj.Key,
			ContentHash:  hash,
			DiscoveredAt: time.Now().UTC(),
		})
	}
	return out, nil
}

// ReadAll fetches the raw bytes of a bronze object.
func (s *Scanner) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read bronze file %s: %w", key, err)
	}
	return data, nil
}

// Close releases the bucket connection.
func (s *Scanner) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

func (s *Scanner) hashObject(ctx context.Context, key string) (string, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return "", fmt.Errorf("open bronze file %s: %w", key, err)
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash bronze file %s: %w", key, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func splitKey(key string) (vendor, dataType string, ok bool) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
