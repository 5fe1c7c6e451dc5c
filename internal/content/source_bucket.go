package content

import (
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"linkpay/internal/logging"
)

// BucketSource serves content bytes from an S3-compatible bucket.
type BucketSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// BucketConfig holds configuration for bucket-backed content.
type BucketConfig struct {
	Endpoint  string // e.g. "s3.us-east-005.backblazeb2.com"
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // optional folder prefix for all objects
}

// NewBucketSource creates a bucket-backed content source.
func NewBucketSource(cfg BucketConfig) (*BucketSource, error) {
	logging.Bucket.Printf("initializing content source (bucket=%s, prefix=%s, endpoint=%s)", cfg.Bucket, cfg.Prefix, cfg.Endpoint)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: true,
	})
	if err != nil {
		logging.Bucket.Printf("failed to create client: %v", err)
		return nil, err
	}

	return &BucketSource{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *BucketSource) key(id string) string {
	if s.prefix == "" {
		return id
	}
	return path.Join(s.prefix, id)
}

func (s *BucketSource) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	key := s.key(id)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		logging.Bucket.Printf("get failed for %s: %v", key, err)
		return nil, err
	}

	// GetObject is lazy; Stat forces the first request so unknown keys
	// surface here instead of on the first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		logging.Bucket.Printf("stat failed for %s: %v", key, err)
		return nil, err
	}

	return obj, nil
}
