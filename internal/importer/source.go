package importer

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/agentstation/placemap/pkg/errors"
)

// ObjectGetter fetches objects from S3-compatible storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// MinioConfig configures the S3-compatible object store.
type MinioConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `json:"-" yaml:"-" mapstructure:"secret_key"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl" mapstructure:"use_ssl"`
}

// MinioStore reads import files from MinIO or any S3-compatible service.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore connects to the configured endpoint. No request is made
// until the first GetObject.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.NewConfigError("minio", "endpoint, access key and secret key are required", nil)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.NewConfigError("minio", "creating client", err)
	}
	return &MinioStore{client: client}, nil
}

// GetObject opens bucket/key for streaming. A missing object is an
// errors.NotFoundError.
func (s *MinioStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.WrapResource("get", "object", bucket+"/"+key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.NewNotFoundError("object", bucket+"/"+key)
		}
		return nil, errors.WrapResource("stat", "object", bucket+"/"+key, err)
	}
	return obj, nil
}

// ParseS3 splits an s3://bucket/key location.
func ParseS3(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Open opens a local path or an s3://bucket/key location. Names ending in
// .gz are decompressed transparently. objects may be nil for local paths.
func Open(ctx context.Context, location string, objects ObjectGetter) (io.ReadCloser, error) {
	var rc io.ReadCloser
	if strings.HasPrefix(location, "s3://") {
		bucket, key, ok := ParseS3(location)
		if !ok {
			return nil, errors.NewValidationError("source", location, "must be s3://bucket/key")
		}
		if objects == nil {
			return nil, errors.NewConfigError("importer", "object storage is not configured", nil)
		}
		obj, err := objects.GetObject(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		rc = obj
	} else {
		f, err := os.Open(location)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewNotFoundError("file", location)
			}
			return nil, errors.WrapIO("open", location, err)
		}
		rc = f
	}

	if !strings.HasSuffix(location, ".gz") {
		return rc, nil
	}
	gz, err := gzip.NewReader(rc)
	if err != nil {
		_ = rc.Close()
		return nil, errors.WrapParse("gzip", location, err)
	}
	return &gzipReadCloser{Reader: gz, underlying: rc}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	underlying io.Closer
}

func (g *gzipReadCloser) Close() error {
	return errors.Join(g.Reader.Close(), g.underlying.Close())
}
