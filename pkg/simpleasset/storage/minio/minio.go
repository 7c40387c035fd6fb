// Package minio stores blobs in an S3-compatible bucket through minio-go.
package minio

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint  string // host[:port], no scheme
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // Optional key prefix inside the bucket
	UseSSL    bool
}

// Backend implements simpleasset.BlobStore on a MinIO client.
type Backend struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// New validates the configuration and creates the client. The bucket is
// created lazily on first use.
func New(cfg Config) (*Backend, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &Backend{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	b.initOnce.Do(func() {
		exists, err := b.client.BucketExists(ctx, b.bucket)
		if err != nil {
			b.initErr = err
			return
		}
		if exists {
			return
		}
		b.initErr = b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region})
	})
	if b.initErr != nil {
		return fmt.Errorf("ensure bucket: %w", b.initErr)
	}
	return nil
}

func (b *Backend) key(objectKey string) string {
	if b.prefix == "" {
		return objectKey
	}
	return b.prefix + "/" + objectKey
}

// Upload streams the object; size is unknown so minio-go uses multipart
// upload, which only becomes visible on completion.
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	if err := b.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := b.client.PutObject(ctx, b.bucket, b.key(objectKey), reader, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, b.key(objectKey), minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(objectKey, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, translate(objectKey, err)
	}
	return obj, nil
}

func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	if err := b.ensureBucket(ctx); err != nil {
		return err
	}
	if err := b.client.RemoveObject(ctx, b.bucket, b.key(objectKey), minio.RemoveObjectOptions{}); err != nil {
		return translate(objectKey, err)
	}
	return nil
}

func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simpleasset.ObjectMeta, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	info, err := b.client.StatObject(ctx, b.bucket, b.key(objectKey), minio.StatObjectOptions{})
	if err != nil {
		return nil, translate(objectKey, err)
	}
	return &simpleasset.ObjectMeta{
		Key:       objectKey,
		Size:      info.Size,
		UpdatedAt: info.LastModified,
		ETag:      info.ETag,
	}, nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	strip := ""
	if b.prefix != "" {
		strip = b.prefix + "/"
	}

	keys := make([]string, 0, 32)
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list minio objects: %w", obj.Err)
		}
		if obj.Key == "" {
			continue
		}
		keys = append(keys, strings.TrimPrefix(obj.Key, strip))
	}
	sort.Strings(keys)
	return keys, nil
}

func translate(objectKey string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("object %s: %w", objectKey, simpleasset.ErrNotFound)
	}
	return fmt.Errorf("minio: %w", err)
}
