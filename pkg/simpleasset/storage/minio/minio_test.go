package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing endpoint", Config{Bucket: "b"}, "endpoint is required"},
		{"missing bucket", Config{Endpoint: "localhost:9000"}, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	b, err := New(Config{Endpoint: "localhost:9000", Bucket: "assets", Prefix: "/p/"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", b.region)
	assert.Equal(t, "p/index/x", b.key("index/x"))
}

func TestTranslate(t *testing.T) {
	notFound := minio.ErrorResponse{Code: "NoSuchKey"}
	assert.True(t, errors.Is(translate("k", notFound), simpleasset.ErrNotFound))

	denied := minio.ErrorResponse{Code: "AccessDenied"}
	assert.False(t, errors.Is(translate("k", denied), simpleasset.ErrNotFound))
}

func TestMinIOBackend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping integration test: MINIO_ENDPOINT not set")
	}

	b, err := New(Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    "simple-asset-test",
		Prefix:    fmt.Sprintf("it-%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.Upload(ctx, "artifacts/00/a", bytes.NewReader([]byte("payload"))))

	rc, err := b.Download(ctx, "artifacts/00/a")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "payload", string(data))

	keys, err := b.List(ctx, "artifacts/")
	require.NoError(t, err)
	assert.Equal(t, []string{"artifacts/00/a"}, keys)

	require.NoError(t, b.Delete(ctx, "artifacts/00/a"))
	_, err = b.Download(ctx, "artifacts/00/a")
	assert.ErrorIs(t, err, simpleasset.ErrNotFound)
}
