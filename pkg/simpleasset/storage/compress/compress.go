// Package compress wraps a BlobStore so objects are compressed at rest.
//
// Each compressed object starts with a four-byte header: the magic "SAZ"
// followed by the codec tag. Objects without the header are returned as
// stored, so compression can be enabled on an existing store.
package compress

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Codec identifies the compression algorithm of a stored object. Values are
// persisted in object headers.
type Codec uint8

const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

var magic = []byte("SAZ")

const headerLen = 4

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec parses a codec from its configuration name.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none", "":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression codec: %q", name)
	}
}

// Backend compresses on Upload and decompresses on Download. GetObjectMeta
// reports the stored (compressed) size.
type Backend struct {
	simpleasset.BlobStore
	codec Codec
	level zstd.EncoderLevel
}

// Option configures the decorator.
type Option func(*Backend)

// WithZstdLevel sets the zstd encoder level (default SpeedDefault).
func WithZstdLevel(level zstd.EncoderLevel) Option {
	return func(b *Backend) {
		b.level = level
	}
}

// Wrap returns inner unchanged for CodecNone.
func Wrap(inner simpleasset.BlobStore, codec Codec, opts ...Option) simpleasset.BlobStore {
	if codec == CodecNone {
		return inner
	}
	b := &Backend{BlobStore: inner, codec: codec, level: zstd.SpeedDefault}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(b.encode(pw, reader))
	}()
	err := b.BlobStore.Upload(ctx, objectKey, pr)
	// Unblock the encoder if the inner store stopped reading early.
	pr.CloseWithError(io.ErrClosedPipe)
	return err
}

func (b *Backend) encode(w io.Writer, r io.Reader) error {
	header := append(append([]byte(nil), magic...), byte(b.codec))
	if _, err := w.Write(header); err != nil {
		return err
	}

	var enc io.WriteCloser
	switch b.codec {
	case CodecZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(b.level))
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		enc = zw
	case CodecLZ4:
		enc = lz4.NewWriter(w)
	default:
		return fmt.Errorf("unsupported compression codec: %s", b.codec)
	}

	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	rc, err := b.BlobStore.Download(ctx, objectKey)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(rc)
	head, err := br.Peek(headerLen)
	if err != nil || !bytes.Equal(head[:len(magic)], magic) {
		// Short or unmarked objects were stored uncompressed.
		return &readCloser{Reader: br, close: rc.Close}, nil
	}
	codec := Codec(head[len(magic)])
	if _, err := br.Discard(headerLen); err != nil {
		rc.Close()
		return nil, err
	}

	switch codec {
	case CodecNone:
		return &readCloser{Reader: br, close: rc.Close}, nil
	case CodecLZ4:
		return &readCloser{Reader: lz4.NewReader(br), close: rc.Close}, nil
	case CodecZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return rc.Close()
		}}, nil
	default:
		rc.Close()
		return nil, fmt.Errorf("object %s: unsupported compression codec %s", objectKey, codec)
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error {
	return r.close()
}
