package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

type catalogTarget struct {
	kind string // memory, file, sqlite, postgres
	path string
	url  string
}

func parseCatalogURL(raw string) (catalogTarget, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return catalogTarget{kind: "memory"}, nil
	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return catalogTarget{}, fmt.Errorf("catalog file path cannot be empty in CATALOG_URL")
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".cbor":
		default:
			return catalogTarget{}, fmt.Errorf("catalog file must end in .json or .cbor: %s", path)
		}
		return catalogTarget{kind: "file", path: path}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return catalogTarget{}, fmt.Errorf("sqlite path cannot be empty in CATALOG_URL")
		}
		return catalogTarget{kind: "sqlite", path: path}, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return catalogTarget{kind: "postgres", url: raw}, nil
	}
	return catalogTarget{}, fmt.Errorf("unsupported CATALOG_URL format: %s (use 'memory://', 'file://...', 'sqlite://...' or 'postgres://...')", raw)
}

type storageTarget struct {
	kind      string // memory, fs, s3, minio
	path      string
	bucket    string
	prefix    string
	region    string
	endpoint  string
	accessKey string
	secretKey string

	usePathStyle bool
	useSSL       bool
	createBucket bool
	sse          string
	sseKMSKeyID  string
}

func parseStorageURL(raw string) (storageTarget, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return storageTarget{kind: "memory"}, nil
	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return storageTarget{}, fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		return storageTarget{kind: "fs", path: path}, nil
	case strings.HasPrefix(raw, "s3://"):
		return parseBucketURL(raw, "s3")
	case strings.HasPrefix(raw, "minio://"):
		return parseBucketURL(raw, "minio")
	}
	return storageTarget{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'minio://...')", raw)
}

// parseBucketURL handles s3://bucket/prefix?query and
// minio://[key:secret@]host[:port]/bucket/prefix?query.
func parseBucketURL(raw, kind string) (storageTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return storageTarget{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	t := storageTarget{kind: kind}
	q := u.Query()

	rest := strings.Trim(u.Path, "/")
	if kind == "s3" {
		t.bucket = u.Host
		t.prefix = rest
	} else {
		if u.Host == "" {
			return storageTarget{}, fmt.Errorf("minio endpoint cannot be empty in STORAGE_URL")
		}
		t.endpoint = u.Host
		t.bucket, t.prefix, _ = strings.Cut(rest, "/")
		if u.User != nil {
			t.accessKey = u.User.Username()
			t.secretKey, _ = u.User.Password()
		}
	}
	if t.bucket == "" {
		return storageTarget{}, fmt.Errorf("%s bucket name cannot be empty in STORAGE_URL", kind)
	}

	t.region = q.Get("region")
	if kind == "s3" {
		t.endpoint = q.Get("endpoint")
	}
	if t.usePathStyle, err = queryBool(q, "path_style"); err != nil {
		return storageTarget{}, err
	}
	if t.useSSL, err = queryBool(q, "ssl"); err != nil {
		return storageTarget{}, err
	}
	if t.createBucket, err = queryBool(q, "create_bucket"); err != nil {
		return storageTarget{}, err
	}
	t.sse = q.Get("sse")
	t.sseKMSKeyID = q.Get("sse_kms_key_id")
	return t, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value in STORAGE_URL: %q", key, v)
	}
	return b, nil
}
