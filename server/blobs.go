package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// blobStore holds uploaded attachment bodies under opaque keys.
type blobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// newBlobKey derives a collision-free key that keeps the upload's extension.
func newBlobKey(cardID int64, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("cards/%d/%s%s", cardID, uuid.NewString(), ext)
}

func newBlobStore(ctx context.Context, cfg StorageConfig) (blobStore, error) {
	switch cfg.Driver {
	case "", "disk":
		return newDiskBlobs(cfg.Dir, cfg.PublicURL)
	case "minio":
		return newMinioBlobs(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

type diskBlobs struct {
	dir       string
	publicURL string
}

func newDiskBlobs(dir, publicURL string) (*diskBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &diskBlobs{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (d *diskBlobs) path(key string) string {
	return filepath.Join(d.dir, filepath.FromSlash(path.Clean("/"+key)))
}

func (d *diskBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return err
	}
	return f.Close()
}

func (d *diskBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (d *diskBlobs) Delete(_ context.Context, key string) error {
	err := os.Remove(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (d *diskBlobs) URL(key string) string { return d.publicURL + "/" + key }

type minioBlobs struct {
	client *minio.Client
	bucket string
	base   string
}

func newMinioBlobs(ctx context.Context, cfg StorageConfig) (*minioBlobs, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	ok, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !ok {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
	}
	base := cfg.PublicURL
	if base == "" || strings.HasPrefix(base, "/") {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.MinioEndpoint + "/" + cfg.MinioBucket
	}
	return &minioBlobs{client: client, bucket: cfg.MinioBucket, base: strings.TrimRight(base, "/")}, nil
}

func (m *minioBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (m *minioBlobs) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return obj, nil
}

func (m *minioBlobs) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *minioBlobs) URL(key string) string { return m.base + "/" + key }
