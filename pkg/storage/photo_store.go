// Package storage stores student photo blobs in MinIO/S3 compatible object
// storage. Records only ever persist the opaque ref returned by Upload; the
// human-readable logical path is kept as object metadata for operators.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrNotConfigured is returned when the object store settings are absent.
	// Distinct from transient upload failures so setup problems read as such.
	ErrNotConfigured = errors.New("photo store not configured")
	// ErrUploadFailed wraps transport failures during upload. Surfaced before
	// any record mutation, so a record never references an unstored blob.
	ErrUploadFailed = errors.New("photo upload failed")
)

// PhotoStore provides access to the student photo blobs.
type PhotoStore interface {
	// Upload stores the blob under a freshly generated ref and returns it.
	Upload(ctx context.Context, r io.Reader, size int64, contentType, logicalPath string) (string, error)
	// PreviewURL builds the public URL for a ref. Pure string construction:
	// returns "" when the store is unconfigured or ref is empty, never errors.
	PreviewURL(ref string) string
	// Delete removes a blob. Callers treat failures as best-effort cleanup.
	Delete(ctx context.Context, ref string) error
}

// Config holds object-store connection settings. Any missing required value
// disables the store instead of failing startup.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// New returns a MinIO-backed store, or a disabled store when the
// configuration is incomplete.
func New(cfg Config) (PhotoStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return disabledStore{}, nil
	}
	return newMinioStore(cfg)
}

// MinioStore implements PhotoStore on MinIO/S3 compatible storage.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

func newMinioStore(cfg Config) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	publicBase := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, publicBaseURL: publicBase}, nil
}

// Upload stores the blob keyed by a new uuid and returns that uuid as the ref.
func (m *MinioStore) Upload(ctx context.Context, r io.Reader, size int64, contentType, logicalPath string) (string, error) {
	ref := uuid.NewString()
	opts := minio.PutObjectOptions{ContentType: contentType}
	if logicalPath != "" {
		opts.UserMetadata = map[string]string{"logical-path": logicalPath}
	}
	if _, err := m.client.PutObject(ctx, m.bucket, ref, r, size, opts); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return ref, nil
}

// PreviewURL joins the public base URL with the ref.
func (m *MinioStore) PreviewURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	return m.publicBaseURL + "/" + ref
}

// Delete removes the blob for a ref. Deleting an already-missing blob is not
// an error.
func (m *MinioStore) Delete(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// disabledStore stands in when object-store configuration is missing.
type disabledStore struct{}

func (disabledStore) Upload(context.Context, io.Reader, int64, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (disabledStore) PreviewURL(string) string { return "" }

func (disabledStore) Delete(context.Context, string) error { return ErrNotConfigured }
