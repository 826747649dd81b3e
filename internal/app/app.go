// Package app is the mutation orchestrator: it resolves the effective owner,
// authorizes, sequences record-store and photo-store steps, and patches the
// session cache after confirmed self-scoped writes. Asset deletion is always
// best-effort and never fails an otherwise-successful operation.
package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/harshsingh9817/datacollection/internal/authz"
	"github.com/harshsingh9817/datacollection/internal/util"
	"github.com/harshsingh9817/datacollection/pkg/domain"
	"github.com/harshsingh9817/datacollection/pkg/storage"
	"github.com/harshsingh9817/datacollection/pkg/store"
)

const defaultMaxPhotoBytes = 2 << 20

// CleanupEnqueuer hands failed-safe asset deletions to a background worker.
// *queue.CleanupQueue satisfies it.
type CleanupEnqueuer interface {
	Enqueue(ctx context.Context, assetRef string) error
}

// IDCardComposer produces a composed ID-card image as a data URI.
// *ai.IDCardClient satisfies it.
type IDCardComposer interface {
	Compose(ctx context.Context, fields domain.IDCardFields) (string, error)
}

// Config wires the orchestrator's collaborators. Cleanup and IDCards may be
// nil: cleanup then falls back to direct deletion and ID-card generation is
// reported as not configured.
type Config struct {
	Store      store.Store
	Photos     storage.PhotoStore
	Cleanup    CleanupEnqueuer
	IDCards    IDCardComposer
	AdminEmail string
	// MaxPhotoBytes caps photo uploads; zero means the 2 MiB default.
	MaxPhotoBytes int64
	// HTTPClient fetches stored photos during ID-card composition.
	HTTPClient *http.Client
}

// App owns every higher-level operation over schools, students, and profiles.
// One instance per process; sessions carry the per-identity state.
type App struct {
	store      store.Store
	photos     storage.PhotoStore
	cleanup    CleanupEnqueuer
	idCards    IDCardComposer
	adminEmail string
	maxPhoto   int64
	httpClient *http.Client
}

func New(cfg Config) *App {
	maxPhoto := cfg.MaxPhotoBytes
	if maxPhoto <= 0 {
		maxPhoto = defaultMaxPhotoBytes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &App{
		store:      cfg.Store,
		photos:     cfg.Photos,
		cleanup:    cfg.Cleanup,
		idCards:    cfg.IDCards,
		adminEmail: cfg.AdminEmail,
		maxPhoto:   maxPhoto,
		httpClient: httpClient,
	}
}

// PhotoStore exposes the photo adapter for preview-URL construction.
func (a *App) PhotoStore() storage.PhotoStore { return a.photos }

// PhotoUpload carries one photo file through an add or update recipe.
type PhotoUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// StudentInput is the caller-supplied portion of a student record.
type StudentInput struct {
	SchoolID      string `json:"schoolId"`
	ClassName     string `json:"className"`
	Name          string `json:"name"`
	FatherName    string `json:"fatherName"`
	RollNumber    string `json:"rollNumber"`
	DateOfBirth   string `json:"dateOfBirth"`
	Address       string `json:"address"`
	ContactNumber string `json:"contactNumber"`
}

// resolveOwner picks the partition an operation acts on and authorizes the
// session against it. Every entry point goes through here; nothing touches
// the stores before this returns nil.
func (a *App) resolveOwner(sess *Session, targetOwnerID string) (string, error) {
	if sess == nil {
		return "", ErrUnauthenticated
	}
	owner := authz.EffectiveOwner(sess.Identity, targetOwnerID)
	if err := authz.Authorize(sess.Identity, sess.Admin, owner); err != nil {
		return "", err
	}
	return owner, nil
}

// resolveOwnerForWrite additionally blocks mutation while the session's
// initial data load is in flight, so writes never race a half-loaded cache.
func (a *App) resolveOwnerForWrite(sess *Session, targetOwnerID string) (string, error) {
	owner, err := a.resolveOwner(sess, targetOwnerID)
	if err != nil {
		return "", err
	}
	if sess.Cache.IsLoading() {
		return "", ErrSessionLoading
	}
	return owner, nil
}

// deleteAssetBestEffort removes a photo blob without ever failing the
// enclosing operation. With a cleanup queue configured the ref is handed to a
// background worker; otherwise the delete runs inline. Failures are logged.
func (a *App) deleteAssetBestEffort(ctx context.Context, assetRef string) {
	if assetRef == "" {
		return
	}
	logger := util.LoggerFromContext(ctx)
	if a.cleanup != nil {
		if err := a.cleanup.Enqueue(ctx, assetRef); err != nil {
			logger.Warn("enqueue asset cleanup failed", "assetRef", assetRef, "error", err)
		}
		return
	}
	if err := a.photos.Delete(ctx, assetRef); err != nil {
		logger.Warn("asset delete failed", "assetRef", assetRef, "error", err)
	}
}

// uploadPhoto enforces the size cap and stores the blob under a logical path
// derived from the school and class names.
func (a *App) uploadPhoto(ctx context.Context, photo *PhotoUpload, schoolName, className string) (string, error) {
	if photo.Size > a.maxPhoto {
		return "", ErrPhotoTooLarge
	}
	path := "schools/" + util.Slugify(schoolName) + "/" + util.Slugify(className) + "/" + photo.Filename
	return a.photos.Upload(ctx, photo.Reader, photo.Size, photo.ContentType, path)
}
