package app

import (
	"errors"

	"github.com/harshsingh9817/datacollection/internal/authz"
)

var (
	// ErrUnauthenticated mirrors the guard sentinel for callers that only
	// import this package.
	ErrUnauthenticated = authz.ErrUnauthenticated
	// ErrPermissionDenied mirrors the guard sentinel.
	ErrPermissionDenied = authz.ErrPermissionDenied

	// ErrSchoolNotFound is returned when the target school does not exist in
	// the resolved owner's partition.
	ErrSchoolNotFound = errors.New("school not found")
	// ErrStudentNotFound is returned when the target student does not exist
	// in the resolved owner's partition.
	ErrStudentNotFound = errors.New("student not found")
	// ErrPhotoTooLarge rejects uploads above the configured size limit before
	// any blob or record write happens.
	ErrPhotoTooLarge = errors.New("photo too large")
	// ErrSessionLoading blocks mutation while the initial session data load
	// is still in flight.
	ErrSessionLoading = errors.New("session data still loading")
	// ErrIDCardsNotConfigured is returned when no composition API key is set.
	ErrIDCardsNotConfigured = errors.New("id card composition not configured")
)
