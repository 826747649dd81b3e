// Package authz holds the single authorization predicate applied before every
// record-store or asset-store operation that targets a specific owner.
package authz

import (
	"errors"
	"strings"

	"github.com/harshsingh9817/datacollection/pkg/domain"
)

var (
	// ErrUnauthenticated indicates no acting identity is present.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrPermissionDenied indicates the actor may not touch the target
	// owner's records. Never retried; surfaced verbatim to the caller.
	ErrPermissionDenied = errors.New("permission denied")
)

// Authorize permits an operation on targetOwnerID's records when the actor is
// the owner itself or an admin. Anything else is denied.
func Authorize(actor domain.Identity, isAdmin bool, targetOwnerID string) error {
	if strings.TrimSpace(actor.ID) == "" {
		return ErrUnauthenticated
	}
	if actor.ID == targetOwnerID {
		return nil
	}
	if isAdmin {
		return nil
	}
	return ErrPermissionDenied
}

// EffectiveOwner resolves the owner partition an operation acts on: the
// explicit target when one is given, otherwise the actor itself. The returned
// owner still has to pass Authorize; a non-admin naming someone else is denied
// there, not here.
func EffectiveOwner(actor domain.Identity, targetOwnerID string) string {
	target := strings.TrimSpace(targetOwnerID)
	if target == "" {
		return actor.ID
	}
	return target
}
