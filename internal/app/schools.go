package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harshsingh9817/datacollection/internal/util"
	"github.com/harshsingh9817/datacollection/pkg/domain"
	"github.com/harshsingh9817/datacollection/pkg/store"
)

// AddSchool creates a school in the resolved owner's partition. Class names
// are deduplicated on write.
func (a *App) AddSchool(ctx context.Context, sess *Session, targetOwnerID, name string, classNames []string) (domain.School, error) {
	owner, err := a.resolveOwnerForWrite(sess, targetOwnerID)
	if err != nil {
		return domain.School{}, err
	}
	school := domain.School{
		ID:         util.NewID(),
		OwnerID:    owner,
		Name:       strings.TrimSpace(name),
		ClassNames: dedupClassNames(classNames),
	}
	if err := a.store.SaveSchool(school); err != nil {
		return domain.School{}, fmt.Errorf("create school: %w", err)
	}
	if owner == sess.Identity.ID {
		sess.Cache.UpsertSchool(school)
	}
	return school, nil
}

// UpdateSchool renames a school. Class names are managed through
// UpdateSchoolClassNames and are left untouched here.
func (a *App) UpdateSchool(ctx context.Context, sess *Session, targetOwnerID, schoolID, name string) (domain.School, error) {
	owner, err := a.resolveOwnerForWrite(sess, targetOwnerID)
	if err != nil {
		return domain.School{}, err
	}
	school, found, err := a.store.GetSchool(owner, schoolID)
	if err != nil {
		return domain.School{}, fmt.Errorf("load school: %w", err)
	}
	if !found {
		return domain.School{}, ErrSchoolNotFound
	}
	school.Name = strings.TrimSpace(name)
	if err := a.store.UpdateSchoolName(owner, schoolID, school.Name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.School{}, ErrSchoolNotFound
		}
		return domain.School{}, fmt.Errorf("update school: %w", err)
	}
	if owner == sess.Identity.ID {
		sess.Cache.UpsertSchool(school)
	}
	return school, nil
}

// UpdateSchoolClassNames adds and removes class labels on a school and writes
// the full replacement list. Removing a label does not delete or reassign the
// students that carry it; they stay stored and retrievable by id or school.
func (a *App) UpdateSchoolClassNames(ctx context.Context, sess *Session, targetOwnerID, schoolID string, add, remove []string) ([]string, error) {
	owner, err := a.resolveOwnerForWrite(sess, targetOwnerID)
	if err != nil {
		return nil, err
	}
	school, found, err := a.store.GetSchool(owner, schoolID)
	if err != nil {
		return nil, fmt.Errorf("load school: %w", err)
	}
	if !found {
		return nil, ErrSchoolNotFound
	}
	names := dedupClassNames(append(append([]string(nil), school.ClassNames...), add...))
	if len(remove) > 0 {
		drop := make(map[string]bool, len(remove))
		for _, r := range remove {
			drop[strings.TrimSpace(r)] = true
		}
		kept := names[:0]
		for _, n := range names {
			if !drop[n] {
				kept = append(kept, n)
			}
		}
		names = kept
	}
	if err := a.store.SetSchoolClassNames(owner, schoolID, names); err != nil {
		return nil, fmt.Errorf("update class names: %w", err)
	}
	if owner == sess.Identity.ID {
		sess.Cache.SetSchoolClassNames(schoolID, names)
	}
	return names, nil
}

// DeleteSchool removes a school and all of its students in one atomic batch.
// Student photo blobs are released first, best-effort: once the batch
// commits the refs are gone, so deleting before the commit is the only
// chance to reach them.
func (a *App) DeleteSchool(ctx context.Context, sess *Session, targetOwnerID, schoolID string) error {
	owner, err := a.resolveOwnerForWrite(sess, targetOwnerID)
	if err != nil {
		return err
	}
	if _, found, err := a.store.GetSchool(owner, schoolID); err != nil {
		return fmt.Errorf("load school: %w", err)
	} else if !found {
		return ErrSchoolNotFound
	}
	students, err := a.store.ListStudentsBySchool(owner, schoolID)
	if err != nil {
		return fmt.Errorf("list school students: %w", err)
	}
	studentIDs := make([]string, 0, len(students))
	for _, st := range students {
		studentIDs = append(studentIDs, st.ID)
		a.deleteAssetBestEffort(ctx, st.PhotoAssetRef)
	}
	if err := a.store.DeleteSchoolCascade(owner, schoolID, studentIDs); err != nil {
		return fmt.Errorf("delete school: %w", err)
	}
	if owner == sess.Identity.ID {
		sess.Cache.RemoveSchool(schoolID)
	}
	return nil
}

// FetchSchoolsForUser reads a user's schools. Admin browsing another owner
// returns data without touching the session cache.
func (a *App) FetchSchoolsForUser(ctx context.Context, sess *Session, targetOwnerID string) ([]domain.School, error) {
	owner, err := a.resolveOwner(sess, targetOwnerID)
	if err != nil {
		return nil, err
	}
	schools, err := a.store.ListSchools(owner)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// FetchSchoolByID reads one school from a user's partition.
func (a *App) FetchSchoolByID(ctx context.Context, sess *Session, targetOwnerID, schoolID string) (domain.School, error) {
	owner, err := a.resolveOwner(sess, targetOwnerID)
	if err != nil {
		return domain.School{}, err
	}
	school, found, err := a.store.GetSchool(owner, schoolID)
	if err != nil {
		return domain.School{}, fmt.Errorf("load school: %w", err)
	}
	if !found {
		return domain.School{}, ErrSchoolNotFound
	}
	return school, nil
}

// ListUserProfiles returns every user profile. Admin only.
func (a *App) ListUserProfiles(ctx context.Context, sess *Session) ([]domain.UserProfile, error) {
	if sess == nil {
		return nil, ErrUnauthenticated
	}
	if !sess.Admin {
		return nil, ErrPermissionDenied
	}
	profiles, err := a.store.ListUserProfiles()
	if err != nil {
		return nil, fmt.Errorf("list user profiles: %w", err)
	}
	return profiles, nil
}

// dedupClassNames trims and deduplicates while preserving first-seen order.
func dedupClassNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
