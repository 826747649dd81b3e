package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/harshsingh9817/datacollection/internal/util"
	"github.com/harshsingh9817/datacollection/pkg/domain"
	"github.com/harshsingh9817/datacollection/pkg/store"
)

// AddStudent creates a student, uploading the photo first when one is given.
// A failed upload aborts the whole operation: no record is ever created
// without the photo it was asked to carry.
func (a *App) AddStudent(ctx context.Context, sess *Session, targetOwnerID string, in StudentInput, photo *PhotoUpload) (domain.Student, error) {
	owner, err := a.resolveOwnerForWrite(sess, targetOwnerID)
	if err != nil {
		return domain.Student{}, err
	}
	school, found, err := a.store.GetSchool(owner, in.SchoolID)
	if err != nil {
		return domain.Student{}, fmt.Errorf("load school: %w", err)
	}
	if !found {
		return domain.Student{}, ErrSchoolNotFound
	}

	var assetRef string
	if photo != nil {
		assetRef, err = a.uploadPhoto(ctx, photo, school.Name, in.ClassName)
		if err != nil {
			return domain.Student{}, err
		}
	}

	st := domain.Student{
		ID:            util.NewID(),
		OwnerID:       owner,
		SchoolID:      in.SchoolID,
		ClassName:     in.ClassName,
		Name:          in.Name,
		FatherName:    in.FatherName,
		RollNumber:    in.RollNumber,
		DateOfBirth:   in.DateOfBirth,
		Address:       in.Address,
		ContactNumber: in.ContactNumber,
		PhotoAssetRef: assetRef,
	}
	if err := a.store.SaveStudent(st); err != nil {
		// The record write failed after the blob landed; release the blob so
		// it does not linger unreferenced.
		a.deleteAssetBestEffort(ctx, assetRef)
		return domain.Student{}, fmt.Errorf("create student: %w", err)
	}
	if owner == sess.Identity.ID {
		sess.Cache.AppendStudent(st)
	}
	return st, nil
}

// UpdateStudent rewrites a student's fields. A new photo is uploaded before
// the old blob is released, never the other way around; removePhoto clears
// the stored reference outright; otherwise the existing photo is preserved.
func (a *App) UpdateStudent(ctx context.Context, sess *Session, targetOwnerID, studentID string, in StudentInput, photo *PhotoUpload, removePhoto bool) (domain.Student, error) {
	owner, err := a.resolveOwnerForWrite(sess, targetOwnerID)
	if err != nil {
		return domain.Student{}, err
	}
	existing, found, err := a.store.GetStudent(owner, studentID)
	if err != nil {
		return domain.Student{}, fmt.Errorf("load student: %w", err)
	}
	if !found {
		return domain.Student{}, ErrStudentNotFound
	}
	school, found, err := a.store.GetSchool(owner, in.SchoolID)
	if err != nil {
		return domain.Student{}, fmt.Errorf("load school: %w", err)
	}
	if !found {
		return domain.Student{}, ErrSchoolNotFound
	}

	patch := store.PhotoUnchanged
	assetRef := existing.PhotoAssetRef
	switch {
	case photo != nil:
		newRef, err := a.uploadPhoto(ctx, photo, school.Name, in.ClassName)
		if err != nil {
			return domain.Student{}, err
		}
		if existing.PhotoAssetRef != "" && existing.PhotoAssetRef != newRef {
			a.deleteAssetBestEffort(ctx, existing.PhotoAssetRef)
		}
		assetRef = newRef
		patch = store.PhotoSet
	case removePhoto:
		a.deleteAssetBestEffort(ctx, existing.PhotoAssetRef)
		assetRef = ""
		patch = store.PhotoCleared
	}

	st := domain.Student{
		ID:            studentID,
		OwnerID:       owner,
		SchoolID:      in.SchoolID,
		ClassName:     in.ClassName,
		Name:          in.Name,
		FatherName:    in.FatherName,
		RollNumber:    in.RollNumber,
		DateOfBirth:   in.DateOfBirth,
		Address:       in.Address,
		ContactNumber: in.ContactNumber,
		PhotoAssetRef: assetRef,
	}
	if err := a.store.UpdateStudent(owner, st, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Student{}, ErrStudentNotFound
		}
		return domain.Student{}, fmt.Errorf("update student: %w", err)
	}
	if owner == sess.Identity.ID {
		// Full replacement, not a merge, so no stale field survives.
		sess.Cache.ReplaceStudent(st)
	}
	return st, nil
}

// DeleteStudent removes a student record after releasing its photo blob
// best-effort.
func (a *App) DeleteStudent(ctx context.Context, sess *Session, targetOwnerID, studentID string) error {
	owner, err := a.resolveOwnerForWrite(sess, targetOwnerID)
	if err != nil {
		return err
	}
	existing, found, err := a.store.GetStudent(owner, studentID)
	if err != nil {
		return fmt.Errorf("load student: %w", err)
	}
	if !found {
		return ErrStudentNotFound
	}
	a.deleteAssetBestEffort(ctx, existing.PhotoAssetRef)
	if err := a.store.DeleteStudent(owner, studentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrStudentNotFound
		}
		return fmt.Errorf("delete student: %w", err)
	}
	if owner == sess.Identity.ID {
		sess.Cache.RemoveStudent(studentID)
	}
	return nil
}

// FetchStudentByID reads one student from a user's partition.
func (a *App) FetchStudentByID(ctx context.Context, sess *Session, targetOwnerID, studentID string) (domain.Student, error) {
	owner, err := a.resolveOwner(sess, targetOwnerID)
	if err != nil {
		return domain.Student{}, err
	}
	st, found, err := a.store.GetStudent(owner, studentID)
	if err != nil {
		return domain.Student{}, fmt.Errorf("load student: %w", err)
	}
	if !found {
		return domain.Student{}, ErrStudentNotFound
	}
	return st, nil
}

// FetchStudentsForSchool reads every student of one school. Admin reads of
// another owner bypass the session cache.
func (a *App) FetchStudentsForSchool(ctx context.Context, sess *Session, targetOwnerID, schoolID string) ([]domain.Student, error) {
	owner, err := a.resolveOwner(sess, targetOwnerID)
	if err != nil {
		return nil, err
	}
	students, err := a.store.ListStudentsBySchool(owner, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FetchStudentsForClass reads the students of one class within a school.
func (a *App) FetchStudentsForClass(ctx context.Context, sess *Session, targetOwnerID, schoolID, className string) ([]domain.Student, error) {
	owner, err := a.resolveOwner(sess, targetOwnerID)
	if err != nil {
		return nil, err
	}
	students, err := a.store.ListStudentsByClass(owner, schoolID, className)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// PhotoPreviewURL resolves a student's stored photo to its public URL, or the
// placeholder indicator when no photo is stored or the store is unconfigured.
func (a *App) PhotoPreviewURL(st domain.Student) string {
	if st.PhotoAssetRef == "" {
		return domain.PlaceholderPhotoURL
	}
	if url := a.photos.PreviewURL(st.PhotoAssetRef); url != "" {
		return url
	}
	return domain.PlaceholderPhotoURL
}
