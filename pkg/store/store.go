package store

import (
	"errors"

	"github.com/harshsingh9817/datacollection/pkg/domain"
)

// ErrNotFound is returned by updates and deletes that target a missing record.
var ErrNotFound = errors.New("record not found")

// PhotoPatch tells UpdateStudent what to do with the stored photo reference.
type PhotoPatch int

const (
	// PhotoUnchanged preserves the existing reference.
	PhotoUnchanged PhotoPatch = iota
	// PhotoSet replaces the reference with Student.PhotoAssetRef.
	PhotoSet
	// PhotoCleared removes the reference entirely. The column is nulled,
	// not left stale.
	PhotoCleared
)

// Store defines persistence for user profiles, schools, and students.
// Schools and students are partitioned by owner: every operation is scoped to
// one ownerID and no cross-partition query exists. Authorization happens
// before these calls, never inside them.
type Store interface {
	// user profiles (global collection, one per identity)
	SaveUserProfile(p domain.UserProfile) error
	GetUserProfile(id string) (domain.UserProfile, bool, error)
	UpdateUserProfile(id, name, email string) error
	ListUserProfiles() ([]domain.UserProfile, error)

	// schools
	SaveSchool(s domain.School) error
	GetSchool(ownerID, id string) (domain.School, bool, error)
	ListSchools(ownerID string) ([]domain.School, error)
	// UpdateSchoolName rewrites only the name column; creation time and the
	// owner's listing order are untouched.
	UpdateSchoolName(ownerID, id, name string) error
	SetSchoolClassNames(ownerID, id string, classNames []string) error
	// DeleteSchoolCascade removes the school and the given students in a
	// single atomic batch.
	DeleteSchoolCascade(ownerID, schoolID string, studentIDs []string) error

	// students
	SaveStudent(st domain.Student) error
	UpdateStudent(ownerID string, st domain.Student, photo PhotoPatch) error
	GetStudent(ownerID, id string) (domain.Student, bool, error)
	ListStudents(ownerID string) ([]domain.Student, error)
	ListStudentsBySchool(ownerID, schoolID string) ([]domain.Student, error)
	ListStudentsByClass(ownerID, schoolID, className string) ([]domain.Student, error)
	DeleteStudent(ownerID, id string) error
}
