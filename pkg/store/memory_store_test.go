package store

import (
	"errors"
	"testing"

	"github.com/harshsingh9817/datacollection/pkg/domain"
)

func TestMemoryStoreOwnerPartitioning(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveSchool(domain.School{ID: "s1", OwnerID: "u1", Name: "Springfield High"}); err != nil {
		t.Fatalf("save school: %v", err)
	}
	if err := s.SaveSchool(domain.School{ID: "s2", OwnerID: "u2", Name: "Shelbyville Elementary"}); err != nil {
		t.Fatalf("save school: %v", err)
	}

	schools, err := s.ListSchools("u1")
	if err != nil {
		t.Fatalf("list schools: %v", err)
	}
	if len(schools) != 1 || schools[0].ID != "s1" {
		t.Fatalf("expected only u1's school, got %+v", schools)
	}

	// A scoped get never crosses partitions.
	if _, ok, _ := s.GetSchool("u1", "s2"); ok {
		t.Fatalf("expected s2 to be invisible under owner u1")
	}
}

func TestMemoryStoreStudentQueries(t *testing.T) {
	s := NewMemoryStore()
	students := []domain.Student{
		{ID: "st1", OwnerID: "u1", SchoolID: "s1", ClassName: "5th Grade", Name: "Jane Doe"},
		{ID: "st2", OwnerID: "u1", SchoolID: "s1", ClassName: "6th Grade", Name: "John Roe"},
		{ID: "st3", OwnerID: "u1", SchoolID: "s2", ClassName: "5th Grade", Name: "Ann Poe"},
	}
	for _, st := range students {
		if err := s.SaveStudent(st); err != nil {
			t.Fatalf("save student: %v", err)
		}
	}

	bySchool, err := s.ListStudentsBySchool("u1", "s1")
	if err != nil {
		t.Fatalf("list by school: %v", err)
	}
	if len(bySchool) != 2 {
		t.Fatalf("expected 2 students in s1, got %d", len(bySchool))
	}

	byClass, err := s.ListStudentsByClass("u1", "s1", "5th Grade")
	if err != nil {
		t.Fatalf("list by class: %v", err)
	}
	if len(byClass) != 1 || byClass[0].ID != "st1" {
		t.Fatalf("expected st1 only, got %+v", byClass)
	}
}

func TestMemoryStoreUpdateStudentPhotoPatch(t *testing.T) {
	s := NewMemoryStore()
	st := domain.Student{ID: "st1", OwnerID: "u1", SchoolID: "s1", ClassName: "5th Grade", Name: "Jane", PhotoAssetRef: "ref-old"}
	if err := s.SaveStudent(st); err != nil {
		t.Fatalf("save student: %v", err)
	}

	st.Name = "Jane Doe"
	if err := s.UpdateStudent("u1", st, PhotoUnchanged); err != nil {
		t.Fatalf("update student: %v", err)
	}
	got, _, _ := s.GetStudent("u1", "st1")
	if got.PhotoAssetRef != "ref-old" || got.Name != "Jane Doe" {
		t.Fatalf("unchanged patch altered photo: %+v", got)
	}

	st.PhotoAssetRef = "ref-new"
	if err := s.UpdateStudent("u1", st, PhotoSet); err != nil {
		t.Fatalf("update student: %v", err)
	}
	got, _, _ = s.GetStudent("u1", "st1")
	if got.PhotoAssetRef != "ref-new" {
		t.Fatalf("photo = %q, want ref-new", got.PhotoAssetRef)
	}

	if err := s.UpdateStudent("u1", st, PhotoCleared); err != nil {
		t.Fatalf("update student: %v", err)
	}
	got, _, _ = s.GetStudent("u1", "st1")
	if got.PhotoAssetRef != "" {
		t.Fatalf("photo = %q, want cleared", got.PhotoAssetRef)
	}
}

func TestMemoryStoreDeleteSchoolCascade(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveSchool(domain.School{ID: "s1", OwnerID: "u1", Name: "Springfield High"}); err != nil {
		t.Fatalf("save school: %v", err)
	}
	for _, id := range []string{"st1", "st2"} {
		if err := s.SaveStudent(domain.Student{ID: id, OwnerID: "u1", SchoolID: "s1", ClassName: "5th Grade", Name: id}); err != nil {
			t.Fatalf("save student: %v", err)
		}
	}
	if err := s.SaveStudent(domain.Student{ID: "st3", OwnerID: "u1", SchoolID: "s2", ClassName: "5th Grade", Name: "other school"}); err != nil {
		t.Fatalf("save student: %v", err)
	}

	if err := s.DeleteSchoolCascade("u1", "s1", []string{"st1", "st2"}); err != nil {
		t.Fatalf("delete school cascade: %v", err)
	}
	if _, ok, _ := s.GetSchool("u1", "s1"); ok {
		t.Fatalf("school should be gone")
	}
	remaining, _ := s.ListStudents("u1")
	if len(remaining) != 1 || remaining[0].ID != "st3" {
		t.Fatalf("expected only st3 to remain, got %+v", remaining)
	}

	if err := s.DeleteSchoolCascade("u1", "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUpdateUserProfilePartial(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveUserProfile(domain.UserProfile{ID: "u1", Email: "a@example.com", Name: "A"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if err := s.UpdateUserProfile("u1", "Alice", ""); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	p, _, _ := s.GetUserProfile("u1")
	if p.Name != "Alice" || p.Email != "a@example.com" {
		t.Fatalf("partial update wrong: %+v", p)
	}
	if err := s.UpdateUserProfile("missing", "x", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUpdateSchoolNameRenamesInPlace(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveSchool(domain.School{ID: "s1", OwnerID: "u1", Name: "First", ClassNames: []string{"5th Grade"}}); err != nil {
		t.Fatalf("save school: %v", err)
	}
	if err := s.SaveSchool(domain.School{ID: "s2", OwnerID: "u1", Name: "Second"}); err != nil {
		t.Fatalf("save school: %v", err)
	}

	if err := s.UpdateSchoolName("u1", "s1", "First Renamed"); err != nil {
		t.Fatalf("update school name: %v", err)
	}
	got, _, _ := s.GetSchool("u1", "s1")
	if got.Name != "First Renamed" {
		t.Fatalf("name = %q", got.Name)
	}
	if len(got.ClassNames) != 1 || got.ClassNames[0] != "5th Grade" {
		t.Fatalf("class names disturbed by rename: %v", got.ClassNames)
	}
	// Renaming must not reshuffle the owner's listing order.
	schools, _ := s.ListSchools("u1")
	if len(schools) != 2 || schools[0].ID != "s1" || schools[1].ID != "s2" {
		t.Fatalf("list order changed after rename: %+v", schools)
	}

	if err := s.UpdateSchoolName("u1", "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
