package state

import (
	"context"
	"testing"

	"github.com/harshsingh9817/datacollection/pkg/domain"
	"github.com/harshsingh9817/datacollection/pkg/store"
)

func seedStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.SaveUserProfile(domain.UserProfile{ID: "u1", Email: "u1@example.com", Name: "One"}); err != nil {
		t.Fatalf("SaveUserProfile: %v", err)
	}
	if err := st.SaveUserProfile(domain.UserProfile{ID: "u2", Email: "u2@example.com", Name: "Two"}); err != nil {
		t.Fatalf("SaveUserProfile: %v", err)
	}
	if err := st.SaveSchool(domain.School{ID: "s1", OwnerID: "u1", Name: "North School"}); err != nil {
		t.Fatalf("SaveSchool: %v", err)
	}
	if err := st.SaveSchool(domain.School{ID: "s2", OwnerID: "u2", Name: "South School"}); err != nil {
		t.Fatalf("SaveSchool: %v", err)
	}
	if err := st.SaveStudent(domain.Student{ID: "st1", OwnerID: "u1", SchoolID: "s1", ClassName: "1st Grade", Name: "Asha"}); err != nil {
		t.Fatalf("SaveStudent: %v", err)
	}
	if err := st.SaveStudent(domain.Student{ID: "st2", OwnerID: "u1", SchoolID: "s1", ClassName: "2nd Grade", Name: "Bina"}); err != nil {
		t.Fatalf("SaveStudent: %v", err)
	}
	return st
}

func TestLoadScopesToOwner(t *testing.T) {
	st := seedStore(t)
	c := NewCache(st, "u1", false)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.IsLoading() {
		t.Fatal("IsLoading true after Load returned")
	}
	schools := c.Schools()
	if len(schools) != 1 || schools[0].ID != "s1" {
		t.Fatalf("schools = %+v, want only s1", schools)
	}
	if got := len(c.Students()); got != 2 {
		t.Fatalf("students = %d, want 2", got)
	}
	if got := c.UserProfiles(); got != nil {
		t.Fatalf("non-admin cache has profiles: %+v", got)
	}
}

func TestLoadAdminIncludesProfiles(t *testing.T) {
	st := seedStore(t)
	c := NewCache(st, "u2", true)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(c.UserProfiles()); got != 2 {
		t.Fatalf("profiles = %d, want 2", got)
	}
	schools := c.Schools()
	if len(schools) != 1 || schools[0].ID != "s2" {
		t.Fatalf("admin own schools = %+v, want only s2", schools)
	}
}

func TestPatchMethods(t *testing.T) {
	st := seedStore(t)
	c := NewCache(st, "u1", false)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	c.UpsertSchool(domain.School{ID: "s9", OwnerID: "u1", Name: "East School"})
	if got := len(c.Schools()); got != 2 {
		t.Fatalf("schools after upsert = %d, want 2", got)
	}
	c.UpsertSchool(domain.School{ID: "s9", OwnerID: "u1", Name: "East School Renamed"})
	schools := c.Schools()
	if len(schools) != 2 || schools[1].Name != "East School Renamed" {
		t.Fatalf("upsert did not replace in place: %+v", schools)
	}

	c.SetSchoolClassNames("s9", []string{"Nursery", "LKG"})
	schools = c.Schools()
	if got := schools[1].ClassNames; len(got) != 2 || got[0] != "Nursery" {
		t.Fatalf("class names = %v", got)
	}

	c.AppendStudent(domain.Student{ID: "st9", OwnerID: "u1", SchoolID: "s9", Name: "Chand"})
	c.ReplaceStudent(domain.Student{ID: "st1", OwnerID: "u1", SchoolID: "s1", ClassName: "1st Grade", Name: "Asha Updated"})
	found := false
	for _, s := range c.Students() {
		if s.ID == "st1" {
			found = true
			if s.Name != "Asha Updated" {
				t.Fatalf("replace did not take: %+v", s)
			}
		}
	}
	if !found {
		t.Fatal("st1 missing after replace")
	}

	c.RemoveStudent("st2")
	if got := len(c.Students()); got != 2 {
		t.Fatalf("students after remove = %d, want 2", got)
	}

	c.RemoveSchool("s9")
	if got := len(c.Schools()); got != 1 {
		t.Fatalf("schools after remove = %d, want 1", got)
	}
	for _, s := range c.Students() {
		if s.SchoolID == "s9" {
			t.Fatalf("student %s survived school removal", s.ID)
		}
	}
}

func TestClearDiscardsLatePatches(t *testing.T) {
	st := seedStore(t)
	c := NewCache(st, "u1", false)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.Clear()
	if got := c.Schools(); got != nil {
		t.Fatalf("schools after Clear = %+v", got)
	}
	c.UpsertSchool(domain.School{ID: "s1", OwnerID: "u1", Name: "Back"})
	c.AppendStudent(domain.Student{ID: "st1", OwnerID: "u1"})
	if got := c.Schools(); got != nil {
		t.Fatalf("patch applied after Clear: %+v", got)
	}
	if got := c.Students(); got != nil {
		t.Fatalf("patch applied after Clear: %+v", got)
	}
	// Loading again after Clear stays a no-op for the same reason.
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load after Clear: %v", err)
	}
	if got := c.Schools(); got != nil {
		t.Fatalf("Load repopulated a cleared cache: %+v", got)
	}
}

func TestLoadPartialFailure(t *testing.T) {
	st := seedStore(t)
	failing := &failingStudents{MemoryStore: st}
	c := NewCache(failing, "u1", false)
	err := c.Load(context.Background())
	if err == nil {
		t.Fatal("Load returned nil despite student failure")
	}
	// Schools loaded independently of the failed student fetch.
	if got := len(c.Schools()); got != 1 {
		t.Fatalf("schools = %d, want 1", got)
	}
	if got := c.Students(); got != nil {
		t.Fatalf("students = %+v, want nil", got)
	}
}

type failingStudents struct {
	*store.MemoryStore
}

func (f *failingStudents) ListStudents(ownerID string) ([]domain.Student, error) {
	return nil, context.DeadlineExceeded
}
