// Package state holds the in-memory mirror of the signed-in user's own
// records. The cache is patched after each successful self-scoped mutation
// instead of re-fetching; admin reads of other owners never touch it.
package state

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/harshsingh9817/datacollection/pkg/domain"
	"github.com/harshsingh9817/datacollection/pkg/store"
)

// Cache mirrors one identity's schools and students, plus all user profiles
// when the identity is an admin. Only this package mutates the mirror.
type Cache struct {
	store   store.Store
	ownerID string
	admin   bool

	mu       sync.RWMutex
	loading  bool
	closed   bool
	schools  []domain.School
	students []domain.Student
	profiles []domain.UserProfile
}

// NewCache creates an empty cache bound to one identity.
func NewCache(st store.Store, ownerID string, admin bool) *Cache {
	return &Cache{store: st, ownerID: ownerID, admin: admin}
}

// OwnerID returns the identity this cache mirrors.
func (c *Cache) OwnerID() string { return c.ownerID }

// IsLoading reports whether the initial data load is still in flight.
// Callers must block interactive mutation while true.
func (c *Cache) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Load fetches the identity's own schools and students, and every user
// profile when admin. The loads run concurrently and fail independently: one
// failing does not stop the others, and all failures are reported together.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	c.mu.Unlock()

	var (
		schools  []domain.School
		students []domain.Student
		profiles []domain.UserProfile

		schoolsErr, studentsErr, profilesErr error
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		schools, schoolsErr = c.store.ListSchools(c.ownerID)
		return nil
	})
	g.Go(func() error {
		students, studentsErr = c.store.ListStudents(c.ownerID)
		return nil
	})
	if c.admin {
		g.Go(func() error {
			profiles, profilesErr = c.store.ListUserProfiles()
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if c.closed {
		// The session ended while the load was in flight; discard results.
		return nil
	}
	if schoolsErr == nil {
		c.schools = schools
	}
	if studentsErr == nil {
		c.students = students
	}
	if c.admin {
		if profilesErr == nil {
			c.profiles = profiles
		}
	} else {
		// A regular user never sees other profiles; drop anything stale.
		c.profiles = nil
	}
	return errors.Join(schoolsErr, studentsErr, profilesErr)
}

// Clear empties the mirror and marks the cache closed. Late patches and load
// results arriving after Clear are discarded.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.loading = false
	c.schools = nil
	c.students = nil
	c.profiles = nil
}

// Schools returns a copy of the mirrored schools.
func (c *Cache) Schools() []domain.School {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.School(nil), c.schools...)
}

// Students returns a copy of the mirrored students.
func (c *Cache) Students() []domain.Student {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Student(nil), c.students...)
}

// UserProfiles returns a copy of the mirrored profiles (admin only).
func (c *Cache) UserProfiles() []domain.UserProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.UserProfile(nil), c.profiles...)
}

// UpsertSchool appends or replaces a school in the mirror.
func (c *Cache) UpsertSchool(s domain.School) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for i := range c.schools {
		if c.schools[i].ID == s.ID {
			c.schools[i] = s
			return
		}
	}
	c.schools = append(c.schools, s)
}

// SetSchoolClassNames patches one school's class-name list.
func (c *Cache) SetSchoolClassNames(schoolID string, classNames []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for i := range c.schools {
		if c.schools[i].ID == schoolID {
			c.schools[i].ClassNames = append([]string(nil), classNames...)
			return
		}
	}
}

// RemoveSchool drops a school and every student that belonged to it.
func (c *Cache) RemoveSchool(schoolID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	schools := c.schools[:0]
	for _, s := range c.schools {
		if s.ID != schoolID {
			schools = append(schools, s)
		}
	}
	c.schools = schools
	students := c.students[:0]
	for _, st := range c.students {
		if st.SchoolID != schoolID {
			students = append(students, st)
		}
	}
	c.students = students
}

// AppendStudent adds a newly created student to the mirror.
func (c *Cache) AppendStudent(st domain.Student) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.students = append(c.students, st)
}

// ReplaceStudent swaps the mirrored student by id. A full replacement, not a
// merge, so stale nested fields cannot survive.
func (c *Cache) ReplaceStudent(st domain.Student) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for i := range c.students {
		if c.students[i].ID == st.ID {
			c.students[i] = st
			return
		}
	}
}

// RemoveStudent drops a student from the mirror.
func (c *Cache) RemoveStudent(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	students := c.students[:0]
	for _, st := range c.students {
		if st.ID != id {
			students = append(students, st)
		}
	}
	c.students = students
}
