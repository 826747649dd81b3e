package store

import (
	"sync"

	"github.com/harshsingh9817/datacollection/pkg/domain"
)

// MemoryStore keeps all records in-process. Used in tests as the record-store
// double; the semantics mirror GormStore, including atomic cascade deletes.
type MemoryStore struct {
	mu            sync.RWMutex
	profiles      map[string]domain.UserProfile
	profileOrder  []string
	schools       map[string]domain.School // key: owner/id
	schoolOrder   []string
	students      map[string]domain.Student
	studentOrder  []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]domain.UserProfile),
		schools:  make(map[string]domain.School),
		students: make(map[string]domain.Student),
	}
}

func scopedKey(ownerID, id string) string { return ownerID + "/" + id }

// SaveUserProfile stores or replaces a profile.
func (m *MemoryStore) SaveUserProfile(p domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[p.ID]; !exists {
		m.profileOrder = append(m.profileOrder, p.ID)
	}
	m.profiles[p.ID] = p
	return nil
}

// GetUserProfile returns a profile by identity id.
func (m *MemoryStore) GetUserProfile(id string) (domain.UserProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return p, ok, nil
}

// UpdateUserProfile patches name/email; empty values are left alone.
func (m *MemoryStore) UpdateUserProfile(id, name, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	if name != "" {
		p.Name = name
	}
	if email != "" {
		p.Email = email
	}
	m.profiles[id] = p
	return nil
}

// ListUserProfiles returns all profiles in insertion order.
func (m *MemoryStore) ListUserProfiles() ([]domain.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.UserProfile, 0, len(m.profileOrder))
	for _, id := range m.profileOrder {
		if p, ok := m.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// SaveSchool stores or replaces a school.
func (m *MemoryStore) SaveSchool(s domain.School) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scopedKey(s.OwnerID, s.ID)
	if _, exists := m.schools[key]; !exists {
		m.schoolOrder = append(m.schoolOrder, key)
	}
	m.schools[key] = s
	return nil
}

// GetSchool returns a school within the owner partition.
func (m *MemoryStore) GetSchool(ownerID, id string) (domain.School, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schools[scopedKey(ownerID, id)]
	return s, ok, nil
}

// ListSchools returns the owner's schools in insertion order.
func (m *MemoryStore) ListSchools(ownerID string) ([]domain.School, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.School, 0)
	for _, key := range m.schoolOrder {
		if s, ok := m.schools[key]; ok && s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

// UpdateSchoolName renames a school without touching anything else.
func (m *MemoryStore) UpdateSchoolName(ownerID, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scopedKey(ownerID, id)
	s, ok := m.schools[key]
	if !ok {
		return ErrNotFound
	}
	s.Name = name
	m.schools[key] = s
	return nil
}

// SetSchoolClassNames replaces the class-name array wholesale.
func (m *MemoryStore) SetSchoolClassNames(ownerID, id string, classNames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scopedKey(ownerID, id)
	s, ok := m.schools[key]
	if !ok {
		return ErrNotFound
	}
	s.ClassNames = append([]string(nil), classNames...)
	m.schools[key] = s
	return nil
}

// DeleteSchoolCascade removes the school and listed students atomically.
func (m *MemoryStore) DeleteSchoolCascade(ownerID, schoolID string, studentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scopedKey(ownerID, schoolID)
	if _, ok := m.schools[key]; !ok {
		return ErrNotFound
	}
	delete(m.schools, key)
	for _, id := range studentIDs {
		delete(m.students, scopedKey(ownerID, id))
	}
	return nil
}

// SaveStudent stores or replaces a student.
func (m *MemoryStore) SaveStudent(st domain.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scopedKey(st.OwnerID, st.ID)
	if _, exists := m.students[key]; !exists {
		m.studentOrder = append(m.studentOrder, key)
	}
	m.students[key] = st
	return nil
}

// UpdateStudent merges fields into the stored record.
func (m *MemoryStore) UpdateStudent(ownerID string, st domain.Student, photo PhotoPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scopedKey(ownerID, st.ID)
	existing, ok := m.students[key]
	if !ok {
		return ErrNotFound
	}
	existing.SchoolID = st.SchoolID
	existing.ClassName = st.ClassName
	existing.Name = st.Name
	existing.FatherName = st.FatherName
	existing.RollNumber = st.RollNumber
	existing.DateOfBirth = st.DateOfBirth
	existing.Address = st.Address
	existing.ContactNumber = st.ContactNumber
	switch photo {
	case PhotoSet:
		existing.PhotoAssetRef = st.PhotoAssetRef
	case PhotoCleared:
		existing.PhotoAssetRef = ""
	}
	m.students[key] = existing
	return nil
}

// GetStudent returns a student within the owner partition.
func (m *MemoryStore) GetStudent(ownerID, id string) (domain.Student, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[scopedKey(ownerID, id)]
	return st, ok, nil
}

// ListStudents returns the owner's students in insertion order.
func (m *MemoryStore) ListStudents(ownerID string) ([]domain.Student, error) {
	return m.filterStudents(func(st domain.Student) bool {
		return st.OwnerID == ownerID
	})
}

// ListStudentsBySchool filters students by school within the owner partition.
func (m *MemoryStore) ListStudentsBySchool(ownerID, schoolID string) ([]domain.Student, error) {
	return m.filterStudents(func(st domain.Student) bool {
		return st.OwnerID == ownerID && st.SchoolID == schoolID
	})
}

// ListStudentsByClass filters students by school and class label.
func (m *MemoryStore) ListStudentsByClass(ownerID, schoolID, className string) ([]domain.Student, error) {
	return m.filterStudents(func(st domain.Student) bool {
		return st.OwnerID == ownerID && st.SchoolID == schoolID && st.ClassName == className
	})
}

func (m *MemoryStore) filterStudents(keep func(domain.Student) bool) ([]domain.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Student, 0)
	for _, key := range m.studentOrder {
		if st, ok := m.students[key]; ok && keep(st) {
			out = append(out, st)
		}
	}
	return out, nil
}

// DeleteStudent removes one student record.
func (m *MemoryStore) DeleteStudent(ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scopedKey(ownerID, id)
	if _, ok := m.students[key]; !ok {
		return ErrNotFound
	}
	delete(m.students, key)
	return nil
}
