package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/harshsingh9817/datacollection/pkg/domain"
)

const migrateLockID int64 = 84218421

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent replicas do not race each other.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if err := tx.AutoMigrate(&UserProfileModel{}, &SchoolModel{}, &StudentModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// SaveUserProfile inserts or replaces a profile record.
func (g *GormStore) SaveUserProfile(p domain.UserProfile) error {
	model := UserProfileModel{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save user profile: %w", err)
	}
	return nil
}

// GetUserProfile returns a profile by identity id.
func (g *GormStore) GetUserProfile(id string) (domain.UserProfile, bool, error) {
	var model UserProfileModel
	err := g.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.UserProfile{}, false, nil
	}
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("get user profile: %w", err)
	}
	return profileFromModel(model), true, nil
}

// UpdateUserProfile patches name and/or email. Empty values are left alone.
func (g *GormStore) UpdateUserProfile(id, name, email string) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if name != "" {
		updates["name"] = name
	}
	if email != "" {
		updates["email"] = email
	}
	res := g.db.Model(&UserProfileModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update user profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUserProfiles returns every profile. Admin-only at the call site.
func (g *GormStore) ListUserProfiles() ([]domain.UserProfile, error) {
	var models []UserProfileModel
	if err := g.db.Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list user profiles: %w", err)
	}
	out := make([]domain.UserProfile, 0, len(models))
	for _, m := range models {
		out = append(out, profileFromModel(m))
	}
	return out, nil
}

// SaveSchool inserts or replaces a school record.
func (g *GormStore) SaveSchool(s domain.School) error {
	model, err := schoolToModel(s)
	if err != nil {
		return err
	}
	if err := g.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save school: %w", err)
	}
	return nil
}

// UpdateSchoolName renames a school in place. A full Save would rewrite
// created_at and reshuffle the owner's listing order, so only the name column
// is updated.
func (g *GormStore) UpdateSchoolName(ownerID, id, name string) error {
	res := g.db.Model(&SchoolModel{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Updates(map[string]any{"name": name, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("update school: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSchool returns a school by id within the owner partition.
func (g *GormStore) GetSchool(ownerID, id string) (domain.School, bool, error) {
	var model SchoolModel
	err := g.db.First(&model, "owner_id = ? AND id = ?", ownerID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.School{}, false, nil
	}
	if err != nil {
		return domain.School{}, false, fmt.Errorf("get school: %w", err)
	}
	school, err := schoolFromModel(model)
	if err != nil {
		return domain.School{}, false, err
	}
	return school, true, nil
}

// ListSchools returns the owner's schools in creation order.
func (g *GormStore) ListSchools(ownerID string) ([]domain.School, error) {
	var models []SchoolModel
	if err := g.db.Where("owner_id = ?", ownerID).Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	out := make([]domain.School, 0, len(models))
	for _, m := range models {
		school, err := schoolFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, school)
	}
	return out, nil
}

// SetSchoolClassNames replaces the class-name array wholesale.
func (g *GormStore) SetSchoolClassNames(ownerID, id string, classNames []string) error {
	payload, err := json.Marshal(classNames)
	if err != nil {
		return fmt.Errorf("encode class names: %w", err)
	}
	res := g.db.Model(&SchoolModel{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Updates(map[string]any{
			"class_names": datatypes.JSON(payload),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("set class names: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSchoolCascade removes the school and the listed students in one
// transaction. Either everything is gone afterwards or nothing is.
func (g *GormStore) DeleteSchoolCascade(ownerID, schoolID string, studentIDs []string) error {
	err := g.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("owner_id = ? AND id = ?", ownerID, schoolID).Delete(&SchoolModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if len(studentIDs) > 0 {
			if err := tx.Where("owner_id = ? AND id IN ?", ownerID, studentIDs).
				Delete(&StudentModel{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete school cascade: %w", err)
	}
	return nil
}

// SaveStudent inserts or replaces a student record.
func (g *GormStore) SaveStudent(st domain.Student) error {
	model := studentToModel(st)
	if err := g.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save student: %w", err)
	}
	return nil
}

// UpdateStudent merges the student's fields into the stored record. The photo
// reference is set, cleared, or preserved per the patch mode.
func (g *GormStore) UpdateStudent(ownerID string, st domain.Student, photo PhotoPatch) error {
	updates := map[string]any{
		"school_id":      st.SchoolID,
		"class_name":     st.ClassName,
		"name":           st.Name,
		"father_name":    st.FatherName,
		"roll_number":    st.RollNumber,
		"date_of_birth":  st.DateOfBirth,
		"address":        st.Address,
		"contact_number": st.ContactNumber,
		"updated_at":     time.Now().UTC(),
	}
	switch photo {
	case PhotoSet:
		updates["photo_asset_ref"] = st.PhotoAssetRef
	case PhotoCleared:
		updates["photo_asset_ref"] = nil
	}
	res := g.db.Model(&StudentModel{}).
		Where("owner_id = ? AND id = ?", ownerID, st.ID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update student: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStudent returns a student by id within the owner partition.
func (g *GormStore) GetStudent(ownerID, id string) (domain.Student, bool, error) {
	var model StudentModel
	err := g.db.First(&model, "owner_id = ? AND id = ?", ownerID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Student{}, false, nil
	}
	if err != nil {
		return domain.Student{}, false, fmt.Errorf("get student: %w", err)
	}
	return studentFromModel(model), true, nil
}

// ListStudents returns the owner's students in creation order.
func (g *GormStore) ListStudents(ownerID string) ([]domain.Student, error) {
	return g.listStudents("owner_id = ?", ownerID)
}

// ListStudentsBySchool filters students by school within the owner partition.
func (g *GormStore) ListStudentsBySchool(ownerID, schoolID string) ([]domain.Student, error) {
	return g.listStudents("owner_id = ? AND school_id = ?", ownerID, schoolID)
}

// ListStudentsByClass filters students by school and class label.
func (g *GormStore) ListStudentsByClass(ownerID, schoolID, className string) ([]domain.Student, error) {
	return g.listStudents("owner_id = ? AND school_id = ? AND class_name = ?", ownerID, schoolID, className)
}

func (g *GormStore) listStudents(cond string, args ...any) ([]domain.Student, error) {
	var models []StudentModel
	if err := g.db.Where(cond, args...).Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	out := make([]domain.Student, 0, len(models))
	for _, m := range models {
		out = append(out, studentFromModel(m))
	}
	return out, nil
}

// DeleteStudent removes one student record.
func (g *GormStore) DeleteStudent(ownerID, id string) error {
	res := g.db.Where("owner_id = ? AND id = ?", ownerID, id).Delete(&StudentModel{})
	if res.Error != nil {
		return fmt.Errorf("delete student: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func profileFromModel(m UserProfileModel) domain.UserProfile {
	return domain.UserProfile{ID: m.ID, Email: m.Email, Name: m.Name}
}

func schoolToModel(s domain.School) (SchoolModel, error) {
	names := s.ClassNames
	if names == nil {
		names = []string{}
	}
	payload, err := json.Marshal(names)
	if err != nil {
		return SchoolModel{}, fmt.Errorf("encode class names: %w", err)
	}
	now := time.Now().UTC()
	return SchoolModel{
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		Name:       s.Name,
		ClassNames: datatypes.JSON(payload),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func schoolFromModel(m SchoolModel) (domain.School, error) {
	var names []string
	if len(m.ClassNames) > 0 {
		if err := json.Unmarshal(m.ClassNames, &names); err != nil {
			return domain.School{}, fmt.Errorf("decode class names: %w", err)
		}
	}
	return domain.School{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Name:       m.Name,
		ClassNames: names,
	}, nil
}

func studentToModel(st domain.Student) StudentModel {
	now := time.Now().UTC()
	model := StudentModel{
		ID:            st.ID,
		OwnerID:       st.OwnerID,
		SchoolID:      st.SchoolID,
		ClassName:     st.ClassName,
		Name:          st.Name,
		FatherName:    st.FatherName,
		RollNumber:    st.RollNumber,
		DateOfBirth:   st.DateOfBirth,
		Address:       st.Address,
		ContactNumber: st.ContactNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if st.PhotoAssetRef != "" {
		ref := st.PhotoAssetRef
		model.PhotoAssetRef = &ref
	}
	return model
}

func studentFromModel(m StudentModel) domain.Student {
	st := domain.Student{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		SchoolID:      m.SchoolID,
		ClassName:     m.ClassName,
		Name:          m.Name,
		FatherName:    m.FatherName,
		RollNumber:    m.RollNumber,
		DateOfBirth:   m.DateOfBirth,
		Address:       m.Address,
		ContactNumber: m.ContactNumber,
	}
	if m.PhotoAssetRef != nil {
		st.PhotoAssetRef = *m.PhotoAssetRef
	}
	return st
}
