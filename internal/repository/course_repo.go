package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/sena-attendance-api/internal/models"
)

// CourseFilter narrows course listings. InstructorID and StudentID are
// combined with AND when both are set.
type CourseFilter struct {
	InstructorID *uint
	StudentID    *uint
	Search       string
	Page         int
	PageSize     int
}

// CourseRepository persists courses and their rosters.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course, studentIDs []uint) error
	GetByID(ctx context.Context, id uint) (models.Course, error)
	CodeTaken(ctx context.Context, code string, excludeID uint) (bool, error)
	List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uint) error
	AddStudents(ctx context.Context, courseID uint, studentIDs []uint) error
	RemoveStudents(ctx context.Context, courseID uint, studentIDs []uint) error
	IDsByInstructor(ctx context.Context, instructorID uint) ([]uint, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a GORM backed course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course, studentIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Enrollments").Create(course).Error; err != nil {
			return err
		}
		return enroll(tx, course.ID, studentIDs)
	})
	if err != nil {
		return translate(err)
	}

	created, err := r.GetByID(ctx, course.ID)
	if err != nil {
		return err
	}
	*course = created
	return nil
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).
		Preload("Enrollments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, student_id ASC") }).
		First(&course, id).Error
	if err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) CodeTaken(ctx context.Context, code string, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{}).Where("code = ?", strings.TrimSpace(code))
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{})

	if filter.InstructorID != nil {
		query = query.Where("instructor_id = ?", *filter.InstructorID)
	}
	if filter.StudentID != nil {
		query = query.Where("id IN (?)", r.db.Model(&models.CourseStudent{}).Select("course_id").Where("student_id = ?", *filter.StudentID))
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []models.Course
	err := paginate(query, filter.Page, filter.PageSize).
		Preload("Enrollments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, student_id ASC") }).
		Order("start_date DESC, id DESC").
		Find(&courses).Error
	if err != nil {
		return nil, 0, err
	}

	return courses, total, nil
}

func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	return translate(r.db.WithContext(ctx).Omit("Enrollments").Save(course).Error)
}

// Delete removes the course together with its roster, attendance records,
// evaluations and grade entries.
func (r *courseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependents := []interface{}{&models.Grade{}, &models.Evaluation{}, &models.Attendance{}, &models.CourseStudent{}}
		for _, model := range dependents {
			if err := tx.Where("course_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}

		result := tx.Delete(&models.Course{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *courseRepository) AddStudents(ctx context.Context, courseID uint, studentIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return enroll(tx, courseID, studentIDs)
	})
}

func (r *courseRepository) RemoveStudents(ctx context.Context, courseID uint, studentIDs []uint) error {
	if len(studentIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("course_id = ? AND student_id IN ?", courseID, studentIDs).
		Delete(&models.CourseStudent{}).Error
}

func (r *courseRepository) IDsByInstructor(ctx context.Context, instructorID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Course{}).Where("instructor_id = ?", instructorID).Pluck("id", &ids).Error
	return ids, err
}

// enroll inserts roster rows, skipping students that are already enrolled.
func enroll(tx *gorm.DB, courseID uint, studentIDs []uint) error {
	if len(studentIDs) == 0 {
		return nil
	}

	rows := make([]models.CourseStudent, 0, len(studentIDs))
	seen := make(map[uint]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, models.CourseStudent{CourseID: courseID, StudentID: id})
	}

	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
