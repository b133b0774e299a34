package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/sena-attendance-api/internal/models"
)

// GradeFilter narrows grade entry listings.
type GradeFilter struct {
	StudentID    *uint
	CourseID     *uint
	EvaluationID *uint
	CourseIDs    *[]uint
	GradedOnly   bool
}

// GradeRepository persists grade entries. Writes keyed by evaluation and
// student are upserts so that each student holds at most one entry.
type GradeRepository interface {
	UpsertScore(ctx context.Context, grade *models.Grade) error
	UpsertEvidence(ctx context.Context, grade *models.Grade) error
	GetByID(ctx context.Context, id uint) (models.Grade, error)
	List(ctx context.Context, filter GradeFilter) ([]models.Grade, error)
	Update(ctx context.Context, grade *models.Grade) error
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs a GORM backed grade repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) UpsertScore(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertScore(tx, grade)
	})
}

func (r *gradeRepository) UpsertEvidence(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsert(tx, grade, []string{"evidence", "submitted_at", "course_id", "updated_at"})
	})
}

func (r *gradeRepository) GetByID(ctx context.Context, id uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).First(&grade, id).Error; err != nil {
		return models.Grade{}, err
	}
	return grade, nil
}

func (r *gradeRepository) List(ctx context.Context, filter GradeFilter) ([]models.Grade, error) {
	query := r.db.WithContext(ctx).Model(&models.Grade{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.EvaluationID != nil {
		query = query.Where("evaluation_id = ?", *filter.EvaluationID)
	}
	if filter.CourseIDs != nil {
		if len(*filter.CourseIDs) == 0 {
			return []models.Grade{}, nil
		}
		query = query.Where("course_id IN ?", *filter.CourseIDs)
	}
	if filter.GradedOnly {
		query = query.Where("score IS NOT NULL")
	}

	var grades []models.Grade
	if err := query.Order("evaluation_id ASC, student_id ASC").Find(&grades).Error; err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *gradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Save(grade).Error
}

func upsertScore(tx *gorm.DB, grade *models.Grade) error {
	return upsert(tx, grade, []string{"score", "feedback", "graded_by", "graded_at", "course_id", "updated_at"})
}

// upsert inserts the entry or, when the student already holds one on the
// evaluation, overwrites only the given columns. The stored row is read back
// into grade.
func upsert(tx *gorm.DB, grade *models.Grade, columns []string) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "evaluation_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(grade).Error
	if err != nil {
		return err
	}

	var stored models.Grade
	if err := tx.Where("evaluation_id = ? AND student_id = ?", grade.EvaluationID, grade.StudentID).First(&stored).Error; err != nil {
		return err
	}
	*grade = stored
	return nil
}
