package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/models"
)

// EvaluationFilter narrows evaluation listings. VisibleTo limits results to
// evaluations a student can see: those of courses it is enrolled in or those
// holding a grade entry for it.
type EvaluationFilter struct {
	CourseID  *uint
	CourseIDs *[]uint
	VisibleTo *uint
	Page      int
	PageSize  int
}

// EvaluationRepository persists evaluations. Grade entries are written
// through GradeRepository.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	GetByID(ctx context.Context, id uint) (models.Evaluation, error)
	List(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, int64, error)
	Update(ctx context.Context, evaluation *models.Evaluation) error
	Delete(ctx context.Context, id uint) error
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository constructs a GORM backed evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Create inserts the evaluation and its initial grade entries atomically.
func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	grades := evaluation.Grades
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Grades").Create(evaluation).Error; err != nil {
			return err
		}
		for i := range grades {
			grades[i].EvaluationID = evaluation.ID
			grades[i].CourseID = evaluation.CourseID
			if err := upsertScore(tx, &grades[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}

	created, err := r.GetByID(ctx, evaluation.ID)
	if err != nil {
		return err
	}
	*evaluation = created
	return nil
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Grades", func(db *gorm.DB) *gorm.DB { return db.Order("student_id ASC") }).
		First(&evaluation, id).Error
	if err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) List(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Evaluation{})

	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.CourseIDs != nil {
		if len(*filter.CourseIDs) == 0 {
			return []models.Evaluation{}, 0, nil
		}
		query = query.Where("course_id IN ?", *filter.CourseIDs)
	}
	if filter.VisibleTo != nil {
		enrolled := r.db.Model(&models.CourseStudent{}).Select("course_id").Where("student_id = ?", *filter.VisibleTo)
		graded := r.db.Model(&models.Grade{}).Select("evaluation_id").Where("student_id = ?", *filter.VisibleTo)
		query = query.Where("course_id IN (?) OR id IN (?)", enrolled, graded)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var evaluations []models.Evaluation
	err := paginate(query, filter.Page, filter.PageSize).
		Preload("Grades", func(db *gorm.DB) *gorm.DB { return db.Order("student_id ASC") }).
		Order("created_at DESC, id DESC").
		Find(&evaluations).Error
	if err != nil {
		return nil, 0, err
	}

	return evaluations, total, nil
}

func (r *evaluationRepository) Update(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Omit("Grades").Save(evaluation).Error
}

func (r *evaluationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("evaluation_id = ?", id).Delete(&models.Grade{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Evaluation{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
