package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/models"
)

// AttendanceFilter narrows attendance listings. CourseIDs restricts results to
// a set of courses and is applied even when empty, so an instructor without
// courses sees nothing.
type AttendanceFilter struct {
	CourseID  *uint
	StudentID *uint
	CourseIDs *[]uint
	Date      *time.Time
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// AttendanceRepository persists attendance records.
type AttendanceRepository interface {
	Create(ctx context.Context, record *models.Attendance) error
	GetByID(ctx context.Context, id uint) (models.Attendance, error)
	Exists(ctx context.Context, courseID, studentID uint, day time.Time, excludeID uint) (bool, error)
	List(ctx context.Context, filter AttendanceFilter) ([]models.Attendance, int64, error)
	Update(ctx context.Context, record *models.Attendance) error
	Delete(ctx context.Context, id uint) error
	CountByStatus(ctx context.Context, studentID uint) (map[models.AttendanceStatus]int64, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository constructs a GORM backed attendance repository.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	return translate(r.db.WithContext(ctx).Create(record).Error)
}

func (r *attendanceRepository) GetByID(ctx context.Context, id uint) (models.Attendance, error) {
	var record models.Attendance
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return models.Attendance{}, err
	}
	return record, nil
}

func (r *attendanceRepository) Exists(ctx context.Context, courseID, studentID uint, day time.Time, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("course_id = ? AND student_id = ? AND date = ?", courseID, studentID, models.AttendanceDay(day))
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *attendanceRepository) List(ctx context.Context, filter AttendanceFilter) ([]models.Attendance, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Attendance{})

	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CourseIDs != nil {
		if len(*filter.CourseIDs) == 0 {
			return []models.Attendance{}, 0, nil
		}
		query = query.Where("course_id IN ?", *filter.CourseIDs)
	}
	if filter.Date != nil {
		query = query.Where("date = ?", models.AttendanceDay(*filter.Date))
	}
	if filter.From != nil {
		query = query.Where("date >= ?", models.AttendanceDay(*filter.From))
	}
	if filter.To != nil {
		query = query.Where("date <= ?", models.AttendanceDay(*filter.To))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.Attendance
	if err := paginate(query, filter.Page, filter.PageSize).Order("date DESC, id DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *attendanceRepository) Update(ctx context.Context, record *models.Attendance) error {
	return translate(r.db.WithContext(ctx).Save(record).Error)
}

func (r *attendanceRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Attendance{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *attendanceRepository) CountByStatus(ctx context.Context, studentID uint) (map[models.AttendanceStatus]int64, error) {
	var rows []struct {
		Status models.AttendanceStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Select("status, COUNT(*) AS total").
		Where("student_id = ?", studentID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.AttendanceStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
