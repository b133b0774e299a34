package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/database"
	"github.com/noah-isme/sena-attendance-api/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, role authz.Role) models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@sena.test", uuid.NewString()[:8]),
		PasswordHash: "hash",
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedCourse(t *testing.T, repo CourseRepository, instructorID uint, code string, students ...uint) models.Course {
	t.Helper()
	course := models.Course{
		Name:         "Programacion " + code,
		Code:         code,
		Description:  "course",
		InstructorID: instructorID,
		StartDate:    time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), &course, students))
	return course
}

func TestCourseRepositoryAddStudentsIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	s1 := seedUser(t, db, "Sara", authz.RoleStudent)
	s2 := seedUser(t, db, "Samuel", authz.RoleStudent)
	course := seedCourse(t, repo, instructor.ID, "ADSO-1", s1.ID)

	require.NoError(t, repo.AddStudents(ctx, course.ID, []uint{s2.ID, s2.ID, s1.ID}))
	once, err := repo.GetByID(ctx, course.ID)
	require.NoError(t, err)

	require.NoError(t, repo.AddStudents(ctx, course.ID, []uint{s2.ID, s2.ID, s1.ID}))
	twice, err := repo.GetByID(ctx, course.ID)
	require.NoError(t, err)

	require.ElementsMatch(t, []uint{s1.ID, s2.ID}, once.StudentIDs())
	require.ElementsMatch(t, once.StudentIDs(), twice.StudentIDs())
}

func TestCourseRepositoryRemoveNonMemberIsNoop(t *testing.T) {
	db := newTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	s1 := seedUser(t, db, "Sara", authz.RoleStudent)
	course := seedCourse(t, repo, instructor.ID, "ADSO-2", s1.ID)

	require.NoError(t, repo.RemoveStudents(ctx, course.ID, []uint{9999}))
	loaded, err := repo.GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{s1.ID}, loaded.StudentIDs())

	require.NoError(t, repo.RemoveStudents(ctx, course.ID, []uint{s1.ID}))
	loaded, err = repo.GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.Empty(t, loaded.StudentIDs())
}

func TestCourseRepositoryDuplicateCode(t *testing.T) {
	db := newTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	seedCourse(t, repo, instructor.ID, "ADSO-3")

	taken, err := repo.CodeTaken(ctx, "ADSO-3", 0)
	require.NoError(t, err)
	require.True(t, taken)

	duplicate := models.Course{Name: "Other", Code: "ADSO-3", Description: "x", InstructorID: instructor.ID, StartDate: time.Now(), EndDate: time.Now()}
	err = repo.Create(ctx, &duplicate, nil)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCourseRepositoryListScopes(t *testing.T) {
	db := newTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	i1 := seedUser(t, db, "Ines", authz.RoleInstructor)
	i2 := seedUser(t, db, "Ivan", authz.RoleInstructor)
	s1 := seedUser(t, db, "Sara", authz.RoleStudent)
	seedCourse(t, repo, i1.ID, "A-1", s1.ID)
	seedCourse(t, repo, i1.ID, "A-2")
	seedCourse(t, repo, i2.ID, "B-1", s1.ID)

	owned, total, err := repo.List(ctx, CourseFilter{InstructorID: &i1.ID})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, owned, 2)

	enrolled, total, err := repo.List(ctx, CourseFilter{StudentID: &s1.ID})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	for _, course := range enrolled {
		require.Contains(t, course.StudentIDs(), s1.ID)
	}

	ids, err := repo.IDsByInstructor(ctx, i2.ID)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestCourseRepositoryDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	courses := NewCourseRepository(db)
	attendance := NewAttendanceRepository(db)
	evaluations := NewEvaluationRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	student := seedUser(t, db, "Sara", authz.RoleStudent)
	course := seedCourse(t, courses, instructor.ID, "ADSO-4", student.ID)

	record := models.Attendance{CourseID: course.ID, StudentID: student.ID, Date: models.AttendanceDay(time.Now()), Status: models.AttendancePresent, CreatedBy: instructor.ID}
	require.NoError(t, attendance.Create(ctx, &record))

	score := 4.0
	evaluation := models.Evaluation{CourseID: course.ID, Title: "Quiz", MaxScore: 5, CreatedBy: instructor.ID,
		Grades: []models.Grade{{StudentID: student.ID, Score: &score}}}
	require.NoError(t, evaluations.Create(ctx, &evaluation))

	require.NoError(t, courses.Delete(ctx, course.ID))

	for _, model := range []interface{}{&models.Attendance{}, &models.Evaluation{}, &models.Grade{}, &models.CourseStudent{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}

	require.ErrorIs(t, courses.Delete(ctx, course.ID), gorm.ErrRecordNotFound)
}

func TestAttendanceRepositoryUniquePerDay(t *testing.T) {
	db := newTestDB(t)
	courses := NewCourseRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	student := seedUser(t, db, "Sara", authz.RoleStudent)
	course := seedCourse(t, courses, instructor.ID, "ADSO-5", student.ID)

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	first := models.Attendance{CourseID: course.ID, StudentID: student.ID, Date: day, Status: models.AttendancePresent, CreatedBy: instructor.ID}
	require.NoError(t, repo.Create(ctx, &first))

	exists, err := repo.Exists(ctx, course.ID, student.ID, day.Add(15*time.Hour), 0)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.Exists(ctx, course.ID, student.ID, day, first.ID)
	require.NoError(t, err)
	require.False(t, exists)

	second := models.Attendance{CourseID: course.ID, StudentID: student.ID, Date: day, Status: models.AttendanceLate, CreatedBy: instructor.ID}
	require.ErrorIs(t, repo.Create(ctx, &second), ErrDuplicate)

	records, total, err := repo.List(ctx, AttendanceFilter{CourseID: &course.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, records, 1)
}

func TestAttendanceRepositoryListAndCounts(t *testing.T) {
	db := newTestDB(t)
	courses := NewCourseRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	student := seedUser(t, db, "Sara", authz.RoleStudent)
	course := seedCourse(t, courses, instructor.ID, "ADSO-6", student.ID)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	statuses := []models.AttendanceStatus{models.AttendancePresent, models.AttendancePresent, models.AttendanceAbsent, models.AttendanceLate}
	for i, status := range statuses {
		record := models.Attendance{CourseID: course.ID, StudentID: student.ID, Date: start.AddDate(0, 0, i), Status: status, CreatedBy: instructor.ID}
		require.NoError(t, repo.Create(ctx, &record))
	}

	from := start.AddDate(0, 0, 1)
	to := start.AddDate(0, 0, 2)
	records, total, err := repo.List(ctx, AttendanceFilter{StudentID: &student.ID, From: &from, To: &to})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, records, 2)

	none := []uint{}
	records, total, err = repo.List(ctx, AttendanceFilter{CourseIDs: &none})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, records)

	counts, err := repo.CountByStatus(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), counts[models.AttendancePresent])
	require.Equal(t, int64(1), counts[models.AttendanceAbsent])
	require.Equal(t, int64(1), counts[models.AttendanceLate])
}

func TestGradeRepositoryUpsertKeepsSingleEntry(t *testing.T) {
	db := newTestDB(t)
	courses := NewCourseRepository(db)
	evaluations := NewEvaluationRepository(db)
	grades := NewGradeRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	student := seedUser(t, db, "Sara", authz.RoleStudent)
	course := seedCourse(t, courses, instructor.ID, "ADSO-7", student.ID)

	evaluation := models.Evaluation{CourseID: course.ID, Title: "Taller", MaxScore: 5, CreatedBy: instructor.ID}
	require.NoError(t, evaluations.Create(ctx, &evaluation))

	first, second := 3.0, 4.5
	entry := models.Grade{EvaluationID: evaluation.ID, CourseID: course.ID, StudentID: student.ID, Score: &first, Feedback: "regular"}
	require.NoError(t, grades.UpsertScore(ctx, &entry))
	firstID := entry.ID

	entry = models.Grade{EvaluationID: evaluation.ID, CourseID: course.ID, StudentID: student.ID, Score: &second, Feedback: "muy bien"}
	require.NoError(t, grades.UpsertScore(ctx, &entry))
	require.Equal(t, firstID, entry.ID)

	stored, err := grades.List(ctx, GradeFilter{EvaluationID: &evaluation.ID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.InDelta(t, 4.5, *stored[0].Score, 1e-9)
	require.Equal(t, "muy bien", stored[0].Feedback)
}

func TestGradeRepositoryEvidenceLeavesScoreUntouched(t *testing.T) {
	db := newTestDB(t)
	courses := NewCourseRepository(db)
	evaluations := NewEvaluationRepository(db)
	grades := NewGradeRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	student := seedUser(t, db, "Sara", authz.RoleStudent)
	course := seedCourse(t, courses, instructor.ID, "ADSO-8", student.ID)

	evaluation := models.Evaluation{CourseID: course.ID, Title: "Proyecto", MaxScore: 5, CreatedBy: instructor.ID}
	require.NoError(t, evaluations.Create(ctx, &evaluation))

	now := time.Now().UTC()
	evidence := models.Grade{EvaluationID: evaluation.ID, CourseID: course.ID, StudentID: student.ID, Evidence: "https://repo.test/v1", SubmittedAt: &now}
	require.NoError(t, grades.UpsertEvidence(ctx, &evidence))
	require.Nil(t, evidence.Score)

	score := 5.0
	graded := models.Grade{EvaluationID: evaluation.ID, CourseID: course.ID, StudentID: student.ID, Score: &score, Feedback: "excelente"}
	require.NoError(t, grades.UpsertScore(ctx, &graded))
	require.Equal(t, "https://repo.test/v1", graded.Evidence)

	resubmitted := models.Grade{EvaluationID: evaluation.ID, CourseID: course.ID, StudentID: student.ID, Evidence: "https://repo.test/v2", SubmittedAt: &now}
	require.NoError(t, grades.UpsertEvidence(ctx, &resubmitted))
	require.NotNil(t, resubmitted.Score)
	require.InDelta(t, 5.0, *resubmitted.Score, 1e-9)
	require.Equal(t, "excelente", resubmitted.Feedback)
	require.Equal(t, "https://repo.test/v2", resubmitted.Evidence)
}

func TestEvaluationRepositoryVisibility(t *testing.T) {
	db := newTestDB(t)
	courses := NewCourseRepository(db)
	evaluations := NewEvaluationRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	enrolled := seedUser(t, db, "Sara", authz.RoleStudent)
	graded := seedUser(t, db, "Gabo", authz.RoleStudent)
	stranger := seedUser(t, db, "Tomas", authz.RoleStudent)

	c1 := seedCourse(t, courses, instructor.ID, "V-1", enrolled.ID)
	c2 := seedCourse(t, courses, instructor.ID, "V-2")

	score := 2.0
	require.NoError(t, evaluations.Create(ctx, &models.Evaluation{CourseID: c1.ID, Title: "E1", MaxScore: 5, CreatedBy: instructor.ID}))
	require.NoError(t, evaluations.Create(ctx, &models.Evaluation{CourseID: c2.ID, Title: "E2", MaxScore: 5, CreatedBy: instructor.ID,
		Grades: []models.Grade{{StudentID: graded.ID, Score: &score}}}))

	visible, _, err := evaluations.List(ctx, EvaluationFilter{VisibleTo: &enrolled.ID})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, "E1", visible[0].Title)

	visible, _, err = evaluations.List(ctx, EvaluationFilter{VisibleTo: &graded.ID})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, []uint{graded.ID}, visible[0].GradedStudentIDs())

	visible, total, err := evaluations.List(ctx, EvaluationFilter{VisibleTo: &stranger.ID})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, visible)
}

func TestUserRepositoryDeletePullsFromRosters(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	courses := NewCourseRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ines", authz.RoleInstructor)
	student := seedUser(t, db, "Sara", authz.RoleStudent)
	course := seedCourse(t, courses, instructor.ID, "U-1", student.ID)

	owns, err := users.OwnsCourses(ctx, instructor.ID)
	require.NoError(t, err)
	require.True(t, owns)

	enrolled, err := users.IsEnrolled(ctx, student.ID)
	require.NoError(t, err)
	require.True(t, enrolled)

	require.NoError(t, users.Delete(ctx, student.ID))

	enrolled, err = users.IsEnrolled(ctx, student.ID)
	require.NoError(t, err)
	require.False(t, enrolled)

	loaded, err := courses.GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.Empty(t, loaded.StudentIDs())

	_, err = users.GetByID(ctx, student.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.ErrorIs(t, users.Delete(ctx, student.ID), gorm.ErrRecordNotFound)
}

func TestUserRepositoryLookupAndFilters(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	user := models.User{Name: "Laura Perez", Email: "Laura@Sena.test", PasswordHash: "hash", Role: authz.RoleStudent}
	require.NoError(t, users.Create(ctx, &user))
	seedUser(t, db, "Ines", authz.RoleInstructor)

	found, err := users.GetByEmail(ctx, " laura@sena.test ")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	dup := models.User{Name: "Other", Email: "Laura@Sena.test", PasswordHash: "hash", Role: authz.RoleStudent}
	require.ErrorIs(t, users.Create(ctx, &dup), ErrDuplicate)

	learners, total, err := users.List(ctx, UserFilter{Role: authz.RoleStudent})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Laura Perez", learners[0].Name)

	matches, _, err := users.List(ctx, UserFilter{Search: "lau"})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	byIDs, err := users.FindByIDs(ctx, []uint{user.ID, 12345})
	require.NoError(t, err)
	require.Len(t, byIDs, 1)
}
