package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/auth"
	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/database"
	"github.com/noah-isme/sena-attendance-api/internal/models"
	"github.com/noah-isme/sena-attendance-api/internal/repository"
	"github.com/noah-isme/sena-attendance-api/internal/utils"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type fixture struct {
	db          *gorm.DB
	redis       *miniredis.Miniredis
	userRepo    repository.UserRepository
	courseRepo  repository.CourseRepository
	recordRepo  repository.AttendanceRepository
	evalRepo    repository.EvaluationRepository
	gradeRepo   repository.GradeRepository
	activity    ActivityService
	events      *recordingPublisher
	summaries   *SummaryCache
	tokens      *auth.TokenManager
	hasher      auth.PasswordHasher
	auth        AuthService
	users       UserService
	courses     CourseService
	attendance  AttendanceService
	evaluations EvaluationService
	grades      GradeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := testLogger()
	validate := utils.Validator()

	f := &fixture{
		db:         db,
		redis:      mini,
		userRepo:   repository.NewUserRepository(db),
		courseRepo: repository.NewCourseRepository(db),
		recordRepo: repository.NewAttendanceRepository(db),
		evalRepo:   repository.NewEvaluationRepository(db),
		gradeRepo:  repository.NewGradeRepository(db),
		events:     &recordingPublisher{},
		tokens:     auth.NewTokenManager("test-secret", time.Hour, "sena-test"),
		hasher:     auth.NewPasswordHasher(bcrypt.MinCost),
	}
	f.activity = NewActivityService(repository.NewActivityLogRepository(db), validate, logger)
	f.summaries = NewSummaryCache(client, time.Minute, logger)

	f.auth = NewAuthService(f.userRepo, f.tokens, f.hasher, validate, f.activity, f.events, logger)
	f.users = NewUserService(f.userRepo, validate, f.activity, f.events, f.summaries, logger)
	f.courses = NewCourseService(f.courseRepo, f.userRepo, validate, f.activity, f.events, f.summaries, logger)
	f.attendance = NewAttendanceService(f.recordRepo, f.courseRepo, validate, f.activity, f.events, f.summaries, logger)
	f.evaluations = NewEvaluationService(f.evalRepo, f.gradeRepo, f.courseRepo, validate, f.activity, f.events, f.summaries, logger)
	f.grades = NewGradeService(GradeDependencies{
		Grades:      f.gradeRepo,
		Evaluations: f.evalRepo,
		Courses:     f.courseRepo,
		Attendance:  f.recordRepo,
		Users:       f.userRepo,
	}, validate, f.activity, f.events, f.summaries, logger)

	return f
}

func (f *fixture) actor(t *testing.T, name string, role authz.Role) authz.Actor {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s.%s@sena.test", strings.ToLower(name), uuid.NewString()[:6]),
		PasswordHash: "hash",
		Role:         role,
	}
	require.NoError(t, f.userRepo.Create(context.Background(), &user))
	return authz.Actor{ID: user.ID, Role: user.Role}
}

func (f *fixture) course(t *testing.T, instructor authz.Actor, code string, students ...authz.Actor) models.Course {
	t.Helper()
	ids := make([]uint, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}
	course := models.Course{
		Name:         "Analisis " + code,
		Code:         code,
		Description:  "Formacion titulada",
		InstructorID: instructor.ID,
		StartDate:    time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.courseRepo.Create(context.Background(), &course, ids))
	return course
}

func (f *fixture) roster(t *testing.T, courseID uint) []uint {
	t.Helper()
	course, err := f.courseRepo.GetByID(context.Background(), courseID)
	require.NoError(t, err)
	return course.StudentIDs()
}

func floatPtr(v float64) *float64 {
	return &v
}

func stringPtr(v string) *string {
	return &v
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
