package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/auth"
	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/config"
	"github.com/noah-isme/sena-attendance-api/internal/database"
	"github.com/noah-isme/sena-attendance-api/internal/handler"
	"github.com/noah-isme/sena-attendance-api/internal/middleware"
	"github.com/noah-isme/sena-attendance-api/internal/models"
	"github.com/noah-isme/sena-attendance-api/internal/repository"
	"github.com/noah-isme/sena-attendance-api/internal/router"
	"github.com/noah-isme/sena-attendance-api/internal/service"
	"github.com/noah-isme/sena-attendance-api/internal/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Meta    json.RawMessage `json:"meta"`
}

type testServer struct {
	app     *fiber.App
	db      *gorm.DB
	tokens  *auth.TokenManager
	hasher  auth.PasswordHasher
	users   repository.UserRepository
	courses repository.CourseRepository
}

type serverOption func(*router.Dependencies)

func withLoginLimit(max int) serverOption {
	return func(deps *router.Dependencies) {
		deps.LoginLimiter = middleware.RateLimit("auth", max, time.Minute)
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := zerolog.New(io.Discard)
	validate := utils.Validator()
	tokens := auth.NewTokenManager("handler-secret", time.Hour, "sena-test")
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	events := service.NewEventPublisher(nil, "", logger)
	summaries := service.NewSummaryCache(nil, time.Minute, logger)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), validate, logger)

	authService := service.NewAuthService(userRepo, tokens, hasher, validate, activityService, events, logger)
	deps := router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(authService, logger),
		UserHandler:       handler.NewUserHandler(service.NewUserService(userRepo, validate, activityService, events, summaries, logger), logger),
		CourseHandler:     handler.NewCourseHandler(service.NewCourseService(courseRepo, userRepo, validate, activityService, events, summaries, logger), logger),
		AttendanceHandler: handler.NewAttendanceHandler(service.NewAttendanceService(attendanceRepo, courseRepo, validate, activityService, events, summaries, logger), logger),
		EvaluationHandler: handler.NewEvaluationHandler(service.NewEvaluationService(evaluationRepo, gradeRepo, courseRepo, validate, activityService, events, summaries, logger), logger),
		GradeHandler: handler.NewGradeHandler(service.NewGradeService(service.GradeDependencies{
			Grades:      gradeRepo,
			Evaluations: evaluationRepo,
			Courses:     courseRepo,
			Attendance:  attendanceRepo,
			Users:       userRepo,
		}, validate, activityService, events, summaries, logger), logger),
		ActivityHandler: handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:   middleware.JWTProtected(tokens, authService.ResolveActor),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "SENA Test", AppEnv: "test"}, deps)

	return &testServer{
		app:     app,
		db:      db,
		tokens:  tokens,
		hasher:  hasher,
		users:   userRepo,
		courses: courseRepo,
	}
}

// user stores an account and returns its actor and a bearer token.
func (s *testServer) user(t *testing.T, name string, role authz.Role) (authz.Actor, string) {
	t.Helper()

	hash, err := s.hasher.Hash("secret123")
	require.NoError(t, err)

	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s.%s@sena.test", strings.ToLower(name), uuid.NewString()[:6]),
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, s.users.Create(context.Background(), &user))

	token, _, err := s.tokens.Issue(user.ID, user.Role, user.Email)
	require.NoError(t, err)

	return authz.Actor{ID: user.ID, Role: user.Role}, token
}

func (s *testServer) course(t *testing.T, instructor authz.Actor, code string, students ...authz.Actor) models.Course {
	t.Helper()

	ids := make([]uint, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}
	course := models.Course{
		Name:         "Programacion " + code,
		Code:         code,
		Description:  "Ficha de formacion",
		InstructorID: instructor.ID,
		StartDate:    time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.courses.Create(context.Background(), &course, ids))
	return course
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

// decodeEnvelope decodes the envelope and, when data is non-nil, its payload.
func decodeEnvelope(t *testing.T, resp *http.Response, data interface{}) envelope {
	t.Helper()

	var body envelope
	decodeResponse(t, resp, &body)
	if data != nil {
		require.NoError(t, json.Unmarshal(body.Data, data))
	}
	return body
}

func errorMessage(t *testing.T, body envelope) string {
	t.Helper()

	var message string
	require.NoError(t, json.Unmarshal(body.Error, &message))
	return message
}

func errorMessages(t *testing.T, body envelope) []string {
	t.Helper()

	var messages []string
	require.NoError(t, json.Unmarshal(body.Error, &messages))
	return messages
}

func apiPath(format string, args ...interface{}) string {
	return "/api/v1" + fmt.Sprintf(format, args...)
}
