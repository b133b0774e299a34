package handler_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/dto"
)

func TestAttendanceHandlerCreateThenDuplicate(t *testing.T) {
	srv := newTestServer(t)
	instructor, token := srv.user(t, "Ines", authz.RoleInstructor)
	student, _ := srv.user(t, "Santi", authz.RoleStudent)
	course := srv.course(t, instructor, "ADSO-01", student)

	payload := map[string]interface{}{
		"course_id":  course.ID,
		"student_id": student.ID,
		"date":       "2024-03-04",
		"status":     "present",
	}

	resp := srv.do(t, http.MethodPost, apiPath("/attendance"), token, payload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created dto.AttendanceResponse
	body := decodeEnvelope(t, resp, &created)
	require.True(t, body.Success)
	require.Equal(t, "attendance recorded", body.Message)
	require.Equal(t, "2024-03-04", created.Date)
	require.Equal(t, "present", created.Status)
	require.Equal(t, instructor.ID, created.CreatedBy)

	payload["status"] = "late"
	resp = srv.do(t, http.MethodPost, apiPath("/attendance"), token, payload)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body = decodeEnvelope(t, resp, nil)
	require.False(t, body.Success)
	require.Equal(t, "attendance already recorded for this student on this date", errorMessage(t, body))
}

func TestAttendanceHandlerNonOwnerCannotUpdate(t *testing.T) {
	srv := newTestServer(t)
	owner, ownerToken := srv.user(t, "Ines", authz.RoleInstructor)
	_, otherToken := srv.user(t, "Oscar", authz.RoleInstructor)
	student, _ := srv.user(t, "Santi", authz.RoleStudent)
	course := srv.course(t, owner, "ADSO-02", student)

	resp := srv.do(t, http.MethodPost, apiPath("/attendance"), ownerToken, map[string]interface{}{
		"course_id":  course.ID,
		"student_id": student.ID,
		"date":       "2024-03-05",
		"status":     "absent",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created dto.AttendanceResponse
	decodeEnvelope(t, resp, &created)

	resp = srv.do(t, http.MethodPut, apiPath("/attendance/%d", created.ID), otherToken, map[string]interface{}{
		"status": "excused",
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, apiPath("/attendance/%d", created.ID), ownerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stored dto.AttendanceResponse
	decodeEnvelope(t, resp, &stored)
	require.Equal(t, "absent", stored.Status)
}

func TestAttendanceHandlerStudentScope(t *testing.T) {
	srv := newTestServer(t)
	instructor, instructorToken := srv.user(t, "Ines", authz.RoleInstructor)
	enrolled, enrolledToken := srv.user(t, "Santi", authz.RoleStudent)
	_, outsiderToken := srv.user(t, "Olga", authz.RoleStudent)
	course := srv.course(t, instructor, "ADSO-03", enrolled)

	resp := srv.do(t, http.MethodPost, apiPath("/attendance"), instructorToken, map[string]interface{}{
		"course_id":  course.ID,
		"student_id": enrolled.ID,
		"date":       "2024-03-06",
		"status":     "present",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created dto.AttendanceResponse
	decodeEnvelope(t, resp, &created)

	resp = srv.do(t, http.MethodGet, apiPath("/attendance/%d", created.ID), outsiderToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, apiPath("/attendance/%d", created.ID), enrolledToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, apiPath("/attendance/course/%d/student/%d", course.ID, enrolled.ID), instructorToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var items []dto.AttendanceResponse
	body := decodeEnvelope(t, resp, &items)
	require.Len(t, items, 1)
	require.NotEmpty(t, body.Meta)
}

func TestAttendanceHandlerRejectsUnknownRecordAndBadInput(t *testing.T) {
	srv := newTestServer(t)
	instructor, token := srv.user(t, "Ines", authz.RoleInstructor)
	student, _ := srv.user(t, "Santi", authz.RoleStudent)
	course := srv.course(t, instructor, "ADSO-04", student)

	resp := srv.do(t, http.MethodGet, apiPath("/attendance/9999"), token, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, apiPath("/attendance/abc"), token, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid identifier", errorMessage(t, decodeEnvelope(t, resp, nil)))

	resp = srv.do(t, http.MethodPost, apiPath("/attendance"), token, map[string]interface{}{
		"course_id":  course.ID,
		"student_id": student.ID,
		"date":       "04/03/2024",
		"status":     "present",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeEnvelope(t, resp, nil)
	require.Equal(t, "validation failed", body.Message)
	require.Equal(t, []string{"date must be a date in YYYY-MM-DD format"}, errorMessages(t, body))

	resp = srv.do(t, http.MethodPost, apiPath("/attendance"), token, map[string]interface{}{
		"course_id":  course.ID,
		"student_id": student.ID,
		"date":       "2024-03-04",
		"status":     "sleeping",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body = decodeEnvelope(t, resp, nil)
	require.Equal(t, "validation failed", body.Message)
	require.NotEmpty(t, errorMessages(t, body))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, route := range []string{"/attendance", "/courses", "/evaluations", "/users", "/grades/summary/1", "/activity"} {
		resp := srv.do(t, http.MethodGet, apiPath("%s", route), "", nil)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, route)
	}

	resp := srv.do(t, http.MethodGet, apiPath("/courses"), "not-a-token", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
