package handler_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/dto"
)

func TestEvaluationHandlerGradingFlow(t *testing.T) {
	srv := newTestServer(t)
	instructor, token := srv.user(t, "Ines", authz.RoleInstructor)
	student, studentToken := srv.user(t, "Santi", authz.RoleStudent)
	classmate, _ := srv.user(t, "Sara", authz.RoleStudent)
	course := srv.course(t, instructor, "ADSO-20", student, classmate)

	resp := srv.do(t, http.MethodPost, apiPath("/evaluations"), token, map[string]interface{}{
		"course_id": course.ID,
		"title":     "Taller 1",
		"grades": []map[string]interface{}{
			{"student_id": classmate.ID, "score": 3.5},
		},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var evaluation dto.EvaluationResponse
	decodeEnvelope(t, resp, &evaluation)
	require.Equal(t, 5.0, evaluation.MaxScore)
	require.Len(t, evaluation.Grades, 1)

	resp = srv.do(t, http.MethodPut, apiPath("/evaluations/%d/grades/%d", evaluation.ID, student.ID), token, map[string]interface{}{
		"score":    4.5,
		"feedback": "Buen trabajo",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var grade dto.GradeResponse
	decodeEnvelope(t, resp, &grade)
	require.Equal(t, student.ID, grade.StudentID)
	require.NotNil(t, grade.Score)
	require.Equal(t, 4.5, *grade.Score)

	resp = srv.do(t, http.MethodPost, apiPath("/evaluations/%d/grades", evaluation.ID), token, map[string]interface{}{
		"student_id": student.ID,
		"score":      6,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, []string{"score must not exceed 5"}, errorMessages(t, decodeEnvelope(t, resp, nil)))

	resp = srv.do(t, http.MethodGet, apiPath("/evaluations/%d", evaluation.ID), studentToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeEnvelope(t, resp, &evaluation)
	require.Len(t, evaluation.Grades, 1)
	require.Equal(t, student.ID, evaluation.Grades[0].StudentID)
}

func TestEvaluationHandlerRejectsOutsiders(t *testing.T) {
	srv := newTestServer(t)
	owner, ownerToken := srv.user(t, "Ines", authz.RoleInstructor)
	_, otherToken := srv.user(t, "Oscar", authz.RoleInstructor)
	enrolled, _ := srv.user(t, "Santi", authz.RoleStudent)
	outsider, _ := srv.user(t, "Olga", authz.RoleStudent)
	_, outsiderToken := srv.user(t, "Omar", authz.RoleStudent)
	course := srv.course(t, owner, "ADSO-21", enrolled)

	resp := srv.do(t, http.MethodPost, apiPath("/evaluations"), otherToken, map[string]interface{}{
		"course_id": course.ID,
		"title":     "Quiz",
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = srv.do(t, http.MethodPost, apiPath("/evaluations"), ownerToken, map[string]interface{}{
		"course_id": course.ID,
		"title":     "Quiz",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var evaluation dto.EvaluationResponse
	decodeEnvelope(t, resp, &evaluation)

	resp = srv.do(t, http.MethodGet, apiPath("/evaluations/%d", evaluation.ID), outsiderToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = srv.do(t, http.MethodPut, apiPath("/evaluations/%d/grades/%d", evaluation.ID, outsider.ID), ownerToken, map[string]interface{}{
		"score": 3,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodPost, apiPath("/evaluations"), ownerToken, map[string]interface{}{
		"course_id": 9999,
		"title":     "Quiz",
	})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEvaluationHandlerEvidence(t *testing.T) {
	srv := newTestServer(t)
	instructor, instructorToken := srv.user(t, "Ines", authz.RoleInstructor)
	student, studentToken := srv.user(t, "Santi", authz.RoleStudent)
	course := srv.course(t, instructor, "ADSO-22", student)

	resp := srv.do(t, http.MethodPost, apiPath("/evaluations"), instructorToken, map[string]interface{}{
		"course_id": course.ID,
		"title":     "Proyecto",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var evaluation dto.EvaluationResponse
	decodeEnvelope(t, resp, &evaluation)

	resp = srv.do(t, http.MethodPost, apiPath("/evaluations/%d/evidence", evaluation.ID), studentToken, map[string]interface{}{
		"evidence": "https://repo.sena.test/santi/proyecto",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var grade dto.GradeResponse
	decodeEnvelope(t, resp, &grade)
	require.Equal(t, student.ID, grade.StudentID)
	require.Nil(t, grade.Score)
	require.NotNil(t, grade.SubmittedAt)

	resp = srv.do(t, http.MethodPost, apiPath("/evaluations/%d/evidence", evaluation.ID), instructorToken, map[string]interface{}{
		"evidence": "not mine",
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGradeHandlerSummaryAndScope(t *testing.T) {
	srv := newTestServer(t)
	instructor, instructorToken := srv.user(t, "Ines", authz.RoleInstructor)
	student, studentToken := srv.user(t, "Santi", authz.RoleStudent)
	_, otherStudentToken := srv.user(t, "Sara", authz.RoleStudent)
	course := srv.course(t, instructor, "ADSO-23", student)

	for _, title := range []string{"Taller", "Examen"} {
		resp := srv.do(t, http.MethodPost, apiPath("/evaluations"), instructorToken, map[string]interface{}{
			"course_id": course.ID,
			"title":     title,
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		if title == "Taller" {
			var evaluation dto.EvaluationResponse
			decodeEnvelope(t, resp, &evaluation)
			resp = srv.do(t, http.MethodPut, apiPath("/evaluations/%d/grades/%d", evaluation.ID, student.ID), instructorToken, map[string]interface{}{
				"score": 4,
			})
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
		} else {
			resp.Body.Close()
		}
	}

	for day, status := range map[string]string{"2024-03-04": "present", "2024-03-05": "absent"} {
		resp := srv.do(t, http.MethodPost, apiPath("/attendance"), instructorToken, map[string]interface{}{
			"course_id":  course.ID,
			"student_id": student.ID,
			"date":       day,
			"status":     status,
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := srv.do(t, http.MethodGet, apiPath("/grades/summary/%d", student.ID), studentToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var summary dto.StudentSummaryResponse
	decodeEnvelope(t, resp, &summary)
	require.Equal(t, 4.0, summary.AverageGrade)
	require.Equal(t, 1, summary.CompletedEvaluations)
	require.Equal(t, 1, summary.PendingEvaluations)
	require.Equal(t, 50.0, summary.AttendancePercentage)
	require.Equal(t, int64(2), summary.Attendance.Total)

	resp = srv.do(t, http.MethodGet, apiPath("/grades/summary/%d", student.ID), otherStudentToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, apiPath("/grades/student/%d", student.ID), instructorToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var grades []dto.GradeResponse
	decodeEnvelope(t, resp, &grades)
	require.Len(t, grades, 1)

	resp = srv.do(t, http.MethodPut, apiPath("/grades/%d", grades[0].ID), instructorToken, map[string]interface{}{
		"score": 4.8,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodPut, apiPath("/grades/%d", 9999), instructorToken, map[string]interface{}{
		"score": 1,
	})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
