package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()

	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)
	return schema
}

func readPayload(t *testing.T, resp *http.Response) interface{} {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload
}

func TestEnvelopeContract(t *testing.T) {
	schema := compileSchema(t, "envelope.schema.json")

	srv := newTestServer(t)
	instructor, token := srv.user(t, "Ines", authz.RoleInstructor)
	student, studentToken := srv.user(t, "Santi", authz.RoleStudent)
	course := srv.course(t, instructor, "ADSO-30", student)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
	}{
		{"list", http.MethodGet, apiPath("/courses?page=1&page_size=10"), token, nil, fiber.StatusOK},
		{"created", http.MethodPost, apiPath("/attendance"), token, map[string]interface{}{
			"course_id": course.ID, "student_id": student.ID, "date": "2024-04-01", "status": "late",
		}, fiber.StatusCreated},
		{"validation", http.MethodPost, apiPath("/attendance"), token, map[string]interface{}{}, fiber.StatusBadRequest},
		{"forbidden", http.MethodDelete, apiPath("/courses/%d", course.ID), studentToken, nil, fiber.StatusForbidden},
		{"not found", http.MethodGet, apiPath("/courses/%d", 9999), token, nil, fiber.StatusNotFound},
		{"unauthorized", http.MethodGet, apiPath("/courses"), "", nil, fiber.StatusUnauthorized},
		{"health", http.MethodGet, apiPath("/health"), "", nil, fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := srv.do(t, tc.method, tc.path, tc.token, tc.body)
			require.Equal(t, tc.status, resp.StatusCode)
			require.NoError(t, schema.Validate(readPayload(t, resp)))
		})
	}
}

func TestStudentSummaryContract(t *testing.T) {
	schema := compileSchema(t, "student_summary.schema.json")

	srv := newTestServer(t)
	instructor, _ := srv.user(t, "Ines", authz.RoleInstructor)
	student, studentToken := srv.user(t, "Santi", authz.RoleStudent)
	srv.course(t, instructor, "ADSO-31", student)

	resp := srv.do(t, http.MethodGet, apiPath("/grades/summary/%d", student.ID), studentToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, schema.Validate(readPayload(t, resp)))
}
