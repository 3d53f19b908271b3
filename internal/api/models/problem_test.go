package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityview/urbanimpact/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123").
		WithDetail("lat must be between -90 and 90").
		WithInstance("/v1/scenarios:compute").
		WithErrors([]models.FieldError{{Field: "lat", Message: "out of range", Code: "OUT_OF_RANGE"}})

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Equal(t, "lat must be between -90 and 90", p.Detail)
	assert.Equal(t, "/v1/scenarios:compute", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "OUT_OF_RANGE", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "scenario", Message: "must not be empty"},
	})
	p.Instance = "/v1/scenarios:compute"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/scenarios:compute", result.Instance)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "scenario", result.Errors[0].Field)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewInternalError("", "boom").Write(w)

	assert.Empty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		title   string
		status  int
	}{
		{"not found", models.NewNotFound("req_1", "station not found"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"unprocessable", models.NewUnprocessable("req_1", "no stations"), models.ProblemTypeUnprocessable, "Unprocessable request", http.StatusUnprocessableEntity},
		{"too many", models.NewTooManyRequests("req_1", "slow down"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"tls", models.NewTLSRequired("req_1"), models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden},
		{"internal", models.NewInternalError("req_1", "boom"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req_1", "upstream"), models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "req_1", tt.problem.TraceID)
			assert.NotEmpty(t, tt.problem.Detail)
		})
	}
}

func TestTimestamp_JSON(t *testing.T) {
	ts := models.Timestamp(time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `"2026-10-18T09:30:00Z"`, string(data))

	var back models.Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Time().Equal(ts.Time()))

	assert.Nil(t, models.TimestampPtr(time.Time{}))
	assert.NotNil(t, models.TimestampPtr(ts.Time()))
}
