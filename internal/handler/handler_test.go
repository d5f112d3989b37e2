package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/incidentnow/incident-service/internal/handler"
	"github.com/incidentnow/incident-service/internal/model"
	"github.com/incidentnow/incident-service/internal/router"
	"github.com/incidentnow/incident-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestServer(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Owner{},
		&model.SupportEngineer{},
		&model.Incident{},
		&model.Comment{},
		&model.TimelineEvent{},
	))

	incidentSvc := service.NewIncidentService(db, nil, nil)
	h := router.New(
		handler.NewIncidentHandler(incidentSvc),
		handler.NewOwnerHandler(service.NewOwnerService(db), incidentSvc),
		handler.NewEngineerHandler(service.NewEngineerService(db), incidentSvc),
		handler.NewStatisticsHandler(service.NewStatisticsService(db)),
	)
	return h, db
}

func seedOwner(t *testing.T, db *gorm.DB, email string) *model.Owner {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	o := &model.Owner{
		Name:         "Alice",
		Email:        email,
		PasswordHash: string(hash),
		Team:         "platform",
		Role:         model.RoleEngineer,
		Active:       true,
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestCreateIncidentEndpoint(t *testing.T) {
	h, db := newTestServer(t)
	owner := seedOwner(t, db, "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/incidents", gin.H{
		"title":    "Checkout is down",
		"priority": "critical",
		"severity": "high",
		"category": "application",
		"ownerId":  owner.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		IncidentNumber string `json:"incidentNumber"`
		Status         string `json:"status"`
		Owner          struct {
			Email string `json:"email"`
		} `json:"owner"`
	}
	decode(t, rec, &resp)
	assert.Regexp(t, `^INC-\d{4}-\d{4}$`, resp.IncidentNumber)
	assert.Equal(t, "open", resp.Status)
	assert.Equal(t, "alice@example.com", resp.Owner.Email)
}

func TestCreateIncidentValidation(t *testing.T) {
	h, db := newTestServer(t)
	owner := seedOwner(t, db, "alice@example.com")

	// без title
	rec := doJSON(t, h, http.MethodPost, "/api/v1/incidents", gin.H{
		"priority": "critical",
		"severity": "high",
		"category": "application",
		"ownerId":  owner.ID.String(),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var errResp struct {
		Code    string `json:"code"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
		Timestamp string `json:"timestamp"`
	}
	decode(t, rec, &errResp)
	assert.Equal(t, "VALIDATION_ERROR", errResp.Code)
	assert.NotEmpty(t, errResp.Details)
	assert.NotEmpty(t, errResp.Timestamp)
}

func TestCreateIncidentUnknownEnum(t *testing.T) {
	h, db := newTestServer(t)
	owner := seedOwner(t, db, "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/incidents", gin.H{
		"title":    "bad enum",
		"priority": "urgent",
		"severity": "high",
		"category": "application",
		"ownerId":  owner.ID.String(),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetIncidentBadID(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/incidents/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp struct {
		Code string `json:"code"`
	}
	decode(t, rec, &errResp)
	assert.Equal(t, "BAD_REQUEST", errResp.Code)
}

func TestGetIncidentNotFound(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/incidents/5f6e1a3a-7c50-4f3a-9a34-000000000000", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var errResp struct {
		Code string `json:"code"`
	}
	decode(t, rec, &errResp)
	assert.Equal(t, "NOT_FOUND", errResp.Code)
}

func TestListIncidentsEnvelope(t *testing.T) {
	h, db := newTestServer(t)
	owner := seedOwner(t, db, "alice@example.com")
	for i := 0; i < 3; i++ {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/incidents", gin.H{
			"title":    fmt.Sprintf("incident %d", i),
			"priority": "low",
			"severity": "low",
			"category": "other",
			"ownerId":  owner.ID.String(),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/v1/incidents?page=1&pageSize=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			Page            int   `json:"page"`
			PageSize        int   `json:"pageSize"`
			TotalItems      int64 `json:"totalItems"`
			TotalPages      int   `json:"totalPages"`
			HasNextPage     bool  `json:"hasNextPage"`
			HasPreviousPage bool  `json:"hasPreviousPage"`
		} `json:"pagination"`
	}
	decode(t, rec, &resp)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.EqualValues(t, 3, resp.Pagination.TotalItems)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasNextPage)
	assert.False(t, resp.Pagination.HasPreviousPage)
}

func TestReopenBlankReasonReturns422(t *testing.T) {
	h, db := newTestServer(t)
	owner := seedOwner(t, db, "alice@example.com")
	rec := doJSON(t, h, http.MethodPost, "/api/v1/incidents", gin.H{
		"title":    "to resolve",
		"priority": "high",
		"severity": "high",
		"category": "database",
		"ownerId":  owner.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/incidents/"+created.ID+"/resolve", gin.H{
		"rootCause":  "bug",
		"resolution": "fixed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/incidents/"+created.ID+"/reopen", gin.H{
		"reason": "   ",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCloseUnresolvedReturns409(t *testing.T) {
	h, db := newTestServer(t)
	owner := seedOwner(t, db, "alice@example.com")
	rec := doJSON(t, h, http.MethodPost, "/api/v1/incidents", gin.H{
		"title":    "open incident",
		"priority": "high",
		"severity": "high",
		"category": "network",
		"ownerId":  owner.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/incidents/"+created.ID+"/close", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp struct {
		Code string `json:"code"`
	}
	decode(t, rec, &errResp)
	assert.Equal(t, "CONFLICT", errResp.Code)
}

func TestDuplicateOwnerEmailReturns409(t *testing.T) {
	h, db := newTestServer(t)
	seedOwner(t, db, "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/owners", gin.H{
		"name":     "Another Alice",
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
		"team":     "platform",
		"role":     "engineer",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp struct {
		Code string `json:"code"`
	}
	decode(t, rec, &errResp)
	assert.Equal(t, "DUPLICATE", errResp.Code)
}

func TestLoginEndpoint(t *testing.T) {
	h, db := newTestServer(t)
	seedOwner(t, db, "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvalidPageParam(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/incidents?page=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp struct {
		Message string `json:"message"`
	}
	decode(t, rec, &errResp)
	assert.Contains(t, errResp.Message, "'abc'")
	assert.Contains(t, errResp.Message, "'page'")
}

func TestStatisticsSummaryEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/statistics/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalIncidents          int64   `json:"totalIncidents"`
		SLACompliancePercentage float64 `json:"slaCompliancePercentage"`
	}
	decode(t, rec, &resp)
	assert.Zero(t, resp.TotalIncidents)
	assert.InDelta(t, 100.0, resp.SLACompliancePercentage, 0.001)
}

// Параметр to без времени покрывает день целиком.
func TestTrendsDateOnlyToIncludesWholeDay(t *testing.T) {
	h, db := newTestServer(t)
	owner := seedOwner(t, db, "alice@example.com")

	inc := &model.Incident{
		IncidentNumber: "INC-2026-0001",
		Title:          "afternoon incident",
		Status:         model.IncidentStatusOpen,
		Priority:       model.PriorityHigh,
		Severity:       model.SeverityMedium,
		Category:       model.CategorySoftware,
		OwnerID:        owner.ID,
	}
	require.NoError(t, db.Create(inc).Error)
	require.NoError(t, db.Model(inc).Update("created_at",
		time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC)).Error)

	rec := doJSON(t, h, http.MethodGet,
		"/api/v1/statistics/trends?from=2026-01-01&to=2026-01-15&groupBy=day", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var trends []struct {
		Period  string `json:"period"`
		Created int64  `json:"created"`
	}
	decode(t, rec, &trends)
	require.Len(t, trends, 1)
	assert.Equal(t, "2026-01-15", trends[0].Period)
	assert.EqualValues(t, 1, trends[0].Created)
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "incident-service")

	rec = doJSON(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
