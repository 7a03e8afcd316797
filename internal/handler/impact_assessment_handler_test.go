package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/impact-assessment-api/internal/dto"
	"github.com/noah-isme/impact-assessment-api/internal/middleware"
	"github.com/noah-isme/impact-assessment-api/internal/models"
	appErrors "github.com/noah-isme/impact-assessment-api/pkg/errors"
)

const sampleImpactID = "5f0c7b1e-2a41-4e55-9a0f-0d3c9a6b1f20"

type fakeImpactService struct {
	report      *models.ImpactAssessment
	items       []models.ImpactAssessment
	pagination  *models.Pagination
	stats       *models.ImpactStatistics
	statsHit    bool
	file        *dto.ImpactExportFile
	deleted     int64
	err         error
	lastFilter  models.ImpactAssessmentFilter
	lastFormat  models.ExportFormat
	lastActor   *models.Actor
	lastIDs     []string
	lastCreate  dto.CreateImpactAssessmentRequest
	lastVerify  dto.VerifyImpactAssessmentRequest
	deleteCalls int
}

func (f *fakeImpactService) Create(_ context.Context, req dto.CreateImpactAssessmentRequest) (*models.ImpactAssessment, error) {
	f.lastCreate = req
	return f.report, f.err
}

func (f *fakeImpactService) Get(context.Context, string) (*models.ImpactAssessment, error) {
	return f.report, f.err
}

func (f *fakeImpactService) List(_ context.Context, filter models.ImpactAssessmentFilter) ([]models.ImpactAssessment, *models.Pagination, error) {
	f.lastFilter = filter
	return f.items, f.pagination, f.err
}

func (f *fakeImpactService) Update(context.Context, string, dto.UpdateImpactAssessmentRequest) (*models.ImpactAssessment, error) {
	return f.report, f.err
}

func (f *fakeImpactService) Statistics(_ context.Context, filter models.ImpactAssessmentFilter) (*models.ImpactStatistics, bool, error) {
	f.lastFilter = filter
	return f.stats, f.statsHit, f.err
}

func (f *fakeImpactService) Export(_ context.Context, filter models.ImpactAssessmentFilter, format models.ExportFormat) (*dto.ImpactExportFile, error) {
	f.lastFilter = filter
	f.lastFormat = format
	return f.file, f.err
}

func (f *fakeImpactService) Verify(_ context.Context, _ string, actor *models.Actor, req dto.VerifyImpactAssessmentRequest) (*models.ImpactAssessment, error) {
	f.lastActor = actor
	f.lastVerify = req
	return f.report, f.err
}

func (f *fakeImpactService) Delete(_ context.Context, _ string, actor *models.Actor) error {
	f.lastActor = actor
	f.deleteCalls++
	return f.err
}

func (f *fakeImpactService) BulkDelete(_ context.Context, ids []string, actor *models.Actor) (int64, error) {
	f.lastActor = actor
	f.lastIDs = ids
	return f.deleted, f.err
}

type envelope struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Data       json.RawMessage        `json:"data"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
	Error      *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, rec
}

func sampleReport() *models.ImpactAssessment {
	return &models.ImpactAssessment{
		ID:           sampleImpactID,
		SchoolName:   "Sala Prey Veng",
		SchoolType:   models.SchoolTypePrimary,
		Province:     models.ProvinceBattambang,
		GradeData:    models.GradeData{{Grade: "1", TotalStudents: 100, AffectedStudents: 40}},
		ImpactTotals: models.ImpactTotals{TotalStudents: 100, TotalAffected: 40, Percentage: 40},
		ImpactTypes:  models.ImpactTypes{models.ImpactSchoolClosure},
		Severity:     3,
		Status:       models.ImpactStatusPending,
	}
}

func TestImpactHandlerCreate(t *testing.T) {
	svc := &fakeImpactService{report: sampleReport()}
	h := NewImpactAssessmentHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/impact-assessments", []byte(`{"schoolName":"Sala Prey Veng","severity":3,"totals":{"totalStudents":9999}}`))
	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Impact assessment submitted successfully", env.Message)
	assert.Contains(t, string(env.Data), `"referenceId"`)
	assert.Equal(t, "Sala Prey Veng", svc.lastCreate.SchoolName)
}

func TestImpactHandlerCreateRejectsMalformedBody(t *testing.T) {
	h := NewImpactAssessmentHandler(&fakeImpactService{})
	c, rec := newTestContext(http.MethodPost, "/impact-assessments", []byte(`{"severity":"high"`))
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestImpactHandlerBindErrorsNameTheField(t *testing.T) {
	h := NewImpactAssessmentHandler(&fakeImpactService{})

	c, rec := newTestContext(http.MethodPost, "/impact-assessments", []byte(`{"severity":"3"}`))
	h.Create(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "severity must be of type int", env.Message)

	c, rec = newTestContext(http.MethodPost, "/impact-assessments", []byte(`{"gradeData":[{"grade":"1","totalStudents":"many"}]}`))
	h.Create(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Message, "gradeData.totalStudents")

	c, rec = newTestContext(http.MethodPatch, "/impact-assessments/"+sampleImpactID, []byte(`{"teacherAffected":"two"}`))
	c.Params = gin.Params{{Key: "id", Value: sampleImpactID}}
	h.Update(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Message, "teacherAffected")

	c, rec = newTestContext(http.MethodPost, "/impact-assessments/"+sampleImpactID+"/verify", []byte(`{"verificationNotes":7}`))
	c.Params = gin.Params{{Key: "id", Value: sampleImpactID}}
	h.Verify(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Message, "verificationNotes")
}

func TestImpactHandlerCreatePropagatesDomainErrors(t *testing.T) {
	h := NewImpactAssessmentHandler(&fakeImpactService{err: appErrors.Clone(appErrors.ErrInvalidGradeData, "grade 1: affected students (5) cannot exceed total students (3)")})
	c, rec := newTestContext(http.MethodPost, "/impact-assessments", []byte(`{}`))
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_GRADE_DATA", env.Error.Code)
}

func TestImpactHandlerListParsesFilter(t *testing.T) {
	svc := &fakeImpactService{
		items:      []models.ImpactAssessment{*sampleReport()},
		pagination: models.NewPagination(2, 5, 11),
	}
	h := NewImpactAssessmentHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/impact-assessments?province=battambang&severity=3&schoolType=primary&status=pending&startDate=2025-01-01&endDate=2025-06-30&page=2&limit=5&sortBy=severity&sortOrder=ASC", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	filter := svc.lastFilter
	assert.Equal(t, models.ProvinceBattambang, filter.Province)
	require.NotNil(t, filter.Severity)
	assert.Equal(t, 3, *filter.Severity)
	assert.Equal(t, models.SchoolTypePrimary, filter.SchoolType)
	assert.Equal(t, models.ImpactStatusPending, filter.Status)
	require.NotNil(t, filter.StartDate)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *filter.StartDate)
	require.NotNil(t, filter.EndDate)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 5, filter.Limit)
	assert.Equal(t, "severity", filter.SortBy)
	assert.Equal(t, "asc", filter.SortOrder)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 3, env.Pagination.TotalPages)
	assert.Contains(t, string(env.Data), sampleImpactID)
}

func TestImpactHandlerListIgnoresMalformedPaging(t *testing.T) {
	svc := &fakeImpactService{items: []models.ImpactAssessment{}, pagination: models.NewPagination(1, 10, 0)}
	h := NewImpactAssessmentHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/impact-assessments?page=abc&limit=", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.lastFilter.Page)
	assert.Zero(t, svc.lastFilter.Limit)
	assert.Equal(t, "[]", string(decodeEnvelope(t, rec).Data))
}

func TestImpactHandlerListRejectsBadFilters(t *testing.T) {
	cases := []string{
		"/impact-assessments?province=atlantis",
		"/impact-assessments?schoolType=castle",
		"/impact-assessments?status=archived",
		"/impact-assessments?severity=high",
		"/impact-assessments?startDate=01/02/2025",
	}
	for _, target := range cases {
		svc := &fakeImpactService{}
		h := NewImpactAssessmentHandler(svc)
		c, rec := newTestContext(http.MethodGet, target, nil)
		h.List(c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestImpactHandlerStatisticsCarriesCacheMeta(t *testing.T) {
	svc := &fakeImpactService{
		stats:    &models.ImpactStatistics{TotalReports: 2, ByProvince: map[string]int{"battambang": 2}},
		statsHit: true,
	}
	h := NewImpactAssessmentHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/impact-assessments/statistics?province=battambang", nil)
	h.Statistics(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, models.ProvinceBattambang, svc.lastFilter.Province)
	assert.Contains(t, string(env.Data), `"totalReports":2`)
}

func TestImpactHandlerExportCSV(t *testing.T) {
	svc := &fakeImpactService{file: &dto.ImpactExportFile{
		Filename:    "impact-assessment-2025-03-05.csv",
		ContentType: "text/csv; charset=utf-8",
		Payload:     []byte("\xEF\xBB\xBFheader\n"),
		Rows:        1,
	}}
	h := NewImpactAssessmentHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/impact-assessments/export/csv?severity=5", nil)
	h.ExportCSV(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ExportFormatCSV, svc.lastFormat)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="impact-assessment-2025-03-05.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
	assert.Empty(t, rec.Header().Get(exportTruncatedHeader))
}

func TestImpactHandlerExportFlagsTruncatedFile(t *testing.T) {
	svc := &fakeImpactService{file: &dto.ImpactExportFile{
		Filename:    "impact-assessment-2025-03-05.csv",
		ContentType: "text/csv; charset=utf-8",
		Payload:     []byte("x"),
		Rows:        500,
		Truncated:   true,
	}}
	h := NewImpactAssessmentHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/impact-assessments/export/csv", nil)
	h.ExportCSV(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Export-Truncated"))
}

func TestImpactHandlerExportFormats(t *testing.T) {
	svc := &fakeImpactService{file: &dto.ImpactExportFile{Filename: "f", ContentType: "application/pdf", Payload: []byte("%PDF")}}
	h := NewImpactAssessmentHandler(svc)

	c, _ := newTestContext(http.MethodGet, "/impact-assessments/export/xlsx", nil)
	h.ExportXLSX(c)
	assert.Equal(t, models.ExportFormatXLSX, svc.lastFormat)

	c, _ = newTestContext(http.MethodGet, "/impact-assessments/export/pdf", nil)
	h.ExportPDF(c)
	assert.Equal(t, models.ExportFormatPDF, svc.lastFormat)
}

func TestImpactHandlerExportEmptyIsNotFound(t *testing.T) {
	h := NewImpactAssessmentHandler(&fakeImpactService{err: appErrors.Clone(appErrors.ErrNotFound, "no impact assessments to export")})
	c, rec := newTestContext(http.MethodGet, "/impact-assessments/export/csv", nil)
	h.ExportCSV(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no impact assessments to export", decodeEnvelope(t, rec).Message)
}

func TestImpactHandlerGetNotFound(t *testing.T) {
	h := NewImpactAssessmentHandler(&fakeImpactService{err: appErrors.Clone(appErrors.ErrNotFound, "impact assessment not found")})
	c, rec := newTestContext(http.MethodGet, "/impact-assessments/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImpactHandlerVerifyPassesActor(t *testing.T) {
	report := sampleReport()
	report.Status = models.ImpactStatusVerified
	svc := &fakeImpactService{report: report}
	h := NewImpactAssessmentHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/impact-assessments/"+sampleImpactID+"/verify", []byte(`{"status":"verified","verificationNotes":"checked"}`))
	c.Params = gin.Params{{Key: "id", Value: sampleImpactID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "reviewer-1", Role: models.RoleDepartment})
	h.Verify(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastActor)
	assert.Equal(t, "reviewer-1", svc.lastActor.UserID)
	assert.Equal(t, models.ImpactStatusVerified, svc.lastVerify.Status)
	require.NotNil(t, svc.lastVerify.VerificationNotes)
	assert.Equal(t, "checked", *svc.lastVerify.VerificationNotes)
	assert.Equal(t, "Impact assessment verified successfully", decodeEnvelope(t, rec).Message)
}

func TestImpactHandlerDeleteWithoutUserPassesNilActor(t *testing.T) {
	svc := &fakeImpactService{err: appErrors.ErrUnauthorized}
	h := NewImpactAssessmentHandler(svc)
	c, rec := newTestContext(http.MethodDelete, "/impact-assessments/"+sampleImpactID, nil)
	c.Params = gin.Params{{Key: "id", Value: sampleImpactID}}
	h.Delete(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, svc.lastActor)
	assert.Equal(t, 1, svc.deleteCalls)
}

func TestImpactHandlerBulkDelete(t *testing.T) {
	svc := &fakeImpactService{deleted: 2}
	h := NewImpactAssessmentHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/impact-assessments/bulk/delete", []byte(`{"ids":["a","b","c"]}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdministrator})
	h.BulkDelete(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b", "c"}, svc.lastIDs)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "2 impact assessments deleted successfully", env.Message)
	assert.JSONEq(t, `{"deletedCount":2}`, string(env.Data))
}

func TestImpactHandlerBulkDeleteMalformedBody(t *testing.T) {
	h := NewImpactAssessmentHandler(&fakeImpactService{})
	c, rec := newTestContext(http.MethodPost, "/impact-assessments/bulk/delete", []byte(`{"ids":"a"}`))
	h.BulkDelete(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	assert.Equal(t, "ids must be of type []string", env.Message)
}
