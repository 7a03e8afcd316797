package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/impact-assessment-api/internal/dto"
	"github.com/noah-isme/impact-assessment-api/internal/middleware"
	"github.com/noah-isme/impact-assessment-api/internal/models"
	appErrors "github.com/noah-isme/impact-assessment-api/pkg/errors"
	"github.com/noah-isme/impact-assessment-api/pkg/response"
)

const exportTruncatedHeader = "X-Export-Truncated"

type impactAssessmentService interface {
	Create(ctx context.Context, req dto.CreateImpactAssessmentRequest) (*models.ImpactAssessment, error)
	Get(ctx context.Context, id string) (*models.ImpactAssessment, error)
	List(ctx context.Context, filter models.ImpactAssessmentFilter) ([]models.ImpactAssessment, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.UpdateImpactAssessmentRequest) (*models.ImpactAssessment, error)
	Statistics(ctx context.Context, filter models.ImpactAssessmentFilter) (*models.ImpactStatistics, bool, error)
	Export(ctx context.Context, filter models.ImpactAssessmentFilter, format models.ExportFormat) (*dto.ImpactExportFile, error)
	Verify(ctx context.Context, id string, actor *models.Actor, req dto.VerifyImpactAssessmentRequest) (*models.ImpactAssessment, error)
	Delete(ctx context.Context, id string, actor *models.Actor) error
	BulkDelete(ctx context.Context, ids []string, actor *models.Actor) (int64, error)
}

// ImpactAssessmentHandler exposes school impact reports over HTTP.
type ImpactAssessmentHandler struct {
	service impactAssessmentService
}

// NewImpactAssessmentHandler constructs the handler.
func NewImpactAssessmentHandler(service impactAssessmentService) *ImpactAssessmentHandler {
	return &ImpactAssessmentHandler{service: service}
}

// Create godoc
// @Summary Submit an impact assessment
// @Description Public endpoint. Totals are derived from gradeData; client supplied totals are ignored.
// @Tags ImpactAssessments
// @Accept json
// @Produce json
// @Param payload body dto.CreateImpactAssessmentRequest true "Impact assessment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /impact-assessments [post]
func (h *ImpactAssessmentHandler) Create(c *gin.Context) {
	var req dto.CreateImpactAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, appErrors.ErrValidation, "invalid request body"))
		return
	}
	report, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewImpactAssessmentResponse(report), "Impact assessment submitted successfully")
}

// List godoc
// @Summary List impact assessments
// @Tags ImpactAssessments
// @Produce json
// @Security BearerAuth
// @Param province query string false "Province"
// @Param severity query int false "Severity (1-5)"
// @Param startDate query string false "Incident date lower bound (YYYY-MM-DD)"
// @Param endDate query string false "Incident date upper bound (YYYY-MM-DD)"
// @Param schoolType query string false "School type"
// @Param status query string false "Status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sortBy query string false "Sort field"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /impact-assessments [get]
func (h *ImpactAssessmentHandler) List(c *gin.Context) {
	filter, err := parseImpactFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewImpactAssessmentResponses(items), pagination)
}

// Get godoc
// @Summary Get impact assessment
// @Tags ImpactAssessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Impact assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /impact-assessments/{id} [get]
func (h *ImpactAssessmentHandler) Get(c *gin.Context) {
	report, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewImpactAssessmentResponse(report), nil)
}

// Update godoc
// @Summary Update impact assessment
// @Tags ImpactAssessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Impact assessment ID"
// @Param payload body dto.UpdateImpactAssessmentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /impact-assessments/{id} [patch]
func (h *ImpactAssessmentHandler) Update(c *gin.Context) {
	var req dto.UpdateImpactAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, appErrors.ErrValidation, "invalid request body"))
		return
	}
	report, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Impact assessment updated successfully", dto.NewImpactAssessmentResponse(report))
}

// Statistics godoc
// @Summary Aggregate impact statistics
// @Tags ImpactAssessments
// @Produce json
// @Security BearerAuth
// @Param province query string false "Province"
// @Param severity query int false "Severity (1-5)"
// @Param startDate query string false "Incident date lower bound (YYYY-MM-DD)"
// @Param endDate query string false "Incident date upper bound (YYYY-MM-DD)"
// @Param schoolType query string false "School type"
// @Param status query string false "Status"
// @Success 200 {object} response.Envelope
// @Router /impact-assessments/statistics [get]
func (h *ImpactAssessmentHandler) Statistics(c *gin.Context) {
	filter, err := parseImpactFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, cacheHit, err := h.service.Statistics(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// ExportCSV godoc
// @Summary Export impact assessments as CSV
// @Tags ImpactAssessments
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Header 200 {string} X-Export-Truncated "true when EXPORT_MAX_ROWS cut the file short"
// @Failure 404 {object} response.Envelope
// @Router /impact-assessments/export/csv [get]
func (h *ImpactAssessmentHandler) ExportCSV(c *gin.Context) {
	h.export(c, models.ExportFormatCSV)
}

// ExportXLSX godoc
// @Summary Export impact assessments as an Excel workbook
// @Tags ImpactAssessments
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file
// @Header 200 {string} X-Export-Truncated "true when EXPORT_MAX_ROWS cut the file short"
// @Failure 404 {object} response.Envelope
// @Router /impact-assessments/export/xlsx [get]
func (h *ImpactAssessmentHandler) ExportXLSX(c *gin.Context) {
	h.export(c, models.ExportFormatXLSX)
}

// ExportPDF godoc
// @Summary Export impact assessments as PDF
// @Tags ImpactAssessments
// @Produce application/pdf
// @Security BearerAuth
// @Success 200 {file} file
// @Header 200 {string} X-Export-Truncated "true when EXPORT_MAX_ROWS cut the file short"
// @Failure 404 {object} response.Envelope
// @Router /impact-assessments/export/pdf [get]
func (h *ImpactAssessmentHandler) ExportPDF(c *gin.Context) {
	h.export(c, models.ExportFormatPDF)
}

func (h *ImpactAssessmentHandler) export(c *gin.Context, format models.ExportFormat) {
	filter, err := parseImpactFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	if file.Truncated {
		c.Header(exportTruncatedHeader, "true")
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// Verify godoc
// @Summary Verify or reject an impact assessment
// @Tags ImpactAssessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Impact assessment ID"
// @Param payload body dto.VerifyImpactAssessmentRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /impact-assessments/{id}/verify [post]
func (h *ImpactAssessmentHandler) Verify(c *gin.Context) {
	var req dto.VerifyImpactAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, appErrors.ErrValidation, "invalid request body"))
		return
	}
	report, err := h.service.Verify(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, fmt.Sprintf("Impact assessment %s successfully", report.Status), dto.NewImpactAssessmentResponse(report))
}

// Delete godoc
// @Summary Delete impact assessment
// @Tags ImpactAssessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Impact assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /impact-assessments/{id} [delete]
func (h *ImpactAssessmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Impact assessment deleted successfully", nil)
}

// BulkDelete godoc
// @Summary Delete several impact assessments
// @Tags ImpactAssessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BulkDeleteRequest true "Identifiers"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /impact-assessments/bulk/delete [post]
func (h *ImpactAssessmentHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, appErrors.ErrInvalidInput, "ids must be a non-empty list"))
		return
	}
	deleted, err := h.service.BulkDelete(c.Request.Context(), req.IDs, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, fmt.Sprintf("%d impact assessments deleted successfully", deleted), dto.BulkDeleteResponse{DeletedCount: deleted})
}

func parseImpactFilter(c *gin.Context) (models.ImpactAssessmentFilter, error) {
	var filter models.ImpactAssessmentFilter

	if raw := strings.TrimSpace(c.Query("province")); raw != "" {
		filter.Province = models.Province(raw)
		if !filter.Province.IsValid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid province")
		}
	}
	if raw := strings.TrimSpace(c.Query("schoolType")); raw != "" {
		filter.SchoolType = models.SchoolType(raw)
		if !filter.SchoolType.IsValid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid schoolType")
		}
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		filter.Status = models.ImpactStatus(raw)
		if !filter.Status.IsValid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status")
		}
	}
	if raw := strings.TrimSpace(c.Query("severity")); raw != "" {
		severity, err := strconv.Atoi(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "severity must be an integer")
		}
		filter.Severity = &severity
	}

	var err error
	if filter.StartDate, err = parseDateQuery(c, "startDate"); err != nil {
		return filter, err
	}
	if filter.EndDate, err = parseDateQuery(c, "endDate"); err != nil {
		return filter, err
	}

	filter.Page = queryInt(c, "page")
	filter.Limit = queryInt(c, "limit")
	filter.SortBy = strings.TrimSpace(c.Query("sortBy"))
	filter.SortOrder = strings.ToLower(strings.TrimSpace(c.Query("sortOrder")))
	return filter, nil
}

func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s format, expected YYYY-MM-DD", key))
	}
	return &parsed, nil
}

// queryInt returns 0 for missing or malformed values so the service defaults apply.
func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return value
}

// bindError maps a request decoding failure onto base. Type mismatches name the
// offending field; anything else gets the fallback message.
func bindError(err error, base *appErrors.Error, fallback string) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return appErrors.Clone(base, fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type))
	}
	return appErrors.Clone(base, fallback)
}
