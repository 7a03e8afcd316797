package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/impact-assessment-api/internal/dto"
	"github.com/noah-isme/impact-assessment-api/internal/models"
	appErrors "github.com/noah-isme/impact-assessment-api/pkg/errors"
	"github.com/noah-isme/impact-assessment-api/pkg/validation"
)

const (
	defaultImpactPage      = 1
	defaultImpactLimit     = 10
	statisticsCachePrefix  = "impact:statistics"
	statisticsCachePattern = statisticsCachePrefix + ":*"
)

type impactAssessmentRepository interface {
	Create(ctx context.Context, report *models.ImpactAssessment) error
	FindByID(ctx context.Context, id string) (*models.ImpactAssessment, error)
	List(ctx context.Context, filter models.ImpactAssessmentFilter) ([]models.ImpactAssessment, int, error)
	ListAll(ctx context.Context, filter models.ImpactAssessmentFilter, maxRows int) ([]models.ImpactAssessment, error)
	Statistics(ctx context.Context, filter models.ImpactAssessmentFilter) (*models.ImpactStatistics, error)
	Update(ctx context.Context, report *models.ImpactAssessment) error
	UpdateVerification(ctx context.Context, report *models.ImpactAssessment) error
	Delete(ctx context.Context, id string) (int64, error)
	BulkDelete(ctx context.Context, ids []string) (int64, error)
}

// ImpactAssessmentConfig tunes statistics caching and exports.
type ImpactAssessmentConfig struct {
	StatisticsTTL time.Duration
	ExportMaxRows int
}

// ImpactAssessmentService validates, stores and aggregates school impact reports.
type ImpactAssessmentService struct {
	repo      impactAssessmentRepository
	validator *validation.Validator
	cache     *CacheService
	metrics   *MetricsService
	exporter  *ExportService
	logger    *zap.Logger
	config    ImpactAssessmentConfig
	now       func() time.Time
}

// NewImpactAssessmentService constructs the service. Cache and metrics are optional.
func NewImpactAssessmentService(repo impactAssessmentRepository, validate *validation.Validator, cache *CacheService, metrics *MetricsService, exporter *ExportService, logger *zap.Logger, config ImpactAssessmentConfig) *ImpactAssessmentService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = NewExportService(time.UTC, logger, nil, nil, nil)
	}
	return &ImpactAssessmentService{
		repo:      repo,
		validator: validate,
		cache:     cache,
		metrics:   metrics,
		exporter:  exporter,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// DeriveTotals sums grade entries and computes the affected percentage rounded
// half up. The percentage is 0 when no students are enrolled.
func DeriveTotals(grades models.GradeData) models.ImpactTotals {
	var totals models.ImpactTotals
	for _, grade := range grades {
		totals.TotalStudents += grade.TotalStudents
		totals.TotalAffected += grade.AffectedStudents
	}
	if totals.TotalStudents > 0 {
		totals.Percentage = (200*totals.TotalAffected + totals.TotalStudents) / (2 * totals.TotalStudents)
	}
	return totals
}

// ValidateGradeData rejects any grade reporting more affected than enrolled students.
func ValidateGradeData(grades models.GradeData) error {
	for _, grade := range grades {
		if grade.AffectedStudents > grade.TotalStudents {
			return appErrors.Clone(appErrors.ErrInvalidGradeData, fmt.Sprintf(
				"grade %s: affected students (%d) cannot exceed total students (%d)",
				grade.Grade, grade.AffectedStudents, grade.TotalStudents))
		}
	}
	return nil
}

// ValidateSeverity enforces the 1..5 severity scale.
func ValidateSeverity(severity int) error {
	if severity < 1 || severity > 5 {
		return appErrors.Clone(appErrors.ErrInvalidSeverity, fmt.Sprintf("severity must be between 1 and 5, got %d", severity))
	}
	return nil
}

// ValidateAndDeriveTotals checks the cross-field rules of a report and
// overwrites its totals from the grade data.
func ValidateAndDeriveTotals(report *models.ImpactAssessment) error {
	if err := ValidateGradeData(report.GradeData); err != nil {
		return err
	}
	if err := ValidateSeverity(report.Severity); err != nil {
		return err
	}
	report.ImpactTotals = DeriveTotals(report.GradeData)
	return nil
}

// Authorize is the capability check guarding privileged operations.
func (s *ImpactAssessmentService) Authorize(actor *models.Actor, allowed ...models.UserRole) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !actor.HasRole(allowed...) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not perform this action", actor.Role))
	}
	return nil
}

// Create validates a public submission and stores it as pending.
func (s *ImpactAssessmentService) Create(ctx context.Context, req dto.CreateImpactAssessmentRequest) (*models.ImpactAssessment, error) {
	report := &models.ImpactAssessment{
		SchoolName:      strings.TrimSpace(req.SchoolName),
		SchoolType:      req.SchoolType,
		Province:        req.Province,
		District:        strings.TrimSpace(req.District),
		Commune:         strings.TrimSpace(req.Commune),
		Village:         strings.TrimSpace(req.Village),
		GradeData:       req.GradeData,
		ImpactTypes:     req.ImpactTypes,
		Severity:        req.Severity,
		Duration:        req.Duration,
		TeacherAffected: req.TeacherAffected,
		ContactInfo:     req.ContactInfo,
		Description:     req.Description,
		Status:          models.ImpactStatusPending,
	}
	if err := ValidateAndDeriveTotals(report); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, s.validationError(err)
	}
	incidentDate, err := parseIncidentDate(req.IncidentDate)
	if err != nil {
		return nil, err
	}
	report.IncidentDate = incidentDate

	now := s.now().UTC()
	report.ID = uuid.NewString()
	report.SubmittedAt = now
	report.CreatedAt = now

	if err := s.repo.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create impact assessment")
	}
	s.invalidateStatistics(ctx)
	s.metrics.RecordReportEvent("created", 1)
	s.logger.Info("impact assessment submitted",
		zap.String("id", report.ID),
		zap.String("province", string(report.Province)),
		zap.Int("severity", report.Severity),
		zap.Int("affected", report.TotalAffected))
	return report, nil
}

// Get returns one report.
func (s *ImpactAssessmentService) Get(ctx context.Context, id string) (*models.ImpactAssessment, error) {
	return s.load(ctx, id)
}

// List returns a page of reports matching the filter.
func (s *ImpactAssessmentService) List(ctx context.Context, filter models.ImpactAssessmentFilter) ([]models.ImpactAssessment, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = defaultImpactPage
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultImpactLimit
	}
	start := time.Now()
	items, total, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("impact_list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list impact assessments")
	}
	if items == nil {
		items = []models.ImpactAssessment{}
	}
	return items, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Update applies a partial update. Totals are recomputed whenever grade data is supplied.
func (s *ImpactAssessmentService) Update(ctx context.Context, id string, req dto.UpdateImpactAssessmentRequest) (*models.ImpactAssessment, error) {
	if req.GradeData != nil {
		if err := ValidateGradeData(req.GradeData); err != nil {
			return nil, err
		}
	}
	if req.Severity != nil {
		if err := ValidateSeverity(*req.Severity); err != nil {
			return nil, err
		}
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, s.validationError(err)
	}
	var incidentDate *time.Time
	if req.IncidentDate != nil {
		parsed, err := parseIncidentDate(*req.IncidentDate)
		if err != nil {
			return nil, err
		}
		incidentDate = &parsed
	}

	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.SchoolName != nil {
		report.SchoolName = strings.TrimSpace(*req.SchoolName)
	}
	if req.SchoolType != nil {
		report.SchoolType = *req.SchoolType
	}
	if req.Province != nil {
		report.Province = *req.Province
	}
	if req.District != nil {
		report.District = strings.TrimSpace(*req.District)
	}
	if req.Commune != nil {
		report.Commune = strings.TrimSpace(*req.Commune)
	}
	if req.Village != nil {
		report.Village = strings.TrimSpace(*req.Village)
	}
	if req.GradeData != nil {
		report.GradeData = req.GradeData
		report.ImpactTotals = DeriveTotals(req.GradeData)
	}
	if req.ImpactTypes != nil {
		report.ImpactTypes = req.ImpactTypes
	}
	if req.Severity != nil {
		report.Severity = *req.Severity
	}
	if incidentDate != nil {
		report.IncidentDate = *incidentDate
	}
	if req.Duration != nil {
		report.Duration = req.Duration
	}
	if req.TeacherAffected != nil {
		report.TeacherAffected = *req.TeacherAffected
	}
	if req.ContactInfo != nil {
		report.ContactInfo = *req.ContactInfo
	}
	if req.Description != nil {
		report.Description = *req.Description
	}

	if err := s.repo.Update(ctx, report); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "impact assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update impact assessment")
	}
	s.invalidateStatistics(ctx)
	return report, nil
}

// Statistics aggregates every report matching the filter. The boolean reports a cache hit.
func (s *ImpactAssessmentService) Statistics(ctx context.Context, filter models.ImpactAssessmentFilter) (*models.ImpactStatistics, bool, error) {
	key := statisticsCacheKey(filter)
	var cached models.ImpactStatistics
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	start := time.Now()
	stats, err := s.repo.Statistics(ctx, filter)
	s.metrics.ObserveDBQuery("impact_statistics", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute impact statistics")
	}

	stats = normalizeImpactStatistics(stats)
	if err := s.cache.Set(ctx, key, stats, s.config.StatisticsTTL); err != nil {
		s.logger.Warn("cache impact statistics", zap.Error(err))
	}
	return stats, false, nil
}

// ExportRows projects every matching report, newest submission first, into flat rows.
// A positive ExportMaxRows caps the projection.
func (s *ImpactAssessmentService) ExportRows(ctx context.Context, filter models.ImpactAssessmentFilter) ([]dto.ImpactExportRow, error) {
	start := time.Now()
	reports, err := s.repo.ListAll(ctx, filter, s.config.ExportMaxRows)
	s.metrics.ObserveDBQuery("impact_export", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load impact assessments for export")
	}

	rows := make([]dto.ImpactExportRow, 0, len(reports))
	for _, report := range reports {
		rows = append(rows, dto.ImpactExportRow{
			ReferenceID:      report.ReferenceID(),
			SubmittedAt:      report.SubmittedAt,
			SchoolName:       report.SchoolName,
			SchoolType:       string(report.SchoolType),
			Province:         string(report.Province),
			District:         report.District,
			Commune:          report.Commune,
			Village:          report.Village,
			TotalStudents:    report.TotalStudents,
			AffectedStudents: report.TotalAffected,
			Percentage:       report.Percentage,
			TeacherAffected:  report.TeacherAffected,
			Severity:         report.Severity,
			IncidentDate:     report.IncidentDate,
			Duration:         report.Duration,
			ImpactTypes:      report.ImpactTypes.Join(", "),
			Status:           string(report.Status),
			Description:      report.Description,
		})
	}
	return rows, nil
}

// Export renders the matching reports as a downloadable file. An empty result is NotFound.
func (s *ImpactAssessmentService) Export(ctx context.Context, filter models.ImpactAssessmentFilter, format models.ExportFormat) (*dto.ImpactExportFile, error) {
	if !format.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	rows, err := s.ExportRows(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no impact assessments to export")
	}

	file, err := s.exporter.Render(format, rows, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	if s.config.ExportMaxRows > 0 && len(rows) >= s.config.ExportMaxRows {
		file.Truncated = true
		s.logger.Warn("impact export reached row cap",
			zap.String("format", string(format)),
			zap.Int("max_rows", s.config.ExportMaxRows))
	}
	s.metrics.RecordExport(string(format), file.Rows)
	return file, nil
}

// Verify records a reviewer decision. Reports already decided may be reviewed again.
func (s *ImpactAssessmentService) Verify(ctx context.Context, id string, actor *models.Actor, req dto.VerifyImpactAssessmentRequest) (*models.ImpactAssessment, error) {
	if err := s.Authorize(actor, models.ImpactVerifyRoles...); err != nil {
		return nil, err
	}
	if !req.Status.IsDecision() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, "status must be either verified or rejected")
	}

	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := report.Status

	now := s.now().UTC()
	reviewer := actor.UserID
	report.Status = req.Status
	report.VerifiedBy = &reviewer
	report.VerifiedAt = &now
	report.VerificationNotes = req.VerificationNotes

	if err := s.repo.UpdateVerification(ctx, report); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "impact assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify impact assessment")
	}
	s.invalidateStatistics(ctx)
	s.metrics.RecordReportEvent(string(req.Status), 1)

	fields := []zap.Field{
		zap.String("id", report.ID),
		zap.String("status", string(report.Status)),
		zap.String("reviewer", reviewer),
	}
	if previous.IsDecision() {
		s.logger.Info("impact assessment re-verified", append(fields, zap.String("previous_status", string(previous)))...)
	} else {
		s.logger.Info("impact assessment verified", fields...)
	}
	return report, nil
}

// Delete permanently removes one report.
func (s *ImpactAssessmentService) Delete(ctx context.Context, id string, actor *models.Actor) error {
	if err := s.Authorize(actor, models.ImpactDeleteRoles...); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "impact assessment not found")
	}

	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete impact assessment")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "impact assessment not found")
	}
	s.invalidateStatistics(ctx)
	s.metrics.RecordReportEvent("deleted", 1)
	s.logger.Info("impact assessment deleted", zap.String("id", id), zap.String("actor", actor.UserID))
	return nil
}

// BulkDelete removes every listed report in one statement and returns how many existed.
func (s *ImpactAssessmentService) BulkDelete(ctx context.Context, ids []string, actor *models.Actor) (int64, error) {
	if err := s.Authorize(actor, models.ImpactDeleteRoles...); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, appErrors.Clone(appErrors.ErrInvalidInput, "ids must be a non-empty list")
	}

	seen := make(map[string]struct{}, len(ids))
	valid := make([]string, 0, len(ids))
	for _, raw := range ids {
		parsed, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		id := parsed.String()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		valid = append(valid, id)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	deleted, err := s.repo.BulkDelete(ctx, valid)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete impact assessments")
	}
	s.invalidateStatistics(ctx)
	s.metrics.RecordReportEvent("deleted", int(deleted))
	s.logger.Info("impact assessments bulk deleted",
		zap.Int("requested", len(ids)),
		zap.Int64("deleted", deleted),
		zap.String("actor", actor.UserID))
	return deleted, nil
}

func (s *ImpactAssessmentService) load(ctx context.Context, id string) (*models.ImpactAssessment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "impact assessment not found")
	}
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "impact assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load impact assessment")
	}
	return report, nil
}

func (s *ImpactAssessmentService) validationError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, s.validator.Message(err))
}

func (s *ImpactAssessmentService) invalidateStatistics(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, statisticsCachePattern); err != nil {
		s.logger.Warn("invalidate impact statistics cache", zap.Error(err))
	}
}

func statisticsCacheKey(filter models.ImpactAssessmentFilter) string {
	severity := ""
	if filter.Severity != nil {
		severity = strconv.Itoa(*filter.Severity)
	}
	return makeCacheKey(statisticsCachePrefix,
		string(filter.Province),
		severity,
		string(filter.SchoolType),
		string(filter.Status),
		formatDate(filter.StartDate),
		formatDate(filter.EndDate))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseIncidentDate accepts a calendar date or an RFC3339 timestamp.
func parseIncidentDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "incidentDate must be a date in YYYY-MM-DD format")
}
