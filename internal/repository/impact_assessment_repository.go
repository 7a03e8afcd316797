package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/impact-assessment-api/internal/models"
)

const impactAssessmentColumns = `id, school_name, school_type, province, district, commune, village, grade_data,
        total_students, total_affected, percentage, impact_types, severity, incident_date, duration, teacher_affected,
        contact_info, description, status, verified_by, verified_at, verification_notes, submitted_at, created_at, updated_at`

// impactSortColumns maps API sort names onto indexed columns. Unknown names
// fall back to submitted_at.
var impactSortColumns = map[string]string{
	"submittedAt":   "submitted_at",
	"createdAt":     "created_at",
	"incidentDate":  "incident_date",
	"severity":      "severity",
	"schoolName":    "school_name",
	"schoolType":    "school_type",
	"province":      "province",
	"status":        "status",
	"percentage":    "percentage",
	"totalAffected": "total_affected",
}

// ImpactAssessmentRepository persists impact assessment reports.
type ImpactAssessmentRepository struct {
	db *sqlx.DB
}

// NewImpactAssessmentRepository constructs the repository.
func NewImpactAssessmentRepository(db *sqlx.DB) *ImpactAssessmentRepository {
	return &ImpactAssessmentRepository{db: db}
}

// ResolveSortColumn returns the column used for the requested sort name.
func ResolveSortColumn(sortBy string) string {
	if column, ok := impactSortColumns[sortBy]; ok {
		return column
	}
	return "submitted_at"
}

func buildImpactWhere(filter models.ImpactAssessmentFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Province != "" {
		conditions = append(conditions, fmt.Sprintf("province = $%d", len(args)+1))
		args = append(args, filter.Province)
	}
	if filter.Severity != nil {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", len(args)+1))
		args = append(args, *filter.Severity)
	}
	if filter.SchoolType != "" {
		conditions = append(conditions, fmt.Sprintf("school_type = $%d", len(args)+1))
		args = append(args, filter.SchoolType)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("incident_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("incident_date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of reports matching the filter together with the total match count.
func (r *ImpactAssessmentRepository) List(ctx context.Context, filter models.ImpactAssessmentFilter) ([]models.ImpactAssessment, int, error) {
	where, args := buildImpactWhere(filter)

	column := ResolveSortColumn(filter.SortBy)
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT %s FROM impact_assessments %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d",
		impactAssessmentColumns, where, column, order, limit, offset)
	var items []models.ImpactAssessment
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list impact assessments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM impact_assessments "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count impact assessments: %w", err)
	}
	return items, total, nil
}

// ListAll returns every report matching the filter, newest submission first.
// A positive maxRows caps the result.
func (r *ImpactAssessmentRepository) ListAll(ctx context.Context, filter models.ImpactAssessmentFilter, maxRows int) ([]models.ImpactAssessment, error) {
	where, args := buildImpactWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM impact_assessments %s ORDER BY submitted_at DESC, id ASC", impactAssessmentColumns, where)
	if maxRows > 0 {
		query += fmt.Sprintf(" LIMIT %d", maxRows)
	}

	var items []models.ImpactAssessment
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list all impact assessments: %w", err)
	}
	return items, nil
}

// impactStatisticsMonths bounds the monthly breakdown to the most recent months.
const impactStatisticsMonths = 12

type impactGroupCount struct {
	GroupKey string `db:"group_key"`
	Count    int    `db:"count"`
}

// Statistics aggregates the reports matching the filter. Every query shares the
// same WHERE clause so the groupings always add up to the total.
func (r *ImpactAssessmentRepository) Statistics(ctx context.Context, filter models.ImpactAssessmentFilter) (*models.ImpactStatistics, error) {
	where, args := buildImpactWhere(filter)

	var totals struct {
		TotalReports          int `db:"total_reports"`
		AffectedSchools       int `db:"affected_schools"`
		TotalAffectedStudents int `db:"total_affected_students"`
		TotalAffectedTeachers int `db:"total_affected_teachers"`
	}
	totalsQuery := `SELECT COUNT(*) AS total_reports, COUNT(DISTINCT school_name) AS affected_schools,
        COALESCE(SUM(total_affected), 0) AS total_affected_students, COALESCE(SUM(teacher_affected), 0) AS total_affected_teachers
        FROM impact_assessments ` + where
	if err := r.db.GetContext(ctx, &totals, totalsQuery, args...); err != nil {
		return nil, fmt.Errorf("query impact totals: %w", err)
	}

	stats := &models.ImpactStatistics{
		TotalReports:          totals.TotalReports,
		AffectedSchools:       totals.AffectedSchools,
		TotalAffectedStudents: totals.TotalAffectedStudents,
		TotalAffectedTeachers: totals.TotalAffectedTeachers,
		ByProvince:            map[string]int{},
		BySeverity:            map[string]int{},
		BySchoolType:          map[string]int{},
		ByMonth:               []models.ImpactMonthCount{},
	}

	groupings := []struct {
		name   string
		column string
		into   map[string]int
	}{
		{name: "province", column: "province::text", into: stats.ByProvince},
		{name: "severity", column: "severity::text", into: stats.BySeverity},
		{name: "school type", column: "school_type::text", into: stats.BySchoolType},
	}
	for _, grouping := range groupings {
		query := fmt.Sprintf("SELECT %s AS group_key, COUNT(*) AS count FROM impact_assessments %s GROUP BY 1", grouping.column, where)
		var rows []impactGroupCount
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("query impact counts by %s: %w", grouping.name, err)
		}
		for _, row := range rows {
			grouping.into[row.GroupKey] = row.Count
		}
	}

	monthQuery := fmt.Sprintf(`SELECT to_char(incident_date, 'YYYY-MM') AS month, COUNT(*) AS count, COALESCE(SUM(total_affected), 0) AS affected_students
        FROM impact_assessments %s GROUP BY 1 ORDER BY 1 DESC LIMIT %d`, where, impactStatisticsMonths)
	if err := r.db.SelectContext(ctx, &stats.ByMonth, monthQuery, args...); err != nil {
		return nil, fmt.Errorf("query impact counts by month: %w", err)
	}
	return stats, nil
}

// FindByID fetches a single report.
func (r *ImpactAssessmentRepository) FindByID(ctx context.Context, id string) (*models.ImpactAssessment, error) {
	query := fmt.Sprintf("SELECT %s FROM impact_assessments WHERE id = $1", impactAssessmentColumns)
	var report models.ImpactAssessment
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// Create inserts a new report.
func (r *ImpactAssessmentRepository) Create(ctx context.Context, report *models.ImpactAssessment) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	if report.SubmittedAt.IsZero() {
		report.SubmittedAt = report.CreatedAt
	}
	report.UpdatedAt = now
	const query = `INSERT INTO impact_assessments (id, school_name, school_type, province, district, commune, village, grade_data,
        total_students, total_affected, percentage, impact_types, severity, incident_date, duration, teacher_affected,
        contact_info, description, status, submitted_at, created_at, updated_at)
        VALUES (:id, :school_name, :school_type, :province, :district, :commune, :village, :grade_data,
        :total_students, :total_affected, :percentage, :impact_types, :severity, :incident_date, :duration, :teacher_affected,
        :contact_info, :description, :status, :submitted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create impact assessment: %w", err)
	}
	return nil
}

// Update rewrites the editable fields of a report. Grade data and totals are
// written by the same statement.
func (r *ImpactAssessmentRepository) Update(ctx context.Context, report *models.ImpactAssessment) error {
	report.UpdatedAt = time.Now().UTC()
	const query = `UPDATE impact_assessments SET school_name = :school_name, school_type = :school_type, province = :province,
        district = :district, commune = :commune, village = :village, grade_data = :grade_data,
        total_students = :total_students, total_affected = :total_affected, percentage = :percentage,
        impact_types = :impact_types, severity = :severity, incident_date = :incident_date, duration = :duration,
        teacher_affected = :teacher_affected, contact_info = :contact_info, description = :description, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, report)
	if err != nil {
		return fmt.Errorf("update impact assessment: %w", err)
	}
	return requireAffected(res)
}

// UpdateVerification stores a reviewer decision.
func (r *ImpactAssessmentRepository) UpdateVerification(ctx context.Context, report *models.ImpactAssessment) error {
	report.UpdatedAt = time.Now().UTC()
	const query = `UPDATE impact_assessments SET status = $2, verified_by = $3, verified_at = $4, verification_notes = $5, updated_at = $6 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, report.ID, report.Status, report.VerifiedBy, report.VerifiedAt, report.VerificationNotes, report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("verify impact assessment: %w", err)
	}
	return requireAffected(res)
}

// Delete permanently removes a report and returns the number of rows removed.
func (r *ImpactAssessmentRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM impact_assessments WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete impact assessment: %w", err)
	}
	return res.RowsAffected()
}

// BulkDelete removes every report whose id is in ids with a single statement.
func (r *ImpactAssessmentRepository) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM impact_assessments WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk delete impact assessments: %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
