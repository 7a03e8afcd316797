package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/impact-assessment-api/internal/models"
)

var impactColumnNames = []string{"id", "school_name", "school_type", "province", "district", "commune", "village", "grade_data",
	"total_students", "total_affected", "percentage", "impact_types", "severity", "incident_date", "duration", "teacher_affected",
	"contact_info", "description", "status", "verified_by", "verified_at", "verification_notes", "submitted_at", "created_at", "updated_at"}

func newImpactMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func impactRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows(impactColumnNames)
	now := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
	for _, id := range ids {
		rows.AddRow(id, "Sala Prey Veng", "primary", "battambang", "Thma Koul", "Ta Pung", "Kouk Khmum",
			[]byte(`[{"grade":"1","totalStudents":100,"affectedStudents":40}]`), 100, 40, 40, "{school_closure,learning_disruption}",
			3, now, nil, 2, "012 345 678", "", "pending", nil, nil, nil, now, now, now)
	}
	return rows
}

func TestImpactAssessmentRepositoryListDefaults(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf("SELECT %s FROM impact_assessments WHERE 1=1 ORDER BY submitted_at DESC, id ASC LIMIT 10 OFFSET 0", impactAssessmentColumns))).
		WillReturnRows(impactRows("a1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM impact_assessments WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ImpactAssessmentFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, 40, items[0].Percentage)
	assert.Equal(t, models.ImpactTypes{models.ImpactSchoolClosure, models.ImpactLearningDisruption}, items[0].ImpactTypes)
	assert.Equal(t, "1", items[0].GradeData[0].Grade)
	assert.Nil(t, items[0].Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryListFiltersAndSort(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	severity := 3
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	filter := models.ImpactAssessmentFilter{
		Province:   models.ProvinceBattambang,
		Severity:   &severity,
		SchoolType: models.SchoolTypePrimary,
		Status:     models.ImpactStatusPending,
		StartDate:  &start,
		EndDate:    &end,
		Page:       3,
		Limit:      5,
		SortBy:     "severity",
		SortOrder:  "asc",
	}
	where := "WHERE 1=1 AND province = $1 AND severity = $2 AND school_type = $3 AND status = $4 AND incident_date >= $5 AND incident_date <= $6"

	mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf("SELECT %s FROM impact_assessments %s ORDER BY severity ASC, id ASC LIMIT 5 OFFSET 10", impactAssessmentColumns, where))).
		WithArgs(models.ProvinceBattambang, 3, models.SchoolTypePrimary, models.ImpactStatusPending, start, end).
		WillReturnRows(impactRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM impact_assessments "+where)).
		WithArgs(models.ProvinceBattambang, 3, models.SchoolTypePrimary, models.ImpactStatusPending, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryListUnknownSortFallsBack(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY submitted_at DESC, id ASC LIMIT 10 OFFSET 0")).
		WillReturnRows(impactRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM impact_assessments WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.ImpactAssessmentFilter{SortBy: "school_name; DROP TABLE impact_assessments", SortOrder: "sideways"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryListAllWithCap(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf("SELECT %s FROM impact_assessments WHERE 1=1 AND province = $1 ORDER BY submitted_at DESC, id ASC LIMIT 500", impactAssessmentColumns))).
		WithArgs(models.ProvincePailin).
		WillReturnRows(impactRows("a1", "a2"))

	items, err := repo.ListAll(context.Background(), models.ImpactAssessmentFilter{Province: models.ProvincePailin, Page: 4, Limit: 1}, 500)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

const impactTotalsSelect = "SELECT COUNT(*) AS total_reports, COUNT(DISTINCT school_name) AS affected_schools, " +
	"COALESCE(SUM(total_affected), 0) AS total_affected_students, COALESCE(SUM(teacher_affected), 0) AS total_affected_teachers " +
	"FROM impact_assessments "

func expectImpactStatistics(mock sqlmock.Sqlmock, where string, args []driver.Value, totals, provinces, severities, schoolTypes, months *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta(impactTotalsSelect + where)).WithArgs(args...).WillReturnRows(totals)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT province::text AS group_key, COUNT(*) AS count FROM impact_assessments " + where + " GROUP BY 1")).
		WithArgs(args...).WillReturnRows(provinces)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT severity::text AS group_key, COUNT(*) AS count FROM impact_assessments " + where + " GROUP BY 1")).
		WithArgs(args...).WillReturnRows(severities)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT school_type::text AS group_key, COUNT(*) AS count FROM impact_assessments " + where + " GROUP BY 1")).
		WithArgs(args...).WillReturnRows(schoolTypes)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_char(incident_date, 'YYYY-MM') AS month, COUNT(*) AS count, COALESCE(SUM(total_affected), 0) AS affected_students " +
		"FROM impact_assessments " + where + " GROUP BY 1 ORDER BY 1 DESC LIMIT 12")).
		WithArgs(args...).WillReturnRows(months)
}

func TestImpactAssessmentRepositoryStatisticsAggregatesInSQL(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	severity := 3
	filter := models.ImpactAssessmentFilter{Province: models.ProvinceBattambang, Severity: &severity, Page: 7, Limit: 2}
	expectImpactStatistics(mock, "WHERE 1=1 AND province = $1 AND severity = $2", []driver.Value{"battambang", 3},
		sqlmock.NewRows([]string{"total_reports", "affected_schools", "total_affected_students", "total_affected_teachers"}).AddRow(3, 2, 60, 3),
		sqlmock.NewRows([]string{"group_key", "count"}).AddRow("battambang", 3),
		sqlmock.NewRows([]string{"group_key", "count"}).AddRow("3", 3),
		sqlmock.NewRows([]string{"group_key", "count"}).AddRow("primary", 2).AddRow("high_school", 1),
		sqlmock.NewRows([]string{"month", "count", "affected_students"}).AddRow("2025-03", 1, 30).AddRow("2025-02", 2, 30),
	)

	stats, err := repo.Statistics(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalReports)
	assert.Equal(t, 2, stats.AffectedSchools)
	assert.Equal(t, 60, stats.TotalAffectedStudents)
	assert.Equal(t, 3, stats.TotalAffectedTeachers)
	assert.Equal(t, map[string]int{"battambang": 3}, stats.ByProvince)
	assert.Equal(t, map[string]int{"3": 3}, stats.BySeverity)
	assert.Equal(t, map[string]int{"primary": 2, "high_school": 1}, stats.BySchoolType)
	assert.Equal(t, []models.ImpactMonthCount{
		{Month: "2025-03", Count: 1, AffectedStudents: 30},
		{Month: "2025-02", Count: 2, AffectedStudents: 30},
	}, stats.ByMonth)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryStatisticsEmptySet(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	expectImpactStatistics(mock, "WHERE 1=1", nil,
		sqlmock.NewRows([]string{"total_reports", "affected_schools", "total_affected_students", "total_affected_teachers"}).AddRow(0, 0, 0, 0),
		sqlmock.NewRows([]string{"group_key", "count"}),
		sqlmock.NewRows([]string{"group_key", "count"}),
		sqlmock.NewRows([]string{"group_key", "count"}),
		sqlmock.NewRows([]string{"month", "count", "affected_students"}),
	)

	stats, err := repo.Statistics(context.Background(), models.ImpactAssessmentFilter{})
	require.NoError(t, err)
	assert.Zero(t, stats.TotalReports)
	assert.NotNil(t, stats.ByProvince)
	assert.Empty(t, stats.ByProvince)
	assert.Empty(t, stats.BySeverity)
	assert.Empty(t, stats.BySchoolType)
	assert.NotNil(t, stats.ByMonth)
	assert.Empty(t, stats.ByMonth)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryStatisticsGroupingError(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(impactTotalsSelect + "WHERE 1=1 AND status = $1")).
		WithArgs("verified").
		WillReturnRows(sqlmock.NewRows([]string{"total_reports", "affected_schools", "total_affected_students", "total_affected_teachers"}).AddRow(1, 1, 5, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT province::text AS group_key")).
		WillReturnError(sql.ErrConnDone)

	_, err := repo.Statistics(context.Background(), models.ImpactAssessmentFilter{Status: models.ImpactStatusVerified})
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "by province")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM impact_assessments WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	args := make([]driver.Value, 22)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO impact_assessments").
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	report := &models.ImpactAssessment{
		SchoolName:  "Sala",
		SchoolType:  models.SchoolTypePrimary,
		Province:    models.ProvincePursat,
		GradeData:   models.GradeData{{Grade: "1", TotalStudents: 10, AffectedStudents: 5}},
		ImpactTypes: models.ImpactTypes{models.ImpactOther},
		Severity:    1,
		Status:      models.ImpactStatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), report))
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, report.CreatedAt, report.SubmittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	mock.ExpectExec("UPDATE impact_assessments SET school_name").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.ImpactAssessment{ID: "gone"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryUpdateVerification(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	reviewer := "user-1"
	at := time.Now().UTC()
	notes := "confirmed on site"
	report := &models.ImpactAssessment{ID: "a1", Status: models.ImpactStatusVerified, VerifiedBy: &reviewer, VerifiedAt: &at, VerificationNotes: &notes}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE impact_assessments SET status = $2, verified_by = $3")).
		WithArgs("a1", models.ImpactStatusVerified, &reviewer, &at, &notes, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateVerification(context.Background(), report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM impact_assessments WHERE id = $1")).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.Delete(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryBulkDelete(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	ids := []string{"a1", "a2", "a3"}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM impact_assessments WHERE id = ANY($1)")).
		WithArgs(pq.Array(ids)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := repo.BulkDelete(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImpactAssessmentRepositoryBulkDeleteFailureAbortsBatch(t *testing.T) {
	db, mock, cleanup := newImpactMock(t)
	defer cleanup()
	repo := NewImpactAssessmentRepository(db)

	mock.ExpectExec("DELETE FROM impact_assessments").
		WillReturnError(fmt.Errorf("connection reset"))

	affected, err := repo.BulkDelete(context.Background(), []string{"a1"})
	require.Error(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveSortColumn(t *testing.T) {
	assert.Equal(t, "incident_date", ResolveSortColumn("incidentDate"))
	assert.Equal(t, "percentage", ResolveSortColumn("percentage"))
	assert.Equal(t, "submitted_at", ResolveSortColumn(""))
	assert.Equal(t, "submitted_at", ResolveSortColumn("password"))
}
