package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// SchoolType categorises the affected school.
type SchoolType string

const (
	SchoolTypePreschool           SchoolType = "preschool"
	SchoolTypePrimary             SchoolType = "primary"
	SchoolTypeLowerSecondary      SchoolType = "lower_secondary"
	SchoolTypeUpperSecondary      SchoolType = "upper_secondary"
	SchoolTypeHighSchool          SchoolType = "high_school"
	SchoolTypeTechnicalVocational SchoolType = "technical_vocational"
	SchoolTypeCommunityLearning   SchoolType = "community_learning_center"
)

// SchoolTypes lists every accepted school type.
var SchoolTypes = []SchoolType{
	SchoolTypePreschool,
	SchoolTypePrimary,
	SchoolTypeLowerSecondary,
	SchoolTypeUpperSecondary,
	SchoolTypeHighSchool,
	SchoolTypeTechnicalVocational,
	SchoolTypeCommunityLearning,
}

// IsValid reports whether the school type is known.
func (t SchoolType) IsValid() bool {
	for _, known := range SchoolTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Province identifies one of the border provinces covered by the assessment.
type Province string

const (
	ProvinceBanteayMeanchey Province = "banteay_meanchey"
	ProvinceBattambang      Province = "battambang"
	ProvinceKohKong         Province = "koh_kong"
	ProvinceOddarMeanchey   Province = "oddar_meanchey"
	ProvincePailin          Province = "pailin"
	ProvincePreahVihear     Province = "preah_vihear"
	ProvincePursat          Province = "pursat"
	ProvinceSiemReap        Province = "siem_reap"
)

// Provinces lists every accepted province.
var Provinces = []Province{
	ProvinceBanteayMeanchey,
	ProvinceBattambang,
	ProvinceKohKong,
	ProvinceOddarMeanchey,
	ProvincePailin,
	ProvincePreahVihear,
	ProvincePursat,
	ProvinceSiemReap,
}

// IsValid reports whether the province is known.
func (p Province) IsValid() bool {
	for _, known := range Provinces {
		if p == known {
			return true
		}
	}
	return false
}

// ImpactType describes the kind of disruption experienced by a school.
type ImpactType string

const (
	ImpactSchoolClosure         ImpactType = "school_closure"
	ImpactStudentDisplacement   ImpactType = "student_displacement"
	ImpactTeacherDisplacement   ImpactType = "teacher_displacement"
	ImpactInfrastructureDamage  ImpactType = "infrastructure_damage"
	ImpactLearningDisruption    ImpactType = "learning_disruption"
	ImpactPsychologicalDistress ImpactType = "psychological_distress"
	ImpactEvacuationShelter     ImpactType = "evacuation_shelter"
	ImpactOther                 ImpactType = "other"
)

// ImpactTypeValues lists every accepted impact type.
var ImpactTypeValues = []ImpactType{
	ImpactSchoolClosure,
	ImpactStudentDisplacement,
	ImpactTeacherDisplacement,
	ImpactInfrastructureDamage,
	ImpactLearningDisruption,
	ImpactPsychologicalDistress,
	ImpactEvacuationShelter,
	ImpactOther,
}

// IsValid reports whether the impact type is known.
func (t ImpactType) IsValid() bool {
	for _, known := range ImpactTypeValues {
		if t == known {
			return true
		}
	}
	return false
}

// ImpactStatus tracks the review workflow of a report.
type ImpactStatus string

const (
	ImpactStatusPending  ImpactStatus = "pending"
	ImpactStatusVerified ImpactStatus = "verified"
	ImpactStatusRejected ImpactStatus = "rejected"
)

// IsValid reports whether the status is known.
func (s ImpactStatus) IsValid() bool {
	switch s {
	case ImpactStatusPending, ImpactStatusVerified, ImpactStatusRejected:
		return true
	}
	return false
}

// IsDecision reports whether the status is a reviewer outcome.
func (s ImpactStatus) IsDecision() bool {
	return s == ImpactStatusVerified || s == ImpactStatusRejected
}

// GradeEntry captures enrolment and impact for one grade of a school.
type GradeEntry struct {
	Grade            string `json:"grade" validate:"required"`
	TotalStudents    int    `json:"totalStudents" validate:"min=0"`
	AffectedStudents int    `json:"affectedStudents" validate:"min=0"`
}

// GradeData is persisted as a JSONB array.
type GradeData []GradeEntry

// Value implements driver.Valuer.
func (g GradeData) Value() (driver.Value, error) {
	if g == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(g)
}

// Scan implements sql.Scanner.
func (g *GradeData) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*g = GradeData{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan grade data: unsupported type %T", src)
	}
	var entries []GradeEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("scan grade data: %w", err)
	}
	*g = entries
	return nil
}

// ImpactTypes is persisted as a text[] column.
type ImpactTypes []ImpactType

// Value implements driver.Valuer.
func (t ImpactTypes) Value() (driver.Value, error) {
	values := make(pq.StringArray, len(t))
	for i, v := range t {
		values[i] = string(v)
	}
	return values.Value()
}

// Scan implements sql.Scanner.
func (t *ImpactTypes) Scan(src interface{}) error {
	var values pq.StringArray
	if err := values.Scan(src); err != nil {
		return fmt.Errorf("scan impact types: %w", err)
	}
	out := make(ImpactTypes, len(values))
	for i, v := range values {
		out[i] = ImpactType(v)
	}
	*t = out
	return nil
}

// Join renders impact types for display.
func (t ImpactTypes) Join(sep string) string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = string(v)
	}
	return strings.Join(parts, sep)
}

// ImpactTotals is derived from grade data and never taken from clients.
type ImpactTotals struct {
	TotalStudents int `db:"total_students" json:"totalStudents"`
	TotalAffected int `db:"total_affected" json:"totalAffected"`
	Percentage    int `db:"percentage" json:"percentage"`
}

// ImpactAssessment is a school disruption report.
type ImpactAssessment struct {
	ID                string       `db:"id" json:"id"`
	SchoolName        string       `db:"school_name" json:"schoolName"`
	SchoolType        SchoolType   `db:"school_type" json:"schoolType"`
	Province          Province     `db:"province" json:"province"`
	District          string       `db:"district" json:"district"`
	Commune           string       `db:"commune" json:"commune"`
	Village           string       `db:"village" json:"village"`
	GradeData         GradeData    `db:"grade_data" json:"gradeData"`
	ImpactTotals      `json:"totals"`
	ImpactTypes       ImpactTypes  `db:"impact_types" json:"impactTypes"`
	Severity          int          `db:"severity" json:"severity"`
	IncidentDate      time.Time    `db:"incident_date" json:"incidentDate"`
	Duration          *int         `db:"duration" json:"duration,omitempty"`
	TeacherAffected   int          `db:"teacher_affected" json:"teacherAffected"`
	ContactInfo       string       `db:"contact_info" json:"contactInfo"`
	Description       string       `db:"description" json:"description"`
	Status            ImpactStatus `db:"status" json:"status"`
	VerifiedBy        *string      `db:"verified_by" json:"verifiedBy,omitempty"`
	VerifiedAt        *time.Time   `db:"verified_at" json:"verifiedAt,omitempty"`
	VerificationNotes *string      `db:"verification_notes" json:"verificationNotes,omitempty"`
	SubmittedAt       time.Time    `db:"submitted_at" json:"submittedAt"`
	CreatedAt         time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updatedAt"`
}

// ReferenceID formats the display identifier, e.g. IA-2025-3F9A1C.
func (a ImpactAssessment) ReferenceID() string {
	suffix := strings.ReplaceAll(a.ID, "-", "")
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("IA-%d-%s", a.CreatedAt.Year(), strings.ToUpper(suffix))
}

// ImpactAssessmentFilter scopes list, statistics and export queries. All set
// fields are combined with AND.
type ImpactAssessmentFilter struct {
	Province   Province
	Severity   *int
	SchoolType SchoolType
	Status     ImpactStatus
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// ImpactStatistics summarises a filtered set of reports for dashboards.
type ImpactStatistics struct {
	TotalReports          int                `json:"totalReports"`
	AffectedSchools       int                `json:"affectedSchools"`
	TotalAffectedStudents int                `json:"totalAffectedStudents"`
	TotalAffectedTeachers int                `json:"totalAffectedTeachers"`
	ByProvince            map[string]int     `json:"byProvince"`
	BySeverity            map[string]int     `json:"bySeverity"`
	BySchoolType          map[string]int     `json:"bySchoolType"`
	ByMonth               []ImpactMonthCount `json:"byMonth"`
}

// ImpactMonthCount aggregates reports whose incident falls in one calendar month.
type ImpactMonthCount struct {
	Month            string `db:"month" json:"month"`
	Count            int    `db:"count" json:"count"`
	AffectedStudents int    `db:"affected_students" json:"affectedStudents"`
}

// ExportFormat names a downloadable rendering of the export rows.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatPDF  ExportFormat = "pdf"
)

// IsValid reports whether the export format is supported.
func (f ExportFormat) IsValid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatXLSX, ExportFormatPDF:
		return true
	}
	return false
}
