package dto

import (
	"time"

	"github.com/noah-isme/impact-assessment-api/internal/models"
)

// CreateImpactAssessmentRequest is the public submission payload. Any totals
// sent by the client are ignored.
type CreateImpactAssessmentRequest struct {
	SchoolName      string               `json:"schoolName" validate:"required"`
	SchoolType      models.SchoolType    `json:"schoolType" validate:"required,enum"`
	Province        models.Province      `json:"province" validate:"required,enum"`
	District        string               `json:"district" validate:"required"`
	Commune         string               `json:"commune" validate:"required"`
	Village         string               `json:"village" validate:"required"`
	GradeData       models.GradeData     `json:"gradeData" validate:"required,min=1,dive"`
	ImpactTypes     models.ImpactTypes   `json:"impactTypes" validate:"required,min=1,unique,dive,enum"`
	Severity        int                  `json:"severity"`
	IncidentDate    string               `json:"incidentDate" validate:"required"`
	Duration        *int                 `json:"duration" validate:"omitempty,min=0"`
	TeacherAffected int                  `json:"teacherAffected" validate:"min=0"`
	ContactInfo     string               `json:"contactInfo"`
	Description     string               `json:"description"`
	Totals          *models.ImpactTotals `json:"totals,omitempty" validate:"-"`
}

// UpdateImpactAssessmentRequest carries a partial update; nil fields are left untouched.
type UpdateImpactAssessmentRequest struct {
	SchoolName      *string              `json:"schoolName" validate:"omitnil,min=1"`
	SchoolType      *models.SchoolType   `json:"schoolType" validate:"omitnil,enum"`
	Province        *models.Province     `json:"province" validate:"omitnil,enum"`
	District        *string              `json:"district" validate:"omitnil,min=1"`
	Commune         *string              `json:"commune" validate:"omitnil,min=1"`
	Village         *string              `json:"village" validate:"omitnil,min=1"`
	GradeData       models.GradeData     `json:"gradeData" validate:"omitnil,min=1,dive"`
	ImpactTypes     models.ImpactTypes   `json:"impactTypes" validate:"omitnil,min=1,unique,dive,enum"`
	Severity        *int                 `json:"severity"`
	IncidentDate    *string              `json:"incidentDate"`
	Duration        *int                 `json:"duration" validate:"omitnil,min=0"`
	TeacherAffected *int                 `json:"teacherAffected" validate:"omitnil,min=0"`
	ContactInfo     *string              `json:"contactInfo"`
	Description     *string              `json:"description"`
	Totals          *models.ImpactTotals `json:"totals,omitempty" validate:"-"`
}

// VerifyImpactAssessmentRequest records a reviewer decision.
type VerifyImpactAssessmentRequest struct {
	Status            models.ImpactStatus `json:"status"`
	VerificationNotes *string             `json:"verificationNotes"`
}

// BulkDeleteRequest lists report ids to remove.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDeleteResponse reports how many records were removed.
type BulkDeleteResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ImpactAssessmentResponse decorates a report with its display reference.
type ImpactAssessmentResponse struct {
	models.ImpactAssessment
	ReferenceID string `json:"referenceId"`
}

// NewImpactAssessmentResponse wraps the stored report.
func NewImpactAssessmentResponse(report *models.ImpactAssessment) *ImpactAssessmentResponse {
	if report == nil {
		return nil
	}
	return &ImpactAssessmentResponse{ImpactAssessment: *report, ReferenceID: report.ReferenceID()}
}

// NewImpactAssessmentResponses wraps a page of reports.
func NewImpactAssessmentResponses(reports []models.ImpactAssessment) []ImpactAssessmentResponse {
	out := make([]ImpactAssessmentResponse, 0, len(reports))
	for i := range reports {
		out = append(out, *NewImpactAssessmentResponse(&reports[i]))
	}
	return out
}

// ImpactExportRow is one flat export record.
type ImpactExportRow struct {
	ReferenceID      string
	SubmittedAt      time.Time
	SchoolName       string
	SchoolType       string
	Province         string
	District         string
	Commune          string
	Village          string
	TotalStudents    int
	AffectedStudents int
	Percentage       int
	TeacherAffected  int
	Severity         int
	IncidentDate     time.Time
	Duration         *int
	ImpactTypes      string
	Status           string
	Description      string
}

// ImpactExportFile is a rendered export ready for download. Truncated is set
// when the row cap cut the result short.
type ImpactExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
	Rows        int
	Truncated   bool
}
