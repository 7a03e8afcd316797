package service

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/impact-assessment-api/internal/dto"
	"github.com/noah-isme/impact-assessment-api/internal/models"
	"github.com/noah-isme/impact-assessment-api/pkg/export"
)

const exportFilePrefix = "impact-assessment"

// Column labels of the CSV and XLSX exports. Existing consumers depend on
// their order and wording.
var impactExportHeadersKM = []string{
	"លេខសម្គាល់",
	"កាលបរិច្ឆេទដាក់ស្នើ",
	"ឈ្មោះសាលា",
	"ប្រភេទសាលា",
	"ខេត្ត",
	"ស្រុក",
	"ឃុំ",
	"ភូមិ",
	"សិស្សសរុប",
	"សិស្សរងផលប៉ះពាល់",
	"ភាគរយ",
	"គ្រូរងផលប៉ះពាល់",
	"កម្រិតធ្ងន់ធ្ងរ",
	"កាលបរិច្ឆេទកើតហេតុ",
	"រយៈពេល (ថ្ងៃ)",
	"ប្រភេទផលប៉ះពាល់",
	"ស្ថានភាព",
	"ការពិពណ៌នា",
}

// PDF core fonts cannot draw Khmer glyphs.
var impactExportHeadersEN = []string{
	"Reference",
	"Submitted",
	"School",
	"School type",
	"Province",
	"District",
	"Commune",
	"Village",
	"Students",
	"Affected",
	"Percentage",
	"Teachers affected",
	"Severity",
	"Incident date",
	"Duration (days)",
	"Impact types",
	"Status",
	"Description",
}

var exportContentTypes = map[models.ExportFormat]string{
	models.ExportFormatCSV:  "text/csv; charset=utf-8",
	models.ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	models.ExportFormatPDF:  "application/pdf",
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportService turns export rows into downloadable files.
type ExportService struct {
	csv      csvRenderer
	xlsx     xlsxRenderer
	pdf      pdfRenderer
	location *time.Location
	logger   *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// pkg/export implementations and a nil location to UTC.
func NewExportService(location *time.Location, logger *zap.Logger, csv csvRenderer, xlsx xlsxRenderer, pdf pdfRenderer) *ExportService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(export.WithBOM())
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter("Impact Assessments")
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, xlsx: xlsx, pdf: pdf, location: location, logger: logger}
}

// Filename returns the download name for an export generated at the given instant.
func (s *ExportService) Filename(format models.ExportFormat, generatedAt time.Time) string {
	return fmt.Sprintf("%s-%s.%s", exportFilePrefix, generatedAt.In(s.location).Format("2006-01-02"), format)
}

// Render encodes rows in the requested format.
func (s *ExportService) Render(format models.ExportFormat, rows []dto.ImpactExportRow, generatedAt time.Time) (*dto.ImpactExportFile, error) {
	var (
		payload []byte
		err     error
	)
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(s.dataset(impactExportHeadersKM, rows))
	case models.ExportFormatXLSX:
		payload, err = s.xlsx.Render(s.dataset(impactExportHeadersKM, rows))
	case models.ExportFormatPDF:
		subtitle := fmt.Sprintf("Generated %s, %d reports", generatedAt.In(s.location).Format("2006-01-02 15:04"), len(rows))
		payload, err = s.pdf.Render(s.dataset(impactExportHeadersEN, rows), "Impact assessments", subtitle)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}
	s.logger.Debug("rendered impact assessment export", zap.String("format", string(format)), zap.Int("rows", len(rows)), zap.Int("bytes", len(payload)))

	return &dto.ImpactExportFile{
		Filename:    s.Filename(format, generatedAt),
		ContentType: exportContentTypes[format],
		Payload:     payload,
		Rows:        len(rows),
	}, nil
}

func (s *ExportService) dataset(headers []string, rows []dto.ImpactExportRow) export.Dataset {
	data := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		values := s.values(row)
		record := make(map[string]string, len(headers))
		for i, header := range headers {
			record[header] = values[i]
		}
		data.Rows = append(data.Rows, record)
	}
	return data
}

// values lists the cells of one row in column order.
func (s *ExportService) values(row dto.ImpactExportRow) []string {
	teachers := ""
	if row.TeacherAffected > 0 {
		teachers = strconv.Itoa(row.TeacherAffected)
	}
	duration := ""
	if row.Duration != nil {
		duration = strconv.Itoa(*row.Duration)
	}
	return []string{
		row.ReferenceID,
		row.SubmittedAt.In(s.location).Format("2006-01-02"),
		row.SchoolName,
		row.SchoolType,
		row.Province,
		row.District,
		row.Commune,
		row.Village,
		strconv.Itoa(row.TotalStudents),
		strconv.Itoa(row.AffectedStudents),
		strconv.Itoa(row.Percentage) + "%",
		teachers,
		strconv.Itoa(row.Severity),
		row.IncidentDate.Format("2006-01-02"),
		duration,
		row.ImpactTypes,
		row.Status,
		row.Description,
	}
}
