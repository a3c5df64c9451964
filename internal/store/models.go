package store

import "time"

const (
	StatusInProgress = "in_progress"
	StatusPDFReady   = "pdf_ready"
	StatusCompleted  = "completed"
)

const ReportTypeComprehensive = "comprehensive"

const (
	InteractionStepCompleted = "form_step_completed"
	InteractionSubmitted     = "form_submitted"
)

type Company struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Industry           string    `json:"industry"`
	EmployeeCountRange string    `json:"employeeCountRange"`
	AnnualRevenueRange string    `json:"annualRevenueRange,omitempty"`
	Website            string    `json:"website,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

type Submission struct {
	ID                   string         `json:"id"`
	CompanyID            string         `json:"companyId"`
	Email                string         `json:"email"`
	CompanyName          string         `json:"companyName"`
	CorrelationID        string         `json:"correlationId"`
	FormData             map[string]any `json:"formData"`
	Status               string         `json:"submissionStatus"`
	CompletionPercentage int            `json:"completionPercentage"`
	CalculatedMetrics    map[string]any `json:"calculatedMetrics"`
	CreatedAt            time.Time      `json:"createdAt"`
	CompletedAt          *time.Time     `json:"completedAt,omitempty"`
}

type Report struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submissionId"`
	ReportType   string         `json:"reportType"`
	ReportData   map[string]any `json:"reportData"`
	PDFURL       string         `json:"pdfUrl,omitempty"`
	PDFFilename  string         `json:"pdfFilename,omitempty"`
	PDFFileSize  int64          `json:"pdfFileSize,omitempty"`
	PDFStoredAt  *time.Time     `json:"pdfStoredAt,omitempty"`
	GeneratedAt  time.Time      `json:"generatedAt"`
	SentAt       *time.Time     `json:"sentAt,omitempty"`
	OpenedAt     *time.Time     `json:"openedAt,omitempty"`
}

func (r Report) HasPDF() bool {
	return r.PDFURL != ""
}

type Interaction struct {
	ID              string         `json:"id"`
	SubmissionID    string         `json:"submissionId"`
	InteractionType string         `json:"interactionType"`
	StepName        string         `json:"stepName,omitempty"`
	TimeSpent       int64          `json:"timeSpent"`
	InteractionData map[string]any `json:"interactionData"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// ReportView is a report joined with the submission it belongs to.
type ReportView struct {
	Report
	Submission Submission `json:"submission"`
}

type companyRow struct {
	ID                 string `db:"id"`
	Name               string `db:"name"`
	Industry           string `db:"industry"`
	EmployeeCountRange string `db:"employee_count_range"`
	AnnualRevenueRange string `db:"annual_revenue_range"`
	Website            string `db:"website"`
	CreatedAt          string `db:"created_at"`
}

func (r companyRow) toCompany() Company {
	return Company{
		ID:                 r.ID,
		Name:               r.Name,
		Industry:           r.Industry,
		EmployeeCountRange: r.EmployeeCountRange,
		AnnualRevenueRange: r.AnnualRevenueRange,
		Website:            r.Website,
		CreatedAt:          stringToTime(r.CreatedAt),
	}
}

type submissionRow struct {
	ID                   string `db:"id"`
	CompanyID            string `db:"company_id"`
	Email                string `db:"email"`
	CompanyName          string `db:"company_name"`
	CorrelationID        string `db:"correlation_id"`
	FormData             string `db:"form_data"`
	Status               string `db:"submission_status"`
	CompletionPercentage int    `db:"completion_percentage"`
	CalculatedMetrics    string `db:"calculated_metrics"`
	CreatedAt            string `db:"created_at"`
	CompletedAt          string `db:"completed_at"`
}

func (r submissionRow) toSubmission() Submission {
	return Submission{
		ID:                   r.ID,
		CompanyID:            r.CompanyID,
		Email:                r.Email,
		CompanyName:          r.CompanyName,
		CorrelationID:        r.CorrelationID,
		FormData:             unmarshalJSON(r.FormData),
		Status:               r.Status,
		CompletionPercentage: r.CompletionPercentage,
		CalculatedMetrics:    unmarshalJSON(r.CalculatedMetrics),
		CreatedAt:            stringToTime(r.CreatedAt),
		CompletedAt:          stringToTimePtr(r.CompletedAt),
	}
}

type reportRow struct {
	ID           string `db:"id"`
	SubmissionID string `db:"submission_id"`
	ReportType   string `db:"report_type"`
	ReportData   string `db:"report_data"`
	PDFURL       string `db:"pdf_url"`
	PDFFilename  string `db:"pdf_filename"`
	PDFFileSize  int64  `db:"pdf_file_size"`
	PDFStoredAt  string `db:"pdf_stored_at"`
	GeneratedAt  string `db:"generated_at"`
	SentAt       string `db:"sent_at"`
	OpenedAt     string `db:"opened_at"`
}

func (r reportRow) toReport() Report {
	return Report{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		ReportType:   r.ReportType,
		ReportData:   unmarshalJSON(r.ReportData),
		PDFURL:       r.PDFURL,
		PDFFilename:  r.PDFFilename,
		PDFFileSize:  r.PDFFileSize,
		PDFStoredAt:  stringToTimePtr(r.PDFStoredAt),
		GeneratedAt:  stringToTime(r.GeneratedAt),
		SentAt:       stringToTimePtr(r.SentAt),
		OpenedAt:     stringToTimePtr(r.OpenedAt),
	}
}

// reportViewRow scans a report joined with its submission; submission
// columns carry an s_ prefix.
type reportViewRow struct {
	reportRow
	SCompanyID            string `db:"s_company_id"`
	SEmail                string `db:"s_email"`
	SCompanyName          string `db:"s_company_name"`
	SCorrelationID        string `db:"s_correlation_id"`
	SFormData             string `db:"s_form_data"`
	SStatus               string `db:"s_submission_status"`
	SCompletionPercentage int    `db:"s_completion_percentage"`
	SCalculatedMetrics    string `db:"s_calculated_metrics"`
	SCreatedAt            string `db:"s_created_at"`
	SCompletedAt          string `db:"s_completed_at"`
}

func (r reportViewRow) toView() ReportView {
	return ReportView{
		Report: r.reportRow.toReport(),
		Submission: submissionRow{
			ID:                   r.SubmissionID,
			CompanyID:            r.SCompanyID,
			Email:                r.SEmail,
			CompanyName:          r.SCompanyName,
			CorrelationID:        r.SCorrelationID,
			FormData:             r.SFormData,
			Status:               r.SStatus,
			CompletionPercentage: r.SCompletionPercentage,
			CalculatedMetrics:    r.SCalculatedMetrics,
			CreatedAt:            r.SCreatedAt,
			CompletedAt:          r.SCompletedAt,
		}.toSubmission(),
	}
}
