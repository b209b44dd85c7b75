package entity

import (
	"time"

	"github.com/joseph-ayodele/nomina-receipts/constants"
)

// Batch represents one ingestion run for data transfer between layers.
type Batch struct {
	ID             int                   `json:"id"`
	PeriodType     constants.PeriodType  `json:"period_type"`
	PeriodID       string                `json:"period_id"`
	FechaPeriodo   time.Time             `json:"fecha_periodo"`
	ZipFilename    *string               `json:"zip_filename,omitempty"`
	ZipURL         *string               `json:"zip_url,omitempty"`
	Status         constants.BatchStatus `json:"status"`
	TotalFiles     int                   `json:"total_files"`
	ProcessedFiles int                   `json:"processed_files"`
	SuccessFiles   int                   `json:"success_files"`
	ErrorFiles     int                   `json:"error_files"`
	CreatedBy      *string               `json:"created_by,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
}

// PeriodDate returns the batch period as a calendar date string (YYYY-MM-DD).
func (b *Batch) PeriodDate() string {
	return b.FechaPeriodo.Format(constants.PeriodDateLayout)
}

// BatchCounters are the aggregate counts written together with the terminal status.
type BatchCounters struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Errors    int `json:"errors"`
}
