package entity

import (
	"time"

	"github.com/joseph-ayodele/nomina-receipts/constants"
)

// BatchFile is one audit row per document processed in a batch.
type BatchFile struct {
	ID           int                  `json:"id"`
	BatchID      int                  `json:"batch_id"`
	Filename     string               `json:"filename"`
	FileType     constants.FileType   `json:"file_type"`
	Status       constants.FileStatus `json:"status"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	RFCExtracted *string              `json:"rfc_extracted,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	ProcessedAt  *time.Time           `json:"processed_at,omitempty"`
}
