package entity

import (
	"time"

	"github.com/joseph-ayodele/nomina-receipts/constants"
)

// Slot names one of the three document references a receipt can hold.
type Slot string

const (
	SlotPDF1 Slot = "pdf1"
	SlotPDF2 Slot = "pdf2"
	SlotXML  Slot = "xml"
)

// PayrollReceipt bundles an employee's documents for one pay period.
type PayrollReceipt struct {
	ID           int                  `json:"id"`
	EmployeeID   int                  `json:"employee_id"`
	RFC          string               `json:"rfc"`
	FechaPeriodo time.Time            `json:"fecha_periodo"`
	RFCFecha     string               `json:"rfc_fecha"`
	PeriodType   constants.PeriodType `json:"period_type"`
	PeriodID     *string              `json:"period_id,omitempty"`
	PDF1Filename *string              `json:"pdf1_filename,omitempty"`
	PDF2Filename *string              `json:"pdf2_filename,omitempty"`
	XMLFilename  *string              `json:"xml_filename,omitempty"`
	BatchID      *int                 `json:"batch_id,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// SlotValue returns the filename stored in a slot, or "" when the slot is empty.
func (r *PayrollReceipt) SlotValue(s Slot) string {
	var p *string
	switch s {
	case SlotPDF1:
		p = r.PDF1Filename
	case SlotPDF2:
		p = r.PDF2Filename
	case SlotXML:
		p = r.XMLFilename
	}
	if p == nil {
		return ""
	}
	return *p
}

// ReceiptKey builds the composite rfc_fecha key: RFC + "_" + YYYY-MM-DD.
func ReceiptKey(rfc string, periodDate time.Time) string {
	return rfc + "_" + periodDate.Format(constants.PeriodDateLayout)
}
