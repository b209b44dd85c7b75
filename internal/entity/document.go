package entity

import "github.com/joseph-ayodele/nomina-receipts/constants"

// LinkMethod records how a document's RFC was established.
type LinkMethod string

const (
	LinkNone           LinkMethod = ""
	LinkCFDI           LinkMethod = "cfdi"
	LinkFilename       LinkMethod = "filename"
	LinkEmployeeNumber LinkMethod = "employee_number"
	LinkName           LinkMethod = "name"
)

// Document is one file discovered in a batch archive, carried through identification,
// linking and reconciliation.
type Document struct {
	Index int                `json:"index"`
	Name  string             `json:"name"`
	Path  string             `json:"-"`
	Type  constants.FileType `json:"type"`

	RFC            string     `json:"rfc,omitempty"`
	ReceiverName   string     `json:"receiver_name,omitempty"`
	EmployeeNumber string     `json:"employee_number,omitempty"`
	LinkedBy       LinkMethod `json:"linked_by,omitempty"`

	// Err is the file-level failure, if any; a document with Err set is never reconciled.
	Err error `json:"-"`
}

// Identified reports whether the document has an RFC and no file-level error.
func (d *Document) Identified() bool {
	return d.RFC != "" && d.Err == nil
}
