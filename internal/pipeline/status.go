package pipeline

import "github.com/joseph-ayodele/nomina-receipts/constants"

// DeriveStatus maps aggregate file counts to the batch's terminal status.
// An empty batch has no errors and is DONE.
func DeriveStatus(success, errors int) constants.BatchStatus {
	switch {
	case errors == 0:
		return constants.BatchStatusDone
	case success > 0:
		return constants.BatchStatusPartialSuccess
	default:
		return constants.BatchStatusFailed
	}
}
