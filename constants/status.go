package constants

// BatchStatus is the lifecycle status stored in batches.status.
type BatchStatus string

// Stable values (store these exact strings in DB).
const (
	BatchStatusCreated        BatchStatus = "CREATED"
	BatchStatusUploaded       BatchStatus = "UPLOADED" // archive attached, waiting for a worker
	BatchStatusProcessing     BatchStatus = "PROCESSING"
	BatchStatusDone           BatchStatus = "DONE"
	BatchStatusPartialSuccess BatchStatus = "PARTIAL_SUCCESS"
	BatchStatusFailed         BatchStatus = "FAILED"
)

var BatchStatuses = []string{
	string(BatchStatusCreated),
	string(BatchStatusUploaded),
	string(BatchStatusProcessing),
	string(BatchStatusDone),
	string(BatchStatusPartialSuccess),
	string(BatchStatusFailed),
}

// IsTerminal reports whether no worker will touch the batch again without a requeue.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusDone, BatchStatusPartialSuccess, BatchStatusFailed:
		return true
	}
	return false
}

// FileStatus is the outcome stored in batch_files.status.
type FileStatus string

const (
	FileStatusPending    FileStatus = "PENDING"
	FileStatusProcessing FileStatus = "PROCESSING"
	FileStatusSuccess    FileStatus = "SUCCESS"
	FileStatusError      FileStatus = "ERROR"
)

var FileStatuses = []string{
	string(FileStatusPending),
	string(FileStatusProcessing),
	string(FileStatusSuccess),
	string(FileStatusError),
}
