package archive

import "fmt"

// ArchiveError reports an archive that cannot be opened, is not a ZIP, or cannot be unpacked safely.
// It aborts the batch.
type ArchiveError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("archive %s: %s", e.Path, e.Reason)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}
