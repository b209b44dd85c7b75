package constants

import "strings"

// FileType is the detected document type stored in batch_files.file_type.
type FileType string

const (
	FileTypePDF     FileType = "PDF"
	FileTypeXML     FileType = "XML"
	FileTypeUnknown FileType = "UNKNOWN"
)

// FileTypes holds the allowed values for batch_files.file_type.
var FileTypes = []string{string(FileTypePDF), string(FileTypeXML), string(FileTypeUnknown)}

// ManifestName is the optional manifest at the archive root.
const ManifestName = "manifest.json"

// Conventional archive subfolders.
const (
	PDFDir = "pdf"
	XMLDir = "xml"
)

// ReceiptsDir is the folder under the storage root that holds canonical receipt files.
const ReceiptsDir = "receipts"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFileType returns the document type for an extension, or FileTypeUnknown.
func MapExtToFileType(ext string) FileType {
	switch NormalizeExt(ext) {
	case "pdf":
		return FileTypePDF
	case "xml":
		return FileTypeXML
	}
	return FileTypeUnknown
}
