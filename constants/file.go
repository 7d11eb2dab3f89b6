package constants

import "strings"

// MIMEPDF is the only document type accepted for upload.
const MIMEPDF = "application/pdf"

// DefaultMaxUploadBytes mirrors MAX_FILE_SIZE (50MB).
const DefaultMaxUploadBytes int64 = 50 << 20

// AllowedExtensions holds the file extensions accepted for contract ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
