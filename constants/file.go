package constants

import "strings"

// FileFormat is the coarse dispatch class for an input document.
type FileFormat string

const (
	PDF         FileFormat = "PDF"
	IMAGE       FileFormat = "IMAGE"
	SPREADSHEET FileFormat = "SPREADSHEET"
	UNKNOWN     FileFormat = "UNKNOWN"
)

// AllowedExtensions is the accepted set of input file extensions, normalized
// (lowercase, no leading dot).
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"bmp":  {},
	"tiff": {},
	"xlsx": {},
	"xls":  {},
}

// NormalizeExt lowercases an extension and strips the leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExtension reports whether ext (with or without dot) is accepted.
func IsAllowedExtension(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MapExtToFormat maps a file extension to its dispatch format.
func MapExtToFormat(ext string) FileFormat {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg", "bmp", "tiff":
		return IMAGE
	case "xlsx", "xls":
		return SPREADSHEET
	default:
		return UNKNOWN
	}
}
