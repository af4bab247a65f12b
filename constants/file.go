package constants

import "strings"

// AllowedExtensions holds the file extensions picked up from the input directory.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

const (
	ProcessedDirName  = "processed_pdfs"
	StructuredDirName = "structured"
	TimelineFileName  = "combined_patient_timeline.json"
	TimelineXLSXName  = "combined_patient_timeline.xlsx"
	RecognizedPrefix  = "OCR_"
	StructuredFileExt = ".json"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// OriginalName strips the recognition tag from a readable file name.
func OriginalName(readable string) string {
	return strings.TrimPrefix(readable, RecognizedPrefix)
}
