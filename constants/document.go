package constants

import "strings"

// DocumentClass is the record type tag written into the timeline. The string
// values are part of the timeline file format.
type DocumentClass string

const (
	LabResult    DocumentClass = "Lab Results"
	ClinicalNote DocumentClass = "Medical Records"
	Unknown      DocumentClass = "Unknown"
)

var allClasses = []DocumentClass{LabResult, ClinicalNote, Unknown}

// Sentinels used when a pattern does not match.
const (
	UnknownValue      = "UNKNOWN"
	NoKnownAllergies  = "NKA"
	GeneralSubsection = "General"
)

// Error sentinels carried in structured_data.
const (
	UnknownTypeError   = "Unknown file type, skipped parsing."
	ParsingErrorPrefix = "Parsing failed: "
)

// IsParsed reports whether documents of this class go through a parser.
func (c DocumentClass) IsParsed() bool {
	return c == LabResult || c == ClinicalNote
}

// ParseDocumentClass maps a stored file_type back to a class. Anything
// unrecognized becomes Unknown.
func ParseDocumentClass(s string) DocumentClass {
	s = strings.TrimSpace(s)
	for _, c := range allClasses {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return Unknown
}
