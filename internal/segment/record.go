// Package segment turns the flat text of a document into raw dated records.
// Clinical notes are cut by a line-oriented state machine; lab reports are cut
// at every date-time stamp and adjacent fragments of one test are coalesced.
package segment

// RawRecord is one detected segment before enrichment.
type RawRecord struct {
	// Date is the anchor date, or constants.UnknownValue. Clinical notes get
	// theirs from the metadata pass, not from the segmenter.
	Date string
	// Header is the raw first line: the note header or the lab test header.
	Header string
	// Name is the cleaned lab test name. Empty for notes.
	Name string
	Body string
	// Parts holds the bodies coalesced into this record, in order.
	Parts []string
}
