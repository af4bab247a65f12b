package constants

// JobStatus is the canonical status for rows in the documents ledger.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusRunning    JobStatus = "RUNNING"
	JobStatusConverted  JobStatus = "CONVERTED"  // readable copy written
	JobStatusRecognized JobStatus = "RECOGNIZED" // readable copy produced by OCR
	JobStatusParsed     JobStatus = "PARSED"     // structured data produced
	JobStatusSkipped    JobStatus = "SKIPPED"    // unknown class
	JobStatusFailed     JobStatus = "FAILED"     // terminal failure for this document
	JobStatusDone       JobStatus = "DONE"       // run finished
)
