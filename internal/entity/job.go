package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/clinical-timeline/constants"
)

// Run is one batch execution recorded in the ledger.
type Run struct {
	ID         uuid.UUID           `json:"id"`
	InputDir   string              `json:"input_dir"`
	OutputDir  string              `json:"output_dir"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Status     constants.JobStatus `json:"status"`
	Documents  int                 `json:"documents"`
	Failed     int                 `json:"failed"`
	Events     int                 `json:"events"`
}

// DocumentJob records what the pipeline did with one input document.
type DocumentJob struct {
	ID           string                  `json:"id"`
	RunID        uuid.UUID               `json:"run_id"`
	Stage        string                  `json:"stage"`
	SourceFile   string                  `json:"source_file"`
	ReadablePath string                  `json:"readable_path"`
	ContentHash  string                  `json:"content_hash,omitempty"`
	FileType     constants.DocumentClass `json:"file_type"`
	Recognized   bool                    `json:"recognized"`
	Status       constants.JobStatus     `json:"status"`
	Dates        int                     `json:"dates"`
	Records      int                     `json:"records"`
	ErrorMessage *string                 `json:"error_message,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   *time.Time              `json:"finished_at,omitempty"`
}
