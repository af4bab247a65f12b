package entity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/clinical-timeline/constants"
)

// DateRecords is one date bucket of a document. Only the slice matching the
// document class is populated.
type DateRecords struct {
	Date  string
	Notes []NoteRecord
	Labs  []LabRecord
}

func (d DateRecords) Len() int { return len(d.Notes) + len(d.Labs) }

// StructuredData is the parse output of one document: either an error
// sentinel or records grouped by date in first-seen order.
type StructuredData struct {
	Error string
	Dates []DateRecords
	// Malformed lists date keys whose value was not an array when decoded.
	Malformed []string
}

// Failure returns the error sentinel for msg.
func Failure(msg string) StructuredData {
	return StructuredData{Error: msg}
}

func (s StructuredData) Failed() bool { return s.Error != "" }

// Empty reports whether s carries no date keys at all.
func (s StructuredData) Empty() bool {
	return s.Error == "" && len(s.Dates) == 0 && len(s.Malformed) == 0
}

// Records counts records across all dates.
func (s StructuredData) Records() int {
	n := 0
	for _, d := range s.Dates {
		n += d.Len()
	}
	return n
}

func (s *StructuredData) bucket(date string) *DateRecords {
	for i := range s.Dates {
		if s.Dates[i].Date == date {
			return &s.Dates[i]
		}
	}
	s.Dates = append(s.Dates, DateRecords{Date: date})
	return &s.Dates[len(s.Dates)-1]
}

func (s *StructuredData) AddNote(date string, r NoteRecord) {
	r.Date = date
	b := s.bucket(date)
	b.Notes = append(b.Notes, r)
}

func (s *StructuredData) AddLab(date string, r LabRecord) {
	r.Date = date
	b := s.bucket(date)
	b.Labs = append(b.Labs, r)
}

// Lab returns the lab record of date, creating it on first use. The pointer
// is valid until the next Add call.
func (s *StructuredData) Lab(date string) *LabRecord {
	b := s.bucket(date)
	if len(b.Labs) == 0 {
		b.Labs = append(b.Labs, LabRecord{Date: date})
	}
	return &b.Labs[0]
}

// MarshalJSON writes {"error": msg} or an object of date -> records.
func (s StructuredData) MarshalJSON() ([]byte, error) {
	if s.Failed() {
		return marshalNoEscape(map[string]string{"error": s.Error})
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range s.Dates {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, d.Date); err != nil {
			return nil, err
		}
		buf.WriteString(":[")
		n := 0
		for _, r := range d.Notes {
			if err := writeElem(&buf, &n, r); err != nil {
				return nil, err
			}
		}
		for _, r := range d.Labs {
			if err := writeElem(&buf, &n, r); err != nil {
				return nil, err
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeElem(buf *bytes.Buffer, n *int, v any) error {
	b, err := marshalNoEscape(v)
	if err != nil {
		return err
	}
	if *n > 0 {
		buf.WriteByte(',')
	}
	buf.Write(b)
	*n++
	return nil
}

// DecodeStructured decodes structured data written for class. Any "error"
// key marks the whole object as failed. A date whose value is not an array
// is recorded in Malformed and otherwise ignored.
func DecodeStructured(data []byte, class constants.DocumentClass) (StructuredData, error) {
	var out StructuredData
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return out, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return out, fmt.Errorf("structured data: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return out, err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return out, fmt.Errorf("structured data %q: %w", key, err)
		}
		if key == "error" {
			var msg string
			if json.Unmarshal(raw, &msg) != nil || msg == "" {
				msg = string(raw)
			}
			return Failure(msg), nil
		}
		if len(raw) == 0 || raw[0] != '[' {
			out.Malformed = append(out.Malformed, key)
			continue
		}
		switch class {
		case constants.ClinicalNote:
			var notes []NoteRecord
			if err := json.Unmarshal(raw, &notes); err != nil {
				return out, fmt.Errorf("structured data %q: %w", key, err)
			}
			for _, n := range notes {
				out.AddNote(key, n)
			}
		case constants.LabResult:
			var labs []LabRecord
			if err := json.Unmarshal(raw, &labs); err != nil {
				return out, fmt.Errorf("structured data %q: %w", key, err)
			}
			for _, l := range labs {
				out.AddLab(key, l)
			}
		default:
			out.Malformed = append(out.Malformed, key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return out, err
	}
	return out, nil
}

// DocumentResult is the per-document output of the parse stage.
type DocumentResult struct {
	SourceFile string                  `json:"original_filename"`
	FileType   constants.DocumentClass `json:"file_type"`
	Data       StructuredData          `json:"structured_data"`
}

func (r DocumentResult) MarshalJSON() ([]byte, error) {
	type wire DocumentResult
	return marshalNoEscape(wire(r))
}

func (r *DocumentResult) UnmarshalJSON(data []byte) error {
	var w struct {
		SourceFile string                  `json:"original_filename"`
		FileType   constants.DocumentClass `json:"file_type"`
		Data       json.RawMessage         `json:"structured_data"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	sd, err := DecodeStructured(w.Data, w.FileType)
	if err != nil {
		return fmt.Errorf("%s: %w", w.SourceFile, err)
	}
	r.SourceFile = w.SourceFile
	r.FileType = w.FileType
	r.Data = sd
	return nil
}
