package entity

import (
	"bytes"
	"fmt"

	"github.com/joseph-ayodele/clinical-timeline/constants"
)

// Event is one timeline entry: a record tagged with its type and source
// document. Exactly one of Note and Lab is set.
type Event struct {
	Date       string
	RecordType constants.DocumentClass
	SourceFile string
	Note       *NoteRecord
	Lab        *LabRecord
}

// MarshalJSON writes record_type and source_file first. Lab tests are wrapped
// in a one-element "tests" array; note fields are spliced into the object.
func (e Event) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"record_type":`)
	if err := writeString(&buf, string(e.RecordType)); err != nil {
		return nil, err
	}
	buf.WriteString(`,"source_file":`)
	if err := writeString(&buf, e.SourceFile); err != nil {
		return nil, err
	}

	switch {
	case e.Lab != nil:
		b, err := e.Lab.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"tests":[`)
		buf.Write(b)
		buf.WriteString(`]}`)
	case e.Note != nil:
		b, err := e.Note.MarshalJSON()
		if err != nil {
			return nil, err
		}
		if len(b) < 2 || b[0] != '{' {
			return nil, fmt.Errorf("event: unexpected note encoding")
		}
		if len(b) > 2 {
			buf.WriteByte(',')
		}
		buf.Write(b[1:])
	default:
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}
