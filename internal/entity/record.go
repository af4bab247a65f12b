package entity

import "encoding/json"

// NoteRecord is one enriched clinical note.
type NoteRecord struct {
	// Date is the authored date; it is the bucket key and not part of the
	// record body.
	Date        string   `json:"-"`
	Doctor      string   `json:"doctor"`
	SectionType string   `json:"section_type"`
	Text        Fields   `json:"text"`
	Subsections []string `json:"subsections"`
	Allergies   *string  `json:"allergies"`
}

// LabRecord holds every test reported for one date of one lab document.
type LabRecord struct {
	Date  string `json:"-"`
	Tests Fields `json:"-"`
}

// MarshalJSON encodes a lab record as its bare test-name -> text mapping.
func (r LabRecord) MarshalJSON() ([]byte, error) {
	return r.Tests.MarshalJSON()
}

func (r *LabRecord) UnmarshalJSON(data []byte) error {
	return r.Tests.UnmarshalJSON(data)
}

// Clone returns a deep copy.
func (r NoteRecord) Clone() NoteRecord {
	out := r
	out.Text = append(Fields(nil), r.Text...)
	out.Subsections = append([]string(nil), r.Subsections...)
	if r.Allergies != nil {
		a := *r.Allergies
		out.Allergies = &a
	}
	return out
}

func (r LabRecord) Clone() LabRecord {
	return LabRecord{Date: r.Date, Tests: append(Fields(nil), r.Tests...)}
}

// noteWire fixes the key order of a note record when it is spliced into an
// event.
type noteWire struct {
	Doctor      string   `json:"doctor"`
	SectionType string   `json:"section_type"`
	Text        Fields   `json:"text"`
	Subsections []string `json:"subsections"`
	Allergies   *string  `json:"allergies"`
}

func (r NoteRecord) MarshalJSON() ([]byte, error) {
	w := noteWire{
		Doctor:      r.Doctor,
		SectionType: r.SectionType,
		Text:        r.Text,
		Subsections: r.Subsections,
		Allergies:   r.Allergies,
	}
	if w.Text == nil {
		w.Text = Fields{}
	}
	if w.Subsections == nil {
		w.Subsections = []string{}
	}
	return marshalNoEscape(w)
}

func (r *NoteRecord) UnmarshalJSON(data []byte) error {
	var w noteWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Doctor = w.Doctor
	r.SectionType = w.SectionType
	r.Text = w.Text
	r.Subsections = w.Subsections
	r.Allergies = w.Allergies
	return nil
}
