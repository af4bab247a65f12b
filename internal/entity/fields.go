package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one labeled text value.
type Field struct {
	Label string
	Text  string
}

// Fields is a label -> text mapping that keeps insertion order. It encodes as
// a JSON object whose keys appear in that order.
type Fields []Field

// Append adds text under label. A label that already exists keeps its
// position and the new text is joined to the old with a space.
func (f Fields) Append(label, text string) Fields {
	return f.AppendSep(label, text, " ")
}

// AppendSep is Append with an explicit separator.
func (f Fields) AppendSep(label, text, sep string) Fields {
	for i := range f {
		if f[i].Label == label {
			if f[i].Text == "" {
				f[i].Text = text
			} else if text != "" {
				f[i].Text += sep + text
			}
			return f
		}
	}
	return append(f, Field{Label: label, Text: text})
}

// Labels returns the labels in order.
func (f Fields) Labels() []string {
	out := make([]string, 0, len(f))
	for _, x := range f {
		out = append(out, x.Label)
	}
	return out
}

func (f Fields) Get(label string) (string, bool) {
	for _, x := range f {
		if x.Label == label {
			return x.Text, true
		}
	}
	return "", false
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, x := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, x.Label); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(&buf, x.Text); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}
	out := Fields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fields: expected key, got %v", tok)
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("fields: value of %q: %w", label, err)
		}
		out = out.Append(label, text)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}

// writeString encodes s as a JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// marshalNoEscape is json.Marshal without HTML escaping.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
