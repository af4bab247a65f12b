package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/utils"
)

const indent = "    "

// Encode returns the validated, indented timeline document.
func Encode(tl *Timeline) ([]byte, error) {
	raw, err := tl.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}
	if err := Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", indent); err != nil {
		return nil, fmt.Errorf("indent timeline: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteFile encodes tl and replaces path atomically.
func WriteFile(path string, tl *Timeline) error {
	data, err := Encode(tl)
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write timeline %s: %w", path, err)
	}
	return nil
}
