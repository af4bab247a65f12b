package timeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/clinical-timeline/constants"
	"github.com/joseph-ayodele/clinical-timeline/internal/common"
	"github.com/joseph-ayodele/clinical-timeline/internal/entity"
	"github.com/joseph-ayodele/clinical-timeline/internal/utils"
)

// ResultPath is where the result of readable document name is stored.
func ResultPath(dir, readable string) string {
	return filepath.Join(dir, readable+constants.StructuredFileExt)
}

// SaveResult writes one per-document result as indented JSON.
func SaveResult(dir, readable string, r entity.DocumentResult) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("encode result %s: %w", readable, err)
	}
	path := ResultPath(dir, readable)
	if err := utils.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write result %s: %w", path, err)
	}
	return path, nil
}

// LoadResults reads every stored result in dir in file-name order. A file
// that cannot be decoded becomes a parsing-failed result so it is skipped at
// merge time instead of failing the batch.
func LoadResults(dir string, logger *slog.Logger) ([]entity.DocumentResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("results dir %s: %w", dir, common.ErrNotFound)
		}
		return nil, fmt.Errorf("read results dir %s: %w", dir, err)
	}

	out := make([]entity.DocumentResult, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, constants.StructuredFileExt) {
			continue
		}
		readable := strings.TrimSuffix(name, constants.StructuredFileExt)
		r, err := loadResult(filepath.Join(dir, name))
		if err != nil {
			logger.Error("timeline.result.decode_failed", "file", name, "error", err)
			r = entity.DocumentResult{
				SourceFile: constants.OriginalName(readable),
				FileType:   constants.Unknown,
				Data:       entity.Failure(constants.ParsingErrorPrefix + err.Error()),
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func loadResult(path string) (entity.DocumentResult, error) {
	var r entity.DocumentResult
	b, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, err
	}
	return r, nil
}

// ClearResults removes stored results so a new parse run starts clean.
func ClearResults(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), constants.StructuredFileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
