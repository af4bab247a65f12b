// Package ingest discovers input documents and watches the input directory
// for new ones.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Document is one discovered input file.
type Document struct {
	Path    string
	Name    string
	Size    int64
	HashHex string
	Err     string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Hashed  uint32
	Failed  uint32
}

// ScanDirectory lists the PDFs directly inside root in name order.
// Subdirectories are not entered, so the output area under the input
// directory never feeds back into a run. A file that cannot be hashed is
// still returned, with Err set.
func ScanDirectory(root string, skipHidden bool) ([]Document, DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, errors.New("input directory is required")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, stats, fmt.Errorf("read dir %q: %w", root, err)
	}

	var docs []Document
	for _, e := range entries {
		stats.Scanned++
		if e.IsDir() {
			continue
		}
		if skipHidden && IsHidden(e.Name()) {
			continue
		}
		if !AllowedExt(filepath.Ext(e.Name())) {
			continue
		}
		stats.Matched++

		path := filepath.Join(root, e.Name())
		doc := Document{Path: path, Name: e.Name()}
		size, sum, err := hashFile(path)
		if err != nil {
			slog.Warn("ingest.hash.failed", "path", path, "error", err)
			doc.Err = err.Error()
			stats.Failed++
		} else {
			doc.Size, doc.HashHex = size, sum
			stats.Hashed++
		}
		docs = append(docs, doc)
	}
	return docs, stats, nil
}

// Paths returns the document paths in scan order.
func Paths(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Path
	}
	return out
}

func hashFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			slog.Warn("ingest.close.failed", "path", path, "error", err)
		}
	}(f)

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("hash %q: %w", path, err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
