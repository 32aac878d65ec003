// Package archive decodes platform export archives before extraction.
//
// Exports arrive either as a bare JSON file or as a zip containing JSON
// entries, depending on platform and download settings. This package hides
// that difference from extractors: they ask for decoded JSON documents or
// named entries and never touch the container format.
package archive

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// ErrEntryNotFound reports that a zip archive has no entry with the
// requested name.
var ErrEntryNotFound = errors.New("archive: entry not found")

// ErrNoJSON reports that neither the file itself nor any zip entry inside it
// decoded as JSON.
var ErrNoJSON = errors.New("archive: no decodable JSON document")

// Entry describes one file inside a zip archive.
type Entry struct {
	Name             string
	CompressedSize   uint64
	UncompressedSize uint64
}

// ListEntries returns the entries of a zip archive in archive order.
func ListEntries(zipPath string) ([]Entry, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, Entry{
			Name:             f.Name,
			CompressedSize:   f.CompressedSize64,
			UncompressedSize: f.UncompressedSize64,
		})
	}
	return entries, nil
}

// EntryNames returns the base names of all zip entries. Used by validators
// that recognize an export by its known file names.
func EntryNames(zipPath string) ([]string, error) {
	entries, err := ListEntries(zipPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, path.Base(e.Name))
	}
	return names, nil
}

// JSONFromZip decodes the zip entry whose base name matches name. Exports
// nest their files under varying directory prefixes, so matching is on the
// base name only.
func JSONFromZip(zipPath, name string) (any, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if path.Base(f.Name) != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		doc, err := decodeJSON(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding entry %s: %w", f.Name, err)
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, name, zipPath)
}

// JSONDocuments decodes an export that is either a single JSON file or a zip
// of JSON entries. For a bare JSON file it returns that one document; for a
// zip it returns every entry with a .json suffix that decodes cleanly, in
// archive order. Entries that fail to decode are skipped, not fatal.
func JSONDocuments(filePath string) ([]any, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err == nil {
		return []any{doc}, nil
	}

	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is neither JSON nor zip", ErrNoJSON, filePath)
	}
	defer zr.Close()

	var docs []any
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".json") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		doc, err := decodeJSON(rc)
		rc.Close()
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoJSON, filePath)
	}
	return docs, nil
}

func decodeJSON(r io.Reader) (any, error) {
	var doc any
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
