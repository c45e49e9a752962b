// Package docdir maps documents to per-document data directories under
// ~/.config/folio/documents/<slug>/.
package docdir

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/marcus/folio/internal/config"
)

const (
	documentsDir = "documents"
	metaFile     = "meta.json"
)

// documentMeta identifies the document a data directory belongs to.
type documentMeta struct {
	Path       string `json:"path"`
	DocumentID string `json:"documentId,omitempty"`
}

// Resolve returns the data directory for the document at docPath, creating
// it if needed. docID is the document's content fingerprint; a directory
// recorded for the same content under another path is adopted, so moving a
// file keeps its history.
func Resolve(docPath, docID string) (string, error) {
	return resolveWithBase(config.Dir(), docPath, docID)
}

// resolveWithBase is the testable core of Resolve.
func resolveWithBase(base, docPath, docID string) (string, error) {
	root := filepath.Join(base, documentsDir)
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("docdir: %w", err)
	}

	metas := scan(root)
	if dir, ok := match(metas, docPath, docID); ok {
		m := metas[dir]
		if m.Path != docPath || (docID != "" && m.DocumentID != docID) {
			if m.Path != docPath {
				slog.Debug("docdir: adopting moved document", "from", m.Path, "to", docPath)
			}
			if err := writeMeta(dir, documentMeta{Path: docPath, DocumentID: docID}); err != nil {
				return "", err
			}
		}
		return dir, nil
	}

	slug := sanitizeSlug(strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath)))
	dir := filepath.Join(root, slug)
	for i := 2; ; i++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		dir = filepath.Join(root, slug+"-"+strconv.Itoa(i))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("docdir: %w", err)
	}
	if err := writeMeta(dir, documentMeta{Path: docPath, DocumentID: docID}); err != nil {
		return "", err
	}
	return dir, nil
}

// Lookup returns the existing data directory for the document without
// creating anything. It matches the same way Resolve does.
func Lookup(docPath, docID string) (string, bool) {
	return lookupWithBase(config.Dir(), docPath, docID)
}

func lookupWithBase(base, docPath, docID string) (string, bool) {
	return match(scan(filepath.Join(base, documentsDir)), docPath, docID)
}

// match finds the directory recorded for docPath, or failing that one
// recorded for docID whose document no longer exists at its old path.
func match(metas map[string]documentMeta, docPath, docID string) (string, bool) {
	for dir, m := range metas {
		if m.Path == docPath {
			return dir, true
		}
	}
	if docID == "" {
		return "", false
	}
	for dir, m := range metas {
		if m.DocumentID != docID {
			continue
		}
		if _, err := os.Stat(m.Path); os.IsNotExist(err) {
			return dir, true
		}
	}
	return "", false
}

// scan reads meta.json from every directory under root. Unreadable entries
// are skipped.
func scan(root string) map[string]documentMeta {
	out := make(map[string]documentMeta)
	entries, err := os.ReadDir(root)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		data, err := os.ReadFile(filepath.Join(dir, metaFile))
		if err != nil {
			continue
		}
		var m documentMeta
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		out[dir] = m
	}
	return out
}

func writeMeta(dir string, m documentMeta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0644); err != nil {
		return fmt.Errorf("docdir: write meta: %w", err)
	}
	return nil
}

// Prune removes data directories whose document no longer exists. It returns
// the removed directories.
func Prune() ([]string, error) {
	return pruneWithBase(config.Dir())
}

func pruneWithBase(base string) ([]string, error) {
	root := filepath.Join(base, documentsDir)
	var removed []string
	for dir, m := range scan(root) {
		if m.Path == "" {
			continue
		}
		if _, err := os.Stat(m.Path); !os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("docdir: prune %s: %w", dir, err)
		}
		removed = append(removed, dir)
	}
	return removed, nil
}

// sanitizeSlug strips path separators and control characters. Empty and
// dot-only results become "_".
func sanitizeSlug(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		return "_"
	}
	return out
}
