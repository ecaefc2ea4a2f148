package storage

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
)

// IsDatabase reports whether dest names a sqlite file.
func IsDatabase(dest string) bool {
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Write stores rec at dest: a sqlite file for .db/.sqlite destinations,
// otherwise a run directory. It returns the run id.
func Write(dest string, rec *Recording) (string, error) {
	if IsDatabase(dest) {
		st, err := OpenSQLite(dest)
		if err != nil {
			return "", err
		}
		id, err := st.Save(rec)
		if cerr := st.Close(); err == nil {
			err = cerr
		}
		return id, err
	}
	if err := WriteDir(dest, rec); err != nil {
		return "", err
	}
	return rec.Meta.ID, nil
}

// ExportJSON writes the whole recording, frames included, as indented JSON.
func ExportJSON(w io.Writer, rec *Recording) error {
	rec.finalize()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Meta   RunMetadata `json:"meta"`
		Frames any         `json:"frames"`
	}{rec.Meta, rec.Frames})
}
