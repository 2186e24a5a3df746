// Package storage writes uploaded and generated images to disk under
// request-unique names and maps them to public URLs.
package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Store interface {
	Save(name string, data []byte) (string, error)
}

// Local stores files in Dir and serves them under URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
}

func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image dir %s: %w", dir, err)
	}
	return &Local{Dir: dir, URLPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

// Save writes data under name and returns its URL. The file is written to
// a temporary name first so readers never observe a partial image.
func (l *Local) Save(name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	tmp, err := os.CreateTemp(l.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.Dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store %s: %w", name, err)
	}
	return path.Join(l.URLPrefix, name), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MaxUploadNameLen caps the cleaned upload name inside OriginalName so the
// stored name and its URL stay within 255 bytes.
const MaxUploadNameLen = 150

const maxExtLen = 16

// OriginalName is the stored name for an upload: orig_<uuid>_<clean name>.
// Long names are cut, keeping a short extension.
func OriginalName(upload string) string {
	base := filepath.Base(strings.ReplaceAll(upload, "\\", "/"))
	clean := strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if clean == "" {
		clean = "upload"
	}
	if len(clean) > MaxUploadNameLen {
		ext := filepath.Ext(clean)
		if len(ext) > maxExtLen {
			ext = ""
		}
		clean = clean[:MaxUploadNameLen-len(ext)] + ext
	}
	return fmt.Sprintf("orig_%s_%s", uuid.NewString(), clean)
}

// TrimName shortens name to at most max bytes without splitting a UTF-8
// sequence.
func TrimName(name string, max int) string {
	if len(name) <= max {
		return name
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// HeatmapName is the stored name for a composite: heatmap_<uuid>.png.
func HeatmapName() string {
	return fmt.Sprintf("heatmap_%s.png", uuid.NewString())
}
