package utils

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMIME sniffs the file at path and returns its MIME type.
func DetectMIME(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// IsImage reports whether the file at path sniffs as an image/* type.
func IsImage(path string) (bool, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return false, err
	}
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true, nil
		}
	}
	return false, nil
}

// Extension returns the lower-cased extension of path without the dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// SiblingPath returns path with its extension replaced by format:
// photo.jpg + "webp" → photo.webp.
func SiblingPath(path, format string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + format
}

// ThumbSpec holds the attributes encoded into a thumbnail filename.
type ThumbSpec struct {
	Width   int
	Height  int
	Crop    bool
	Quality int // 0 = not encoded
	Format  string
}

// ThumbName builds name-{w}x{h}[-crop][-q{q}].{ext} for src.  The extension is
// Format when set, otherwise the source extension.  Missing dimensions are
// left out of the size attribute.
func ThumbName(src string, t ThumbSpec) string {
	base := filepath.Base(src)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	ext := t.Format
	if ext == "" {
		ext = Extension(src)
	}

	var b strings.Builder
	b.WriteString(name)
	switch {
	case t.Width > 0 && t.Height > 0:
		fmt.Fprintf(&b, "-%dx%d", t.Width, t.Height)
	case t.Width > 0:
		fmt.Fprintf(&b, "-%dx", t.Width)
	case t.Height > 0:
		fmt.Fprintf(&b, "-x%d", t.Height)
	}
	if t.Crop {
		b.WriteString("-crop")
	}
	if t.Quality > 0 {
		fmt.Fprintf(&b, "-q%d", t.Quality)
	}
	b.WriteString(".")
	b.WriteString(ext)
	return b.String()
}
