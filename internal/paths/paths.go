// Package paths derives output locations for compiled style sheets and
// classifies source files by name.
package paths

import (
	"path/filepath"
	"strings"
)

const (
	// CSSExt is the extension of every compiled artifact.
	CSSExt = ".css"
	// MapExt is appended to the output path for position maps.
	MapExt = ".map"

	SassExt = ".sass"
	SCSSExt = ".scss"

	// PartialPrefix marks import-only files that are never compiled standalone.
	PartialPrefix = "_"
)

// CSSFileName replaces everything after the last "." of the file name with
// ".css". A name without a dot gets ".css" appended.
func CSSFileName(file string) string {
	dir, base := filepath.Split(file)
	if pos := strings.LastIndex(base, "."); pos >= 0 {
		base = base[:pos]
	}
	return dir + base + CSSExt
}

// MapFileName returns the position map location for an output file.
func MapFileName(outFile string) string {
	return outFile + MapExt
}

// ResolveOutputPath derives the output file for sourcePath. Without outDir the
// output sits next to the source. An absolute outDir receives the source tree
// relative to root; a relative outDir is resolved against root first.
func ResolveOutputPath(sourcePath, root, outDir string) string {
	outFile := CSSFileName(sourcePath)
	if outDir == "" {
		return outFile
	}

	rel, err := filepath.Rel(root, outFile)
	if err != nil {
		rel = filepath.Base(outFile)
	}
	if filepath.IsAbs(outDir) {
		return filepath.Join(outDir, rel)
	}
	return filepath.Join(root, outDir, rel)
}

// IsPartial reports whether the base name starts with the partial prefix.
func IsPartial(file string) bool {
	return strings.HasPrefix(filepath.Base(file), PartialPrefix)
}

// IsIndentedSyntax reports whether file uses the indentation-based syntax.
func IsIndentedSyntax(file string) bool {
	return strings.EqualFold(filepath.Ext(file), SassExt)
}

// IsSource reports whether file has one of the two source extensions.
func IsSource(file string) bool {
	switch strings.ToLower(filepath.Ext(file)) {
	case SassExt, SCSSExt:
		return true
	}
	return false
}

// SyntaxName is the short syntax label used in logs and metrics.
func SyntaxName(indented bool) string {
	if indented {
		return "sass"
	}
	return "scss"
}

// IsSubDirOf reports whether child lies strictly below parent.
func IsSubDirOf(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
