package sass

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sassc/internal/paths"
)

// Dart Sass always indents expanded output with two spaces per level.
const nativeIndent = 2

type lineShift struct {
	from  int // columns at or past from move by delta
	delta int
}

// indentUnit returns the per-level indentation for the options, or "" when the
// compiler's native indentation already matches.
func indentUnit(opts Options) string {
	width := nativeIndent
	if opts.IndentWidth != nil {
		width = *opts.IndentWidth
	}
	if opts.IndentType == IndentTab {
		return strings.Repeat("\t", width)
	}
	if width == nativeIndent {
		return ""
	}
	return strings.Repeat(" ", width)
}

// reindent rewrites leading indentation of every line using unit per level.
func reindent(css, unit string) (string, []lineShift) {
	lines := strings.Split(css, "\n")
	shifts := make([]lineShift, len(lines))
	for i, line := range lines {
		n := len(line) - len(strings.TrimLeft(line, " "))
		if n == 0 {
			continue
		}
		levels, rest := n/nativeIndent, n%nativeIndent
		indent := strings.Repeat(unit, levels) + strings.Repeat(" ", rest)
		lines[i] = indent + line[n:]
		shifts[i] = lineShift{from: n, delta: len(indent) - n}
	}
	return strings.Join(lines, "\n"), shifts
}

func linefeedSeq(linefeed string) string {
	switch linefeed {
	case LinefeedCR:
		return "\r"
	case LinefeedCRLF:
		return "\r\n"
	case LinefeedLFCR:
		return "\n\r"
	default:
		return "\n"
	}
}

// rewriteMap shifts generated columns per line and sets the map's file field.
func rewriteMap(raw []byte, shifts []lineShift, file string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode source map: %w", err)
	}

	if len(shifts) > 0 {
		var mappings string
		if err := json.Unmarshal(doc["mappings"], &mappings); err != nil {
			return nil, fmt.Errorf("decode mappings: %w", err)
		}
		lines, err := decodeMappings(mappings)
		if err != nil {
			return nil, err
		}
		for i, segs := range lines {
			if i >= len(shifts) || shifts[i].delta == 0 {
				continue
			}
			for _, seg := range segs {
				if seg[0] >= shifts[i].from {
					seg[0] += shifts[i].delta
				}
			}
		}
		enc, err := json.Marshal(encodeMappings(lines))
		if err != nil {
			return nil, err
		}
		doc["mappings"] = enc
	}

	if file != "" {
		enc, err := json.Marshal(file)
		if err != nil {
			return nil, err
		}
		doc["file"] = enc
	}
	return json.Marshal(doc)
}

// applyFormatting turns raw compiler output into the shape described by opts.
func applyFormatting(css string, sourceMap []byte, opts Options) (Output, error) {
	css = strings.TrimRight(css, "\n")

	var shifts []lineShift
	if unit := indentUnit(opts); unit != "" && opts.OutputStyle != StyleCompressed {
		css, shifts = reindent(css, unit)
	}

	if opts.SourceMap && len(sourceMap) > 0 {
		file := ""
		if opts.OutFile != "" {
			file = filepath.Base(opts.OutFile)
		}
		m, err := rewriteMap(sourceMap, shifts, file)
		if err != nil {
			return Output{}, err
		}
		sourceMap = m
	} else {
		sourceMap = nil
	}

	nl := linefeedSeq(opts.Linefeed)
	if sourceMap != nil && !opts.OmitSourceMapURL && opts.OutFile != "" {
		css += "\n\n/*# sourceMappingURL=" + paths.MapFileName(filepath.Base(opts.OutFile)) + " */"
	}
	css += "\n"
	if nl != "\n" {
		css = strings.ReplaceAll(css, "\n", nl)
	}
	return Output{CSS: []byte(css), Map: sourceMap}, nil
}
