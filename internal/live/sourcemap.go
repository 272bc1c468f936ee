package live

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sourcemap/sourcemap"
)

// Position is a location in generated CSS. Line is 1-based, Column 0-based,
// matching source map conventions.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// mapping pairs an original position with the first generated position
// mapped to it.
type mapping struct {
	origLine, origCol int
	gen               Position
}

// positionIndex answers original -> generated queries for one source of a map.
type positionIndex struct {
	source   string
	mappings []mapping // sorted by original position, one per position
}

type sourceMapHeader struct {
	Version int      `json:"version"`
	Sources []string `json:"sources"`
}

// newPositionIndex decodes rawMap and indexes every segment belonging to the
// map's first source. css is the generated text the map describes.
func newPositionIndex(css, rawMap []byte) (*positionIndex, error) {
	var hdr sourceMapHeader
	if err := json.Unmarshal(rawMap, &hdr); err != nil {
		return nil, fmt.Errorf("decode source map: %w", err)
	}
	if len(hdr.Sources) == 0 {
		return nil, fmt.Errorf("source map has no sources")
	}
	consumer, err := sourcemap.Parse("", rawMap)
	if err != nil {
		return nil, fmt.Errorf("parse source map: %w", err)
	}

	idx := &positionIndex{source: hdr.Sources[0]}
	// Lookups round down to the closest segment, so scanning generated
	// positions in order meets every segment first at its own column.
	seen := map[[2]int]bool{}

	sc := bufio.NewScanner(bytes.NewReader(css))
	sc.Buffer(make([]byte, 0, 64*1024), len(css)+1)
	for genLine := 1; sc.Scan(); genLine++ {
		width := len(sc.Text())
		for col := 0; col <= width; col++ {
			src, _, line, column, ok := consumer.Source(genLine, col)
			if !ok || !sameSource(src, idx.source) {
				continue
			}
			key := [2]int{line, column}
			if seen[key] {
				continue
			}
			seen[key] = true
			idx.mappings = append(idx.mappings, mapping{origLine: line, origCol: column, gen: Position{Line: genLine, Column: col}})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(idx.mappings, func(i, j int) bool {
		a, b := idx.mappings[i], idx.mappings[j]
		if a.origLine != b.origLine {
			return a.origLine < b.origLine
		}
		return a.origCol < b.origCol
	})
	return idx, nil
}

// sameSource compares a resolved source from the consumer with the raw name
// in the map's sources list.
func sameSource(resolved, raw string) bool {
	return resolved == raw || strings.HasSuffix(resolved, "/"+strings.TrimPrefix(raw, "./"))
}

// generatedFor returns the generated position of the greatest mapping at or
// before the original (line, column). line is 1-based, column 0-based.
func (p *positionIndex) generatedFor(line, column int) (Position, bool) {
	i := sort.Search(len(p.mappings), func(i int) bool {
		m := p.mappings[i]
		return m.origLine > line || (m.origLine == line && m.origCol > column)
	})
	if i == 0 {
		return Position{}, false
	}
	return p.mappings[i-1].gen, true
}
