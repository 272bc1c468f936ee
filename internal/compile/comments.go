package compile

import (
	"bytes"
	"strings"
)

// stripComments removes /* */ comments from generated CSS. Loud comments
// (/*! */) and source map URL comments survive. With keepLines set, each
// removed comment leaves its newlines behind so source map line numbers stay
// valid; otherwise lines emptied by the removal are dropped.
func stripComments(css []byte, keepLines bool) []byte {
	var (
		out     bytes.Buffer
		touched = map[int]bool{}
		line    int
		quote   byte
	)
	for i := 0; i < len(css); i++ {
		c := css[i]
		switch {
		case quote != 0:
			out.WriteByte(c)
			if c == '\\' && i+1 < len(css) {
				i++
				out.WriteByte(css[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			out.WriteByte(c)
		case c == '/' && i+1 < len(css) && css[i+1] == '*':
			end := bytes.Index(css[i+2:], []byte("*/"))
			if end < 0 {
				end = len(css)
			} else {
				end = i + 2 + end + 2
			}
			comment := css[i:end]
			if bytes.HasPrefix(comment, []byte("/*!")) || bytes.HasPrefix(comment, []byte("/*# sourceMappingURL=")) {
				out.Write(comment)
				line += bytes.Count(comment, []byte("\n"))
			} else {
				touched[line] = true
				for _, b := range comment {
					if b == '\n' {
						out.WriteByte('\n')
						line++
						touched[line] = true
					}
				}
			}
			i = end - 1
		default:
			if c == '\n' {
				line++
			}
			out.WriteByte(c)
		}
	}

	if keepLines || len(touched) == 0 {
		return out.Bytes()
	}

	lines := strings.SplitAfter(out.String(), "\n")
	var kept strings.Builder
	for n, l := range lines {
		if touched[n] && strings.TrimSpace(l) == "" {
			continue
		}
		kept.WriteString(l)
	}
	return []byte(kept.String())
}
