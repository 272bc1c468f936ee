// Package sass defines the boundary to the style-sheet compiler.
//
// The rest of the module only sees Compiler. DartSass is the production
// implementation; tests inject a CompilerFunc returning scripted results.
package sass

import "context"

// Indentation and line ending values accepted by Options.
const (
	IndentSpace = "space"
	IndentTab   = "tab"

	LinefeedCR   = "cr"
	LinefeedCRLF = "crlf"
	LinefeedLF   = "lf"
	LinefeedLFCR = "lfcr"

	StyleExpanded   = "expanded"
	StyleCompressed = "compressed"
)

// Options is the complete option set handed to a compiler. Either Data or
// File is the input; when both are set Data wins and File only names it.
type Options struct {
	Data             string
	File             string
	OutFile          string
	IndentWidth      *int
	IndentType       string
	IndentedSyntax   bool
	Linefeed         string
	OmitSourceMapURL bool
	OutputStyle      string
	SourceMap        bool
	IncludePaths     []string
}

// Output is what a successful compile produces. Map is nil unless
// Options.SourceMap was set.
type Output struct {
	CSS []byte
	Map []byte
}

// Compiler turns style source into CSS. Errors describe rejected input.
type Compiler interface {
	Compile(ctx context.Context, opts Options) (Output, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, opts Options) (Output, error)

func (f CompilerFunc) Compile(ctx context.Context, opts Options) (Output, error) {
	return f(ctx, opts)
}

// IntPtr is a small helper for optional integer options.
func IntPtr(v int) *int { return &v }
