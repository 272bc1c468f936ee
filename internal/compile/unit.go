package compile

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/sassc/internal/config"
	"git.home.luguber.info/inful/sassc/internal/paths"
	"git.home.luguber.info/inful/sassc/internal/sass"
)

// Names used for buffers that have no file behind them.
const (
	InlineSourceName = "module.scss"
	InlineOutputName = "module.css"
	inlineIndent     = 4
)

// Unit performs single compiler invocations.
type Unit struct {
	compiler        sass.Compiler
	indentedDefault bool
}

// NewUnit wraps compiler. indentedDefault is the syntax assumed for inline
// text when the caller does not choose one.
func NewUnit(compiler sass.Compiler, indentedDefault bool) *Unit {
	return &Unit{compiler: compiler, indentedDefault: indentedDefault}
}

// FileOptions maps a project configuration onto compiler options for path.
func FileOptions(path string, project config.Project, outFile string) sass.Options {
	return sass.Options{
		File:             path,
		OutFile:          outFile,
		IndentType:       project.IndentType,
		IndentWidth:      project.IndentWidth,
		IndentedSyntax:   paths.IsIndentedSyntax(path),
		Linefeed:         project.Linefeed,
		OmitSourceMapURL: project.OmitSourceMapURL,
		OutputStyle:      project.OutputStyle,
		SourceMap:        project.SourceMaps,
	}
}

// TextOptions are the fixed options used for inline buffers.
func TextOptions(text string, indented bool) sass.Options {
	return sass.Options{
		Data:             text,
		File:             InlineSourceName,
		OutFile:          InlineOutputName,
		IndentWidth:      sass.IntPtr(inlineIndent),
		IndentedSyntax:   indented,
		OmitSourceMapURL: true,
		SourceMap:        true,
	}
}

// CompileFile compiles the file at path with the project's options. outFile
// only names the artifact; nothing is written.
func (u *Unit) CompileFile(ctx context.Context, path string, project config.Project, outFile string) Result {
	res := u.invoke(ctx, FileOptions(path, project, outFile))
	if res.OK() && project.RemoveComments {
		res = Succeeded(stripComments(res.css, project.SourceMaps), res.sourceMap)
	}
	return res
}

// CompileText compiles an in-memory buffer. A nil indented uses the unit's
// default syntax.
func (u *Unit) CompileText(ctx context.Context, text string, indented *bool) Result {
	variant := u.indentedDefault
	if indented != nil {
		variant = *indented
	}
	return u.invoke(ctx, TextOptions(text, variant))
}

func (u *Unit) invoke(ctx context.Context, opts sass.Options) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(fmt.Sprintf("compiler panic: %v", r))
		}
	}()

	out, err := u.compiler.Compile(ctx, opts)
	if err != nil {
		return Failed(err.Error())
	}
	return Succeeded(out.CSS, out.Map)
}
