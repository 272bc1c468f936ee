package compile

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
)

func TestCompileSingleOutput(t *testing.T) {
	u := NewUnit(fakeCompiler(), false)
	var buf bytes.Buffer

	res, err := u.CompileSingle(t.Context(), SingleRequest{Text: "a{}"}, &buf)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, "/* generated */\na{}", buf.String())

	buf.Reset()
	res, err = u.CompileSingle(t.Context(), SingleRequest{Text: "a{ !!", Mode: ModeOutput}, &buf)
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Equal(t, res.Failure().Message, buf.String())
}

func TestCompileSingleAcross(t *testing.T) {
	dir := t.TempDir()
	name := writeSource(t, filepath.Join(dir, "theme.scss"), "t{}")
	u := NewUnit(fakeCompiler(), false)

	_, err := u.CompileSingle(t.Context(), SingleRequest{Name: name, Text: "t{}", Mode: ModeAcross}, nil)
	require.NoError(t, err)
	require.Equal(t, "/* generated */\nt{}", readFile(t, filepath.Join(dir, "theme.css")))

	_, err = u.CompileSingle(t.Context(), SingleRequest{Name: name, Text: "t{ !!", Mode: ModeAcross}, nil)
	require.NoError(t, err)
	require.Equal(t, `expected "{".`, readFile(t, filepath.Join(dir, "theme.css")))
}

func TestCompileSingleToFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "picked.css")
	u := NewUnit(fakeCompiler(), false)

	_, err := u.CompileSingle(t.Context(), SingleRequest{Text: "p{}", Mode: ModeFile, Dest: dest}, nil)
	require.NoError(t, err)
	require.Equal(t, "/* generated */\np{}", readFile(t, dest))
}

func TestCompileSingleValidation(t *testing.T) {
	u := NewUnit(fakeCompiler(), false)

	_, err := u.CompileSingle(t.Context(), SingleRequest{Text: "a{}", Mode: ModeAcross}, nil)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = u.CompileSingle(t.Context(), SingleRequest{Text: "a{}", Mode: ModeFile}, nil)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = u.CompileSingle(t.Context(), SingleRequest{Text: "a{}", Mode: "webview"}, nil)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestCompileSingleSyntaxFromName(t *testing.T) {
	var indented []bool
	u := NewUnit(recordingCompiler(&indented), false)

	_, err := u.CompileSingle(t.Context(), SingleRequest{Name: "/x/a.sass", Text: "a"}, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = u.CompileSingle(t.Context(), SingleRequest{Name: "/x/a.scss", Text: "a"}, &bytes.Buffer{})
	require.NoError(t, err)
	yes := true
	_, err = u.CompileSingle(t.Context(), SingleRequest{Name: "/x/a.scss", Text: "a", Indented: &yes}, &bytes.Buffer{})
	require.NoError(t, err)

	require.Equal(t, []bool{true, false, true}, indented)
}
