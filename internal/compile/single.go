package compile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/paths"
)

// Mode selects where a single-file compile is delivered.
type Mode string

const (
	ModeOutput Mode = "output" // print to the log channel
	ModeAcross Mode = "across" // sibling .css file
	ModeFile   Mode = "file"   // caller-chosen destination
)

// SingleRequest describes a single-buffer compile. Name is the buffer's file
// name, empty for unnamed buffers.
type SingleRequest struct {
	Name     string
	Text     string
	Indented *bool
	Mode     Mode
	Dest     string
}

// Destination returns the file a request writes to, or "" for ModeOutput.
func (r SingleRequest) Destination() (string, error) {
	switch r.Mode {
	case ModeOutput, "":
		return "", nil
	case ModeAcross:
		if r.Name == "" {
			return "", ferrors.ValidationError("across mode needs a saved file").Build()
		}
		return filepath.Join(filepath.Dir(r.Name), paths.CSSFileName(filepath.Base(r.Name))), nil
	case ModeFile:
		if r.Dest == "" {
			return "", ferrors.ValidationError("file mode needs a destination").Build()
		}
		return r.Dest, nil
	default:
		return "", ferrors.ValidationError(fmt.Sprintf("unknown mode %q", r.Mode)).Build()
	}
}

// CompileSingle compiles a buffer and delivers the CSS, or the failure
// message, to the requested place. The returned error covers delivery only;
// compile failures are in the Result.
func (u *Unit) CompileSingle(ctx context.Context, req SingleRequest, out io.Writer) (Result, error) {
	dest, err := req.Destination()
	if err != nil {
		return Result{}, err
	}

	indented := req.Indented
	if indented == nil && req.Name != "" && paths.IsSource(req.Name) {
		v := paths.IsIndentedSyntax(req.Name)
		indented = &v
	}
	res := u.CompileText(ctx, req.Text, indented)

	if dest == "" {
		if _, err := io.WriteString(out, res.Text()); err != nil {
			return res, ferrors.FileSystemError("failed to write output").WithCause(err).Build()
		}
		return res, nil
	}
	if err := os.WriteFile(dest, []byte(res.Text()), 0o644); err != nil {
		return res, ferrors.FileSystemError("failed to write output").
			WithCause(err).
			WithContext("file", dest).
			Build()
	}
	return res, nil
}
