package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
)

// ProjectFileName is the per-project configuration file name. Its directory is
// the project root.
const ProjectFileName = "sassconfig.json"

// MaxIndentWidth bounds Project.IndentWidth.
const MaxIndentWidth = 10

var (
	indentTypes  = []string{"space", "tab"}
	linefeeds    = []string{"cr", "crlf", "lf", "lfcr"}
	outputStyles = []string{"expanded", "compressed"}
)

// Project is the content of a sassconfig.json file. Absent fields leave the
// compiler defaults in place. A Project is never mutated after loading.
type Project struct {
	OutDir           string `json:"outDir,omitempty"`
	RemoveComments   bool   `json:"removeComments,omitempty"`
	SourceMaps       bool   `json:"sourceMaps,omitempty"`
	IndentType       string `json:"indentType,omitempty"`
	IndentWidth      *int   `json:"indentWidth,omitempty"`
	Linefeed         string `json:"linefeed,omitempty"`
	OmitSourceMapURL bool   `json:"omitSourceMapUrl,omitempty"`
	OutputStyle      string `json:"outputStyle,omitempty"`
}

// LoadProject reads and validates a sassconfig.json file.
func LoadProject(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Project{}, ferrors.ConfigError("configuration file not found: "+path).
				WithCause(err).
				WithContext("path", path).
				Build()
		}
		return Project{}, ferrors.ConfigError("failed to read configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	p, err := ParseProject(data)
	if err != nil {
		if ce, ok := ferrors.AsClassified(err); ok {
			return Project{}, ce.WithContext("path", path)
		}
		return Project{}, err
	}
	return p, nil
}

// ParseProject decodes and validates sassconfig.json content.
func ParseProject(data []byte) (Project, error) {
	var p Project
	if len(bytes.TrimSpace(data)) == 0 {
		return p, ferrors.ConfigError("configuration file is empty").Build()
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Project{}, ferrors.ConfigError("invalid configuration JSON").WithCause(err).Build()
	}
	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Validate checks enumerated fields and bounds.
func (p Project) Validate() error {
	check := func(field, value string, allowed []string) error {
		if value == "" || slices.Contains(allowed, value) {
			return nil
		}
		return ferrors.ConfigError(fmt.Sprintf("invalid %s %q (expected one of %v)", field, value, allowed)).
			WithContext("field", field).
			Build()
	}
	if err := check("indentType", p.IndentType, indentTypes); err != nil {
		return err
	}
	if err := check("linefeed", p.Linefeed, linefeeds); err != nil {
		return err
	}
	if err := check("outputStyle", p.OutputStyle, outputStyles); err != nil {
		return err
	}
	if p.IndentWidth != nil && (*p.IndentWidth < 0 || *p.IndentWidth > MaxIndentWidth) {
		return ferrors.ConfigError(fmt.Sprintf("invalid indentWidth %d (expected 0-%d)", *p.IndentWidth, MaxIndentWidth)).
			WithContext("field", "indentWidth").
			Build()
	}
	return nil
}

// ProjectRoot returns the root directory governed by a config file.
func ProjectRoot(configPath string) string {
	return filepath.Dir(configPath)
}

// StarterProject is the content written by `sassc init`.
func StarterProject() Project {
	return Project{
		SourceMaps:  true,
		OutputStyle: "expanded",
	}
}

// WriteProject writes p as indented JSON. An existing file is only replaced
// when force is set.
func WriteProject(path string, p Project, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.NewError(ferrors.CategoryAlreadyExists, "configuration file already exists: "+path+" (use --force to overwrite)").
			UserAction().
			Build()
	} else if err != nil && !os.IsNotExist(err) {
		return ferrors.FileSystemError("failed to stat configuration file").WithCause(err).Build()
	}

	data, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return ferrors.InternalError("failed to encode configuration").WithCause(err).Build()
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, fs.FileMode(0o644)); err != nil {
		return ferrors.FileSystemError("failed to write configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}
