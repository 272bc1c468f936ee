// Package discovery locates workspaces, project configurations and style
// sources on disk.
package discovery

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	gitignore "github.com/sabhiram/go-gitignore"

	"git.home.luguber.info/inful/sassc/internal/config"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/paths"
)

var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".sassc":       true,
}

// WorkspaceRoot returns the work tree root of the git repository containing
// start. Outside a repository start itself is the workspace.
func WorkspaceRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", ferrors.FileSystemError("failed to resolve workspace path").WithCause(err).Build()
	}
	if _, err := os.Stat(abs); err != nil {
		return "", ferrors.NotFoundError("workspace not found: " + abs).WithCause(err).Build()
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return abs, nil
		}
		return "", ferrors.NewError(ferrors.CategoryGit, "failed to open repository").WithCause(err).Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		// bare repository
		return abs, nil
	}
	return wt.Filesystem.Root(), nil
}

// FindConfigs returns every sassconfig.json below root, sorted.
func FindConfigs(ctx context.Context, root string) ([]string, error) {
	return walk(ctx, root, func(name string) bool { return name == config.ProjectFileName })
}

// FindSources returns every .sass and .scss file below root, sorted. Partials
// are included; compiling code filters them.
func FindSources(ctx context.Context, root string) ([]string, error) {
	return walk(ctx, root, paths.IsSource)
}

func walk(ctx context.Context, root string, match func(name string) bool) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, ferrors.FileSystemError("failed to resolve root").WithCause(err).Build()
	}
	ignore := loadIgnore(root)

	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if ignore != nil && (ignore.MatchesPath(rel) || ignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !match(d.Name()) {
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.NotFoundError("directory not found: " + root).WithCause(err).Build()
		}
		return nil, ferrors.FileSystemError("failed to scan directory").
			WithCause(err).
			WithContext("root", root).
			Build()
	}
	slices.Sort(found)
	return found, nil
}

func loadIgnore(root string) *gitignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ignore, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return ignore
}
