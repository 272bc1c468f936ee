package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sassc/internal/compile"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
)

func TestAppendAndRecent(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := t.Context()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, src := range []string{"a.scss", "b.scss", "c.scss"} {
		require.NoError(t, store.Append(ctx, Record{
			RunID:    "run-1",
			Trigger:  "project",
			Source:   src,
			Output:   src + ".css",
			Success:  i != 1,
			Message:  map[bool]string{true: "expected }"}[i == 1],
			Duration: time.Duration(i+1) * time.Millisecond,
			At:       at.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "c.scss", recent[0].Source)
	require.Equal(t, "b.scss", recent[1].Source)
	require.False(t, recent[1].Success)
	require.Equal(t, "expected }", recent[1].Message)
	require.Equal(t, 2*time.Millisecond, recent[1].Duration)
	require.True(t, recent[1].At.Equal(at.Add(time.Second)))

	run, err := store.ByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, run, 3)
	require.Equal(t, "a.scss", run[0].Source)

	none, err := store.ByRun(ctx, "other")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), Record{RunID: "r", Trigger: "save", Source: "x.scss", Output: "x.css", Success: true}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	recent, err := store.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.False(t, recent[0].At.IsZero())
}

func TestObserver(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	obs := store.Observer(nil)
	obs.OnCompile(compile.Outcome{RunID: "w", Trigger: compile.TriggerSave, Source: "ok.scss", Output: "ok.css", Started: time.Now()})
	obs.OnCompile(compile.Outcome{
		RunID:   "w",
		Trigger: compile.TriggerSave,
		Source:  "bad.scss",
		Output:  "bad.css",
		Err:     ferrors.CompileError("Undefined variable.").Build(),
	})

	recs, err := store.ByRun(t.Context(), "w")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.True(t, recs[0].Success)
	require.Empty(t, recs[0].Message)
	require.False(t, recs[1].Success)
	require.Equal(t, "Undefined variable.", recs[1].Message)
	require.Equal(t, "save", recs[1].Trigger)
}

func TestOpenFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, writeFile(blocker))
	_, err := Open(filepath.Join(blocker, "db", "history.db"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDatabaseOpenFailed))
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0o644)
}
