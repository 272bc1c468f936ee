package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "sassconfig.json").
			Build()

		require.Equal(t, CategoryConfig, err.Category())
		require.Equal(t, SeverityFatal, err.Severity())
		require.Equal(t, "invalid configuration", err.Message())

		file, exists := err.Context().GetString("file")
		require.True(t, exists)
		require.Equal(t, "sassconfig.json", file)
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		err := fmt.Errorf("loading: %w", ConfigError("bad json").Build())

		require.True(t, IsClassified(err))
		require.True(t, HasCategory(err, CategoryConfig))
		require.Equal(t, CategoryConfig, GetCategory(err))
		require.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
	})

	t.Run("Cause is unwrapped", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := NewError(CategoryFileSystem, "write output").WithCause(cause).Build()
		require.ErrorIs(t, err, cause)
		require.Contains(t, err.Error(), "permission denied")
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := NotFoundError("no config").Build()
		derived := base.WithContext("root", "/proj")

		_, ok := base.Context().Get("root")
		require.False(t, ok)
		root, _ := derived.Context().GetString("root")
		require.Equal(t, "/proj", root)
	})
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		builder  *ErrorBuilder
		category ErrorCategory
		severity ErrorSeverity
		retry    RetryStrategy
	}{
		{"ConfigError", ConfigError("test"), CategoryConfig, SeverityFatal, RetryUserAction},
		{"ValidationError", ValidationError("test"), CategoryValidation, SeverityFatal, RetryNever},
		{"NotFoundError", NotFoundError("test"), CategoryNotFound, SeverityError, RetryUserAction},
		{"CompileError", CompileError("test"), CategoryCompile, SeverityError, RetryUserAction},
		{"FileSystemError", FileSystemError("test"), CategoryFileSystem, SeverityError, RetryBackoff},
		{"WatchError", WatchError("test"), CategoryWatch, SeverityError, RetryNever},
		{"NetworkError", NetworkError("test"), CategoryNetwork, SeverityError, RetryBackoff},
		{"DaemonError", DaemonError("test"), CategoryDaemon, SeverityFatal, RetryNever},
		{"InternalError", InternalError("test"), CategoryInternal, SeverityFatal, RetryNever},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Build()
			require.Equal(t, tt.category, err.Category())
			require.Equal(t, tt.severity, err.Severity())
			require.Equal(t, tt.retry, err.RetryStrategy())
		})
	}
}

func TestErrorContextMerge(t *testing.T) {
	ctx1 := ErrorContext{}.Set("key1", "value1").Set("shared", "original")
	ctx2 := ErrorContext{}.Set("key2", "value2").Set("shared", "overridden")

	merged := ctx1.Merge(ctx2)

	v1, _ := merged.GetString("key1")
	v2, _ := merged.GetString("key2")
	shared, _ := merged.GetString("shared")
	require.Equal(t, "value1", v1)
	require.Equal(t, "value2", v2)
	require.Equal(t, "overridden", shared)
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"not found", NotFoundError("no sassconfig.json").Build(), 3},
		{"config", ConfigError("bad json").Build(), 7},
		{"compile", CompileError("syntax").Build(), 11},
		{"watch", WatchError("subscribe").Build(), 12},
		{"wrapped config", fmt.Errorf("project: %w", ConfigError("bad json").Build()), 7},
		{"unclassified", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out

	code := adapter.HandleError(NotFoundError("no sassconfig.json found").Build())
	require.Equal(t, 3, code)
	require.Equal(t, "no sassconfig.json found\n", out.String())
	require.Empty(t, logs.String())

	out.Reset()
	code = adapter.HandleError(InternalError("broken invariant").Build())
	require.Equal(t, 10, code)
	require.Equal(t, "internal: broken invariant\n", out.String())
	require.Contains(t, logs.String(), "broken invariant")
}

func TestStatusCodeFor(t *testing.T) {
	require.Equal(t, http.StatusOK, StatusCodeFor(nil))
	require.Equal(t, http.StatusBadRequest, StatusCodeFor(ConfigError("x").Build()))
	require.Equal(t, http.StatusNotFound, StatusCodeFor(NotFoundError("x").Build()))
	require.Equal(t, http.StatusInternalServerError, StatusCodeFor(errors.New("x")))

	resp := FormatErrorResponse(ConfigError("bad").WithContext("path", "/p").Build())
	require.Equal(t, "bad", resp.Error)
	require.Equal(t, "config", resp.Code)
	require.Equal(t, "/p", resp.Details["path"])
}
