package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyFile       = "file"
	KeyOutput     = "output"
	KeyConfigPath = "config_path"
	KeyRoot       = "root"
	KeyWatchID    = "watch_id"
	KeyRunID      = "run_id"
	KeyTrigger    = "trigger"
	KeySyntax     = "syntax"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyAddr       = "addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func File(path string) slog.Attr       { return slog.String(KeyFile, path) }
func Output(path string) slog.Attr     { return slog.String(KeyOutput, path) }
func ConfigPath(path string) slog.Attr { return slog.String(KeyConfigPath, path) }
func Root(path string) slog.Attr       { return slog.String(KeyRoot, path) }
func WatchID(id string) slog.Attr      { return slog.String(KeyWatchID, id) }
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Trigger(t string) slog.Attr       { return slog.String(KeyTrigger, t) }
func Syntax(s string) slog.Attr        { return slog.String(KeySyntax, s) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Addr(a string) slog.Attr          { return slog.String(KeyAddr, a) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
