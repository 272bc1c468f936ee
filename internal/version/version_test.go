package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringIncludesBuildInfo(t *testing.T) {
	s := String()
	require.True(t, strings.HasPrefix(s, "sassc "))
	require.Contains(t, s, "commit "+GitCommit)
	require.Contains(t, s, "built "+BuildTime)
}

func TestStringPrefersLdflagsVersion(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "v9.9.9"
	require.True(t, strings.HasPrefix(String(), "sassc v9.9.9 "))
}
