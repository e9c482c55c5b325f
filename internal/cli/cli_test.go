package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/buildscope/internal/testutil"
)

func TestParse_ProjectPathSources(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "project flag", args: []string{"-project", "a.proj"}, want: "a.proj"},
		{name: "shorthand flag", args: []string{"-f", "b.proj"}, want: "b.proj"},
		{name: "positional argument", args: []string{"c.proj"}, want: "c.proj"},
		{name: "project flag wins over positional", args: []string{"-project", "a.proj", "c.proj"}, want: "a.proj"},
		{name: "project flag wins over shorthand", args: []string{"-project", "a.proj", "-f", "b.proj"}, want: "a.proj"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := &testutil.SafeBuffer{}
			config, shouldExit, err := Parse(tc.args, out)
			require.NoError(t, err)
			require.False(t, shouldExit)
			assert.Equal(t, tc.want, config.ProjectPath)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	out := &testutil.SafeBuffer{}
	config, shouldExit, err := Parse([]string{"a.proj"}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, "text", config.LogFormat)
	assert.Equal(t, "info", config.LogLevel)
	assert.False(t, config.Watch)
	assert.False(t, config.FailOnUnused)
	assert.Equal(t, 16, config.ClosedCacheSize)
	assert.Empty(t, config.Properties)
}

func TestParse_AllOptions(t *testing.T) {
	t.Parallel()

	out := &testutil.SafeBuffer{}
	config, shouldExit, err := Parse([]string{
		"-log-format", "json",
		"-log-level", "debug",
		"-watch",
		"-fail-on-unused",
		"-closed-cache", "8",
		"-p", "Config=Release",
		"-p", "Platform=x64",
		"a.proj",
	}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "debug", config.LogLevel)
	assert.True(t, config.Watch)
	assert.True(t, config.FailOnUnused)
	assert.Equal(t, 8, config.ClosedCacheSize)
	assert.Equal(t, map[string]string{"Config": "Release", "Platform": "x64"}, config.Properties)
}

func TestParse_CaseNormalization(t *testing.T) {
	t.Parallel()

	out := &testutil.SafeBuffer{}
	config, _, err := Parse([]string{"-log-format", "JSON", "-log-level", "WARN", "a.proj"}, out)
	require.NoError(t, err)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "warn", config.LogLevel)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &testutil.SafeBuffer{}
	config, shouldExit, err := Parse(nil, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, config)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "buildscope")
}

func TestParse_HelpFlag(t *testing.T) {
	t.Parallel()

	out := &testutil.SafeBuffer{}
	config, shouldExit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, config)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{name: "invalid log format", args: []string{"-log-format", "yaml", "a.proj"}, wantMsg: "invalid log-format"},
		{name: "invalid log level", args: []string{"-log-level", "trace", "a.proj"}, wantMsg: "invalid log-level"},
		{name: "malformed property", args: []string{"-p", "ConfigRelease", "a.proj"}, wantMsg: "Name=Value"},
		{name: "property without name", args: []string{"-p", "=Release", "a.proj"}, wantMsg: "Name=Value"},
		{name: "unknown flag", args: []string{"-nope", "a.proj"}, wantMsg: "nope"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := &testutil.SafeBuffer{}
			_, _, err := Parse(tc.args, out)
			require.Error(t, err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.True(t, strings.Contains(exitErr.Message, tc.wantMsg),
				"message %q does not mention %q", exitErr.Message, tc.wantMsg)
		})
	}
}
