// Package testutil provides shared helpers for exercising the full
// load-evaluate-reconcile pipeline against real files in a temp directory.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/buildscope/internal/graph"
	"github.com/vk/buildscope/internal/project"
	"github.com/vk/buildscope/internal/reconcile"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteProject writes the given files (relative path → content) into a fresh
// temp directory and returns its path.
func WriteProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// Analyze runs the full pipeline over the given files: entry names the
// project file to load, relative to the written temp directory. It fails the
// test on any pipeline error.
func Analyze(t *testing.T, files map[string]string, entry string, props map[string]string) (*graph.Graph, *project.Snapshot) {
	t.Helper()
	dir := WriteProject(t, files)

	snapshot, err := project.Load(context.Background(), filepath.Join(dir, entry), &project.Options{
		Properties: props,
	})
	require.NoError(t, err)

	g, err := reconcile.Build(context.Background(), snapshot.View, snapshot.Table, &reconcile.Options{
		BaseDiagnostics: snapshot.Diags,
	})
	require.NoError(t, err)

	return g, snapshot
}
