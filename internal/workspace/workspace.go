// Package workspace manages the published graph snapshots of a set of open
// documents.
//
// Each document has at most one published graph. A rebuild constructs a new
// graph off to the side and atomically replaces the published one only on
// success, so concurrent readers always observe a fully-consistent snapshot
// and a failed rebuild leaves the previous graph in place. Starting a rebuild
// for a document cancels any in-flight build for the same document; the
// superseded build abandons cooperatively and never publishes. Graphs of
// recently closed documents are retained in a bounded LRU so reopening a
// document is cheap.
package workspace

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/vk/buildscope/internal/ctxlog"
	"github.com/vk/buildscope/internal/graph"
)

// BuildFunc produces a fresh graph for the document at path. It must honor
// context cancellation between units of work.
type BuildFunc func(ctx context.Context, path string) (*graph.Graph, error)

// Workspace is safe for concurrent use.
type Workspace struct {
	build BuildFunc

	mu        sync.RWMutex
	published map[string]*graph.Graph
	inflight  map[string]*buildHandle

	closed *lru.Cache[string, *graph.Graph]
	group  singleflight.Group
}

type buildHandle struct {
	cancel context.CancelFunc
}

// New creates a workspace. closedCapacity bounds how many recently closed
// documents keep their graphs; it must be positive.
func New(build BuildFunc, closedCapacity int) (*Workspace, error) {
	cache, err := lru.New[string, *graph.Graph](closedCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create closed-document cache: %w", err)
	}
	return &Workspace{
		build:     build,
		published: make(map[string]*graph.Graph),
		inflight:  make(map[string]*buildHandle),
		closed:    cache,
	}, nil
}

// Snapshot returns the currently published graph for the document, if any.
// The returned graph is immutable and remains valid even after a newer graph
// replaces it.
func (w *Workspace) Snapshot(path string) (*graph.Graph, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	g, ok := w.published[path]
	return g, ok
}

// Load returns the published graph for the document, building and publishing
// one first if none exists. Concurrent first loads of the same document are
// coalesced into a single build.
func (w *Workspace) Load(ctx context.Context, path string) (*graph.Graph, error) {
	if g, ok := w.Snapshot(path); ok {
		return g, nil
	}
	if g, ok := w.closed.Get(path); ok {
		w.reopen(path, g)
		return g, nil
	}

	result, err, _ := w.group.Do(path, func() (any, error) {
		if g, ok := w.Snapshot(path); ok {
			return g, nil
		}
		return w.Rebuild(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	return result.(*graph.Graph), nil
}

// Rebuild builds a fresh graph for the document and publishes it on success.
// Any in-flight build for the same document is cancelled and will not
// publish. On failure the previously published graph, if any, stays
// published and the build error is returned.
func (w *Workspace) Rebuild(ctx context.Context, path string) (*graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)

	buildCtx, cancel := context.WithCancel(ctx)
	handle := &buildHandle{cancel: cancel}

	w.mu.Lock()
	if prev, ok := w.inflight[path]; ok {
		logger.Debug("Workspace: superseding in-flight build.", "path", path)
		prev.cancel()
	}
	w.inflight[path] = handle
	w.mu.Unlock()

	g, err := w.build(buildCtx, path)

	w.mu.Lock()
	defer w.mu.Unlock()
	defer cancel()

	if w.inflight[path] == handle {
		delete(w.inflight, path)
	} else if err == nil {
		// A newer build took over after this one finished; its result, not
		// this one, must win.
		return nil, context.Canceled
	}

	if err != nil {
		logger.Debug("Workspace: build failed; previous graph stays published.", "path", path, "error", err)
		return nil, err
	}

	w.published[path] = g
	w.closed.Remove(path)
	logger.Debug("Workspace: published new graph.", "path", path, "objects", g.Len())
	return g, nil
}

// Close unpublishes the document's graph, retaining it in the closed-document
// cache. Any in-flight build for the document is cancelled.
func (w *Workspace) Close(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if handle, ok := w.inflight[path]; ok {
		handle.cancel()
		delete(w.inflight, path)
	}
	if g, ok := w.published[path]; ok {
		delete(w.published, path)
		w.closed.Add(path, g)
	}
}

// Open returns the paths of all documents with a published graph.
func (w *Workspace) Open() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	paths := make([]string, 0, len(w.published))
	for path := range w.published {
		paths = append(paths, path)
	}
	return paths
}

func (w *Workspace) reopen(path string, g *graph.Graph) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.published[path]; !ok {
		w.published[path] = g
	}
	w.closed.Remove(path)
}
