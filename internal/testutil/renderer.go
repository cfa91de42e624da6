package testutil

import (
	"context"
	"sync"

	"github.com/Sternrassler/readwise-epub/pkg/output"
)

// RenderCall is one recorded renderer invocation.
type RenderCall struct {
	Identity output.Identity
	URLs     []string
}

// RecordingRenderer records calls instead of spawning a process. Filenames
// listed in Fail return an error.
type RecordingRenderer struct {
	mu    sync.Mutex
	Calls []RenderCall
	Fail  map[string]error
}

// NewRecordingRenderer creates an empty recorder.
func NewRecordingRenderer() *RecordingRenderer {
	return &RecordingRenderer{Fail: make(map[string]error)}
}

// Render implements output.Renderer.
func (r *RecordingRenderer) Render(ctx context.Context, id output.Identity, urls []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls = append(r.Calls, RenderCall{
		Identity: id,
		URLs:     append([]string(nil), urls...),
	})
	return r.Fail[id.Filename]
}
