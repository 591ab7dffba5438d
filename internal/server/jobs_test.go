package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keplerhub/internal/events"
	"keplerhub/internal/lightcurve"
)

// gatedBroadcaster blocks every broadcast until release is closed.
type gatedBroadcaster struct {
	release chan struct{}

	mu   sync.Mutex
	seen []string
}

func (g *gatedBroadcaster) BroadcastJSON(v any) {
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	if ev, ok := v.(events.PrewarmEvent); ok {
		g.seen = append(g.seen, ev.Type)
	}
}

func (g *gatedBroadcaster) types() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.seen...)
}

func TestJobs_StartDoesNotWaitForBroadcast(t *testing.T) {
	resolver := lightcurve.NewResolver(
		lightcurve.Config{CacheDir: t.TempDir()},
		stubArchive{},
		lightcurve.WithRenderer(pngStub{}),
	)
	hub := &gatedBroadcaster{release: make(chan struct{})}
	jobs := NewJobs(resolver, hub, 1, zerolog.Nop())

	started := make(chan Job, 1)
	go func() { started <- jobs.Start(context.Background(), []string{"Kepler-22"}) }()

	var job Job
	select {
	case job = <-started:
	case <-time.After(2 * time.Second):
		close(hub.release)
		t.Fatal("Start blocked on a stalled broadcaster")
	}
	assert.Equal(t, JobRunning, job.State)

	close(hub.release)
	jobs.Wait()

	got, ok := jobs.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, JobDone, got.State)
	assert.Equal(t, []string{events.TypePrewarmStarted, events.TypePrewarmFinished}, hub.types())
}
