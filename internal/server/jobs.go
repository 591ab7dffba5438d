package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"keplerhub/internal/events"
	"keplerhub/internal/lightcurve"
)

const (
	JobRunning = "running"
	JobDone    = "done"

	maxRetainedJobs = 50
)

// Job is a snapshot of an admin pre-warm run.
type Job struct {
	ID         string                     `json:"job_id"`
	State      string                     `json:"state"`
	Targets    []string                   `json:"targets"`
	Results    []lightcurve.PrewarmResult `json:"results,omitempty"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt *time.Time                 `json:"finished_at,omitempty"`
}

// Broadcaster fans job events out to connected clients. *events.Hub is one.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Jobs runs pre-warm passes in the background and remembers the most
// recent ones.
type Jobs struct {
	Resolver *lightcurve.Resolver
	Hub      Broadcaster
	Workers  int
	Logger   zerolog.Logger

	mu    sync.Mutex
	jobs  map[string]*Job
	order []string
	wg    sync.WaitGroup
}

func NewJobs(r *lightcurve.Resolver, hub Broadcaster, workers int, logger zerolog.Logger) *Jobs {
	return &Jobs{
		Resolver: r,
		Hub:      hub,
		Workers:  workers,
		Logger:   logger.With().Str("component", "jobs").Logger(),
		jobs:     make(map[string]*Job),
	}
}

// Start launches a pre-warm of targets under ctx and returns immediately.
func (j *Jobs) Start(ctx context.Context, targets []string) Job {
	job := &Job{
		ID:        uuid.NewString(),
		State:     JobRunning,
		Targets:   append([]string(nil), targets...),
		StartedAt: time.Now().UTC(),
	}

	j.mu.Lock()
	j.jobs[job.ID] = job
	j.order = append(j.order, job.ID)
	j.pruneLocked()
	snapshot := *job
	j.mu.Unlock()

	// events are sent from the job goroutine; started always precedes finished
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.broadcast(events.PrewarmEvent{Type: events.TypePrewarmStarted, JobID: job.ID, Targets: len(job.Targets), At: job.StartedAt})

		results := lightcurve.Prewarm(ctx, j.Resolver, job.Targets, j.Workers, j.Logger.With().Str("job_id", job.ID).Logger())

		ok := 0
		for _, r := range results {
			if r.OK() {
				ok++
			}
		}
		done := time.Now().UTC()

		j.mu.Lock()
		job.State = JobDone
		job.Results = results
		job.FinishedAt = &done
		j.mu.Unlock()

		j.broadcast(events.PrewarmEvent{
			Type: events.TypePrewarmFinished, JobID: job.ID,
			Targets: len(results), OK: ok, Failed: len(results) - ok, At: done,
		})
	}()

	return snapshot
}

func (j *Jobs) Get(id string) (Job, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[id]
	if !ok {
		return Job{}, false
	}
	out := *job
	out.Results = append([]lightcurve.PrewarmResult(nil), job.Results...)
	return out, true
}

// Wait blocks until every started job has finished.
func (j *Jobs) Wait() { j.wg.Wait() }

func (j *Jobs) broadcast(ev events.PrewarmEvent) {
	if j.Hub != nil {
		j.Hub.BroadcastJSON(ev)
	}
}

// pruneLocked forgets the oldest finished jobs beyond maxRetainedJobs.
func (j *Jobs) pruneLocked() {
	for len(j.order) > maxRetainedJobs {
		idx := -1
		for i, id := range j.order {
			if j.jobs[id].State == JobDone {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		delete(j.jobs, j.order[idx])
		j.order = append(j.order[:idx], j.order[idx+1:]...)
	}
}
