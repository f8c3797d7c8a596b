// Package jobs provides the timed job facility the reminder orchestrator
// registers against: one-shot jobs keyed by id, with replace-on-conflict
// semantics.
package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"planreminder/internal/metrics"
)

type Job struct {
	ID    string
	RunAt time.Time
}

// Runner is the scheduling contract consumed by the orchestrator.
type Runner interface {
	// AddJob registers fn to run once at the given time, replacing any job
	// with the same id.
	AddJob(id string, at time.Time, fn func()) error
	// RemoveJob deregisters a job. It reports whether the job existed.
	RemoveJob(id string) bool
	// Jobs lists currently registered jobs.
	Jobs() []Job
}

var ErrStopped = errors.New("job runner is stopped")

// TimerRunner runs each job on its own timer goroutine. Job functions run
// off the lock; a panicking job is recovered and logged.
type TimerRunner struct {
	log *zap.Logger

	mu      sync.Mutex
	jobs    map[string]*timerJob
	stopped bool
}

type timerJob struct {
	id    string
	runAt time.Time
	timer *time.Timer
}

func NewTimerRunner(log *zap.Logger) *TimerRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &TimerRunner{
		log:  log,
		jobs: make(map[string]*timerJob),
	}
}

func (r *TimerRunner) AddJob(id string, at time.Time, fn func()) error {
	if id == "" {
		return errors.New("job id must not be empty")
	}
	if fn == nil {
		return errors.New("job fn must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}

	if old, ok := r.jobs[id]; ok {
		old.timer.Stop()
	}

	j := &timerJob{id: id, runAt: at}
	j.timer = time.AfterFunc(time.Until(at), func() {
		r.fire(j, fn)
	})
	r.jobs[id] = j
	metrics.JobsScheduled.Set(float64(len(r.jobs)))
	return nil
}

func (r *TimerRunner) fire(j *timerJob, fn func()) {
	r.mu.Lock()
	// A replaced job may still fire if the timer won the race; only the
	// registered instance is allowed to run.
	if cur, ok := r.jobs[j.id]; !ok || cur != j {
		r.mu.Unlock()
		return
	}
	delete(r.jobs, j.id)
	metrics.JobsScheduled.Set(float64(len(r.jobs)))
	r.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("job panic recovered", zap.String("job_id", j.id), zap.Any("panic", rec))
		}
	}()
	fn()
}

func (r *TimerRunner) RemoveJob(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return false
	}
	j.timer.Stop()
	delete(r.jobs, id)
	metrics.JobsScheduled.Set(float64(len(r.jobs)))
	return true
}

func (r *TimerRunner) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, Job{ID: j.id, RunAt: j.runAt})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Stop cancels every registered job. The runner accepts no jobs afterwards.
func (r *TimerRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	for _, j := range r.jobs {
		j.timer.Stop()
	}
	r.jobs = make(map[string]*timerJob)
	metrics.JobsScheduled.Set(0)
}
