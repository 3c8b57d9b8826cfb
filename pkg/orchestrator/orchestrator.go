// Package orchestrator schedules analysis jobs, tracks their lifecycle, and
// holds their results in memory.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/depintel/depintel/pkg/analyzer"
	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/graph"
	"github.com/depintel/depintel/pkg/logger"
	"github.com/depintel/depintel/pkg/metadata"
)

// State is a job's position in its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var (
	// ErrJobNotFound is returned for job IDs the orchestrator never issued.
	ErrJobNotFound = errors.New("job not found")
	// ErrResultNotReady is returned when a job has not completed yet.
	ErrResultNotReady = errors.New("result not ready")
	// ErrJobFailed is returned when fetching the result of a failed job. The
	// wrapped message carries the failure reason.
	ErrJobFailed = errors.New("job failed")
	// ErrConcurrencyLimit is returned when a project already has the maximum
	// number of active jobs.
	ErrConcurrencyLimit = errors.New("concurrent job limit reached")
)

type job struct {
	id         string
	projectID  string
	jobType    analyzer.Type
	state      State
	errMsg     string
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	result     *analyzer.Result
	cancel     context.CancelFunc
	done       chan struct{}
}

// JobStatus is a point-in-time snapshot of a job.
type JobStatus struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"project_id"`
	Type       analyzer.Type `json:"type"`
	State      State         `json:"state"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
}

// Orchestrator runs analyzers as supervised jobs with per-project
// concurrency limits and timeouts.
type Orchestrator struct {
	cfg      *config.Config
	provider metadata.Provider

	mu   sync.Mutex
	jobs map[string]*job
}

// New creates an orchestrator backed by the given metadata provider.
func New(cfg *config.Config, provider metadata.Provider) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		provider: provider,
		jobs:     map[string]*job{},
	}
}

// Submit creates and starts a job for one analyzer over the given graph.
// The job runs asynchronously; the returned ID is used to poll status and
// fetch the result. Submission is rejected without creating a job when the
// project already has the maximum number of active jobs.
func (o *Orchestrator) Submit(ctx context.Context, projectID string, t analyzer.Type, g *graph.DependencyGraph, jobCfg analyzer.JobConfig) (string, error) {
	a, err := analyzer.New(t, o.cfg)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	if o.activeLocked(projectID) >= o.cfg.Orchestrator.MaxConcurrentJobs {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: project %s already has %d active jobs",
			ErrConcurrencyLimit, projectID, o.cfg.Orchestrator.MaxConcurrentJobs)
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.JobTimeout)
	j := &job{
		id:        uuid.NewString(),
		projectID: projectID,
		jobType:   t,
		state:     StatePending,
		createdAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	o.jobs[j.id] = j
	o.mu.Unlock()

	logger.WithField("job", j.id).Debugf("submitted %s job for project %s", t, projectID)
	go o.run(runCtx, j, a, g, jobCfg)
	return j.id, nil
}

func (o *Orchestrator) run(ctx context.Context, j *job, a analyzer.Analyzer, g *graph.DependencyGraph, jobCfg analyzer.JobConfig) {
	defer j.cancel()

	o.mu.Lock()
	if j.state != StatePending {
		// Cancelled before it started.
		o.mu.Unlock()
		close(j.done)
		return
	}
	j.state = StateRunning
	j.startedAt = time.Now()
	o.mu.Unlock()

	result, err := a.Run(ctx, g, o.provider, jobCfg)

	o.mu.Lock()
	switch {
	case j.state == StateFailed:
		// A cancellation already decided the outcome and stamped the finish.
	case err != nil:
		j.state = StateFailed
		j.finishedAt = time.Now()
		j.errMsg = failureMessage(ctx, err)
		logger.WithField("job", j.id).Warnf("%s job failed: %s", j.jobType, j.errMsg)
	default:
		j.state = StateCompleted
		j.finishedAt = time.Now()
		j.result = result
		logger.WithField("job", j.id).Debugf("%s job completed in %s", j.jobType, j.finishedAt.Sub(j.startedAt))
	}
	o.mu.Unlock()
	close(j.done)
}

func failureMessage(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timed out"
	}
	return err.Error()
}

// activeLocked counts a project's pending and running jobs. Caller holds mu.
func (o *Orchestrator) activeLocked(projectID string) int {
	active := 0
	for _, j := range o.jobs {
		if j.projectID == projectID && (j.state == StatePending || j.state == StateRunning) {
			active++
		}
	}
	return active
}

// GetStatus returns a snapshot of the job.
func (o *Orchestrator) GetStatus(jobID string) (*JobStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return j.statusLocked(), nil
}

func (j *job) statusLocked() *JobStatus {
	return &JobStatus{
		ID:         j.id,
		ProjectID:  j.projectID,
		Type:       j.jobType,
		State:      j.state,
		Error:      j.errMsg,
		CreatedAt:  j.createdAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
}

// GetResult returns a completed job's result. Pending and running jobs
// return ErrResultNotReady; failed jobs return their failure.
func (o *Orchestrator) GetResult(jobID string) (*analyzer.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	switch j.state {
	case StateCompleted:
		return j.result, nil
	case StateFailed:
		return nil, fmt.Errorf("%w: %s: %s", ErrJobFailed, jobID, j.errMsg)
	default:
		return nil, fmt.Errorf("%w: job %s is %s", ErrResultNotReady, jobID, j.state)
	}
}

// Cancel requests that a job stop. The request is advisory: a running
// analyzer stops at its next context check, and the job is marked failed
// with a cancellation error. Cancelling a finished job is a no-op.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if j.state == StateCompleted || j.state == StateFailed {
		return nil
	}
	j.state = StateFailed
	j.errMsg = "cancelled"
	j.finishedAt = time.Now()
	j.cancel()
	logger.WithField("job", j.id).Infof("%s job cancelled", j.jobType)
	return nil
}

// Wait blocks until the job finishes or the context expires, then returns
// its final status.
func (o *Orchestrator) Wait(ctx context.Context, jobID string) (*JobStatus, error) {
	o.mu.Lock()
	j, ok := o.jobs[jobID]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return o.GetStatus(jobID)
}

// Jobs returns snapshots of a project's jobs, newest first.
func (o *Orchestrator) Jobs(projectID string) []*JobStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	statuses := make([]*JobStatus, 0)
	for _, j := range o.jobs {
		if j.projectID == projectID {
			statuses = append(statuses, j.statusLocked())
		}
	}
	sort.Slice(statuses, func(i, k int) bool {
		if !statuses[i].CreatedAt.Equal(statuses[k].CreatedAt) {
			return statuses[i].CreatedAt.After(statuses[k].CreatedAt)
		}
		return statuses[i].ID < statuses[k].ID
	})
	return statuses
}

// LatestResults returns, per analyzer type, the most recently completed
// result for the project.
func (o *Orchestrator) LatestResults(projectID string) map[analyzer.Type]*analyzer.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	latest := map[analyzer.Type]*job{}
	for _, j := range o.jobs {
		if j.projectID != projectID || j.state != StateCompleted {
			continue
		}
		current, ok := latest[j.jobType]
		if !ok || j.finishedAt.After(current.finishedAt) {
			latest[j.jobType] = j
		}
	}
	results := make(map[analyzer.Type]*analyzer.Result, len(latest))
	for t, j := range latest {
		results[t] = j.result
	}
	return results
}
