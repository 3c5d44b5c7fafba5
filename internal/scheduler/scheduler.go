package scheduler

import (
	"context"
	"errors"
	"expvar"
	"sync"
	"time"

	"github.com/YJChan/http-image-processor/internal/logger"
	"github.com/YJChan/http-image-processor/internal/pipeline"
)

// Errors returned at submission time
var (
	// ErrBusy means the queue was at capacity when the job was submitted.
	// The job was not queued; the caller may resubmit.
	ErrBusy = errors.New("scheduler queue is full")
	// ErrShutdown means the scheduler has been shut down
	ErrShutdown = errors.New("scheduler has been shut down")
)

// JobState is the lifecycle state of a submitted job.
type JobState string

// Job lifecycle states. The four terminal states are final: the scheduler
// never retries a job.
const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateTimedOut  JobState = "timedout"
	StateRejected  JobState = "rejected"
)

var (
	queueDepth  = expvar.NewInt("gauge_scheduler_queue_depth")
	jobsRunning = expvar.NewInt("gauge_scheduler_jobs_running")
	jobsTotal   = expvar.NewMap("counter_labelmap_state_scheduler_jobs_total")
)

// Handler runs one pipeline end to end.
type Handler func(ctx context.Context, req *pipeline.Request) ([]byte, error)

type job struct {
	req       *pipeline.Request
	state     JobState
	submitted time.Time
	result    chan jobResult
}

type jobResult struct {
	data []byte
	err  error
}

// Scheduler is a fixed pool of workers pulling jobs from a bounded queue.
// Submissions on a full queue are rejected immediately, which caps the total
// in-flight raster memory at (workers + queue depth) jobs.
type Scheduler struct {
	ctx        context.Context
	log        *logger.Logger
	jobs       chan *job
	workers    int
	jobTimeout time.Duration
	handler    Handler
}

// New creates a scheduler with the given worker count and queue depth.
// Workers run until ctx is canceled. Each job gets jobTimeout to finish,
// enforced cooperatively by the handler at its stage boundaries.
func New(ctx context.Context, log *logger.Logger, workers, depth int, jobTimeout time.Duration, handler Handler) *Scheduler {
	return &Scheduler{
		ctx:        ctx,
		log:        log,
		jobs:       make(chan *job, depth),
		workers:    workers,
		jobTimeout: jobTimeout,
		handler:    handler,
	}
}

// QueueDepth returns the number of jobs currently waiting for a worker.
func (s *Scheduler) QueueDepth() int {
	return len(s.jobs)
}

// Run starts the workers and blocks until the scheduler context is canceled
// and all workers have returned.
func (s *Scheduler) Run() {
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker()
		}()
	}

	wg.Wait()
}

func (s *Scheduler) worker() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case j := <-s.jobs:
			queueDepth.Add(-1)
			s.execute(j)
		}
	}
}

// Process submits a request and waits for its result. If the queue is full
// the request is rejected with ErrBusy without ever entering the queue.
// When ctx ends before the job finishes, Process stops waiting and returns,
// but the job itself is not interrupted.
func (s *Scheduler) Process(ctx context.Context, req *pipeline.Request) ([]byte, error) {
	if s.ctx.Err() != nil {
		return nil, ErrShutdown
	}

	j := &job{
		req:       req,
		state:     StateQueued,
		submitted: time.Now(),
		result:    make(chan jobResult, 1),
	}

	select {
	case s.jobs <- j:
		queueDepth.Add(1)
	default:
		j.state = StateRejected
		jobsTotal.Add(string(StateRejected), 1)
		return nil, ErrBusy
	}

	select {
	case result := <-j.result:
		return result.data, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, ErrShutdown
	}
}

func (s *Scheduler) execute(j *job) {
	j.state = StateRunning
	jobsRunning.Add(1)
	defer jobsRunning.Add(-1)

	jobCtx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()

	data, err := s.handler(jobCtx, j.req)

	state := StateCompleted
	switch {
	case errors.Is(err, pipeline.ErrTimeout):
		state = StateTimedOut
	case err != nil:
		state = StateFailed
	}

	j.state = state
	jobsTotal.Add(string(state), 1)

	if state == StateTimedOut {
		s.log.Warnw("job abandoned past its deadline",
			"queued-for", time.Since(j.submitted).String(),
			"timeout", s.jobTimeout.String(),
		)
	}

	// The result channel is buffered, so delivery never blocks the worker
	// even when the caller has stopped waiting.
	j.result <- jobResult{
		data: data,
		err:  err,
	}
}
