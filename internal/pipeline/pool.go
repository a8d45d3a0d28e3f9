package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lectureqa/backend/internal/logger"
)

const (
	DefaultWorkerCount = 2
	DefaultJobTimeout  = 15 * time.Minute

	// queued jobs waiting for a worker; submissions beyond this are refused
	defaultQueueDepth = 64
)

// ErrQueueFull indicates the pipeline cannot accept more jobs right now
var ErrQueueFull = errors.New("job queue is full")

// ErrPoolStopped indicates the pool is not accepting jobs
var ErrPoolStopped = errors.New("worker pool is stopped")

// WorkerPool runs orchestrator jobs on a fixed set of workers. Jobs for
// different ids run concurrently; one job always runs on exactly one
// worker, which preserves the single-writer rule for status records.
type WorkerPool struct {
	orchestrator *Orchestrator
	workerCount  int
	jobTimeout   time.Duration
	jobs         chan *Job
	log          *logger.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	mu       sync.RWMutex
	running  bool
}

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	WorkerCount int
	JobTimeout  time.Duration
	QueueDepth  int
}

// NewWorkerPool creates a worker pool around an orchestrator
func NewWorkerPool(orchestrator *Orchestrator, config *WorkerPoolConfig) *WorkerPool {
	if config == nil {
		config = &WorkerPoolConfig{}
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}

	jobTimeout := config.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}

	queueDepth := config.QueueDepth
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}

	return &WorkerPool{
		orchestrator: orchestrator,
		workerCount:  workerCount,
		jobTimeout:   jobTimeout,
		jobs:         make(chan *Job, queueDepth),
		stopChan:     make(chan struct{}),
		log:          logger.WithComponent("pipeline"),
	}
}

// QueueLength reports the number of jobs waiting for a worker.
func (wp *WorkerPool) QueueLength() int {
	return len(wp.jobs)
}

// Start launches the worker pool
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return
	}

	wp.running = true
	wp.stopChan = make(chan struct{})

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.log.Info(context.Background(), "worker pool started", map[string]interface{}{
		"workers": wp.workerCount,
	})
}

// Stop gracefully stops the pool, waiting for in-flight jobs to finish
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return nil
	}
	wp.running = false
	close(wp.stopChan)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info(ctx, "worker pool stopped")
		return nil
	case <-ctx.Done():
		wp.log.Warn(ctx, "worker pool shutdown timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the pool is accepting jobs
func (wp *WorkerPool) IsRunning() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.running
}

// Enqueue hands a job to the pool without blocking the caller
func (wp *WorkerPool) Enqueue(job *Job) error {
	if !wp.IsRunning() {
		return ErrPoolStopped
	}

	select {
	case wp.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.stopChan:
			return
		case job := <-wp.jobs:
			wp.runJob(id, job)
		}
	}
}

func (wp *WorkerPool) runJob(workerID int, job *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), wp.jobTimeout)
	defer cancel()

	wp.log.Info(ctx, "worker picked up job", map[string]interface{}{
		"worker": workerID,
		"job_id": job.ID,
	})

	wp.orchestrator.Run(ctx, job)
}
