package importer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrQueueFull = errors.New("import queue full, please try again later")

// ProcessFunc runs one batch; the pool only logs its error.
type ProcessFunc func(ctx context.Context, batchID int64) error

type Worker struct {
	ID         int
	WorkerPool chan chan int64
	JobChannel chan int64
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan int64, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan int64),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, process ProcessFunc) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				return
			}

			select {
			case batchID := <-w.JobChannel:
				w.Logger.Debug("worker processing batch", "worker_id", w.ID, "batch_id", batchID)
				if err := process(ctx, batchID); err != nil {
					w.Logger.Warn("import batch processing failed", "worker_id", w.ID, "batch_id", batchID, "error", err)
				}
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// WorkerPool is the in-process Dispatcher: a bounded job queue drained by a fixed set of workers.
type WorkerPool struct {
	logger     *slog.Logger
	process    ProcessFunc
	jobQueue   chan int64
	workerPool chan chan int64
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewWorkerPool(workers, queueSize int, process ProcessFunc, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		logger:     logger,
		process:    process,
		jobQueue:   make(chan int64, queueSize),
		workerPool: make(chan chan int64, workers),
		maxWorkers: workers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *WorkerPool) Start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			NewWorker(i, p.workerPool, p.logger).Start(p.ctx, &p.wg, p.process)
		}
		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("import worker pool started", "max_workers", p.maxWorkers, "queue_size", cap(p.jobQueue))
	})
}

func (p *WorkerPool) dispatch() {
	defer p.wg.Done()
	for {
		select {
		case batchID := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- batchID:
				case <-p.ctx.Done():
					return
				}
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("import dispatcher shutting down")
			return
		}
	}
}

// Dispatch enqueues without blocking; a full queue is reported to the caller.
func (p *WorkerPool) Dispatch(_ context.Context, batchID int64) error {
	select {
	case p.jobQueue <- batchID:
		p.logger.Debug("import batch queued", "batch_id", batchID, "queue_length", len(p.jobQueue))
		return nil
	default:
		p.logger.Warn("import queue full", "batch_id", batchID, "queue_capacity", cap(p.jobQueue))
		return ErrQueueFull
	}
}

func (p *WorkerPool) Shutdown() {
	p.logger.Info("shutting down import worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("import worker pool shutdown complete")
}
