package mailer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/config"
	"LinkTrace-Backend/internal/repository"
)

// Job is one delivery unit: the message plus the tracking instance it was
// issued for, so a successful send can be marked on the instance.
type Job struct {
	Message    *Message
	InstanceID int64
}

// Dispatcher delivers email jobs asynchronously with retry and graceful
// shutdown.
type Dispatcher struct {
	cfg      config.Mailer
	sender   Sender
	storage  repository.Storage
	log      *zap.Logger
	jobQueue chan *Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
}

// NewDispatcher creates a dispatcher over the given sender and storage.
func NewDispatcher(cfg config.Mailer, sender Sender, storage repository.Storage, log *zap.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		cfg:      cfg,
		sender:   sender,
		storage:  storage,
		log:      log,
		jobQueue: make(chan *Job, cfg.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("dispatcher already started")
	}

	d.log.Info("starting mail dispatcher",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("buffer_size", d.cfg.BufferSize),
		zap.Int("retry_attempts", d.cfg.RetryAttempts),
	)

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.started = true
	return nil
}

// Stop gracefully shuts the dispatcher down, waiting for in-flight jobs up
// to the configured timeout.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return fmt.Errorf("dispatcher not started")
	}

	d.log.Info("stopping mail dispatcher")

	d.cancel()
	close(d.jobQueue)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info("mail dispatcher stopped gracefully")
	case <-time.After(d.cfg.ShutdownTimeout):
		d.log.Warn("mail dispatcher shutdown timeout reached")
		return fmt.Errorf("shutdown timeout reached")
	}

	d.started = false
	return nil
}

// Submit queues a job for delivery. A full queue is reported to the caller
// instead of blocking the submitting request.
func (d *Dispatcher) Submit(job *Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.started {
		return fmt.Errorf("dispatcher not started")
	}

	select {
	case d.jobQueue <- job:
		d.log.Debug("email job submitted", zap.String("to", job.Message.To))
		return nil
	case <-d.ctx.Done():
		return fmt.Errorf("dispatcher is shutting down")
	default:
		d.log.Error("mail queue is full, dropping job",
			zap.String("to", job.Message.To),
			zap.Int("queue_size", len(d.jobQueue)),
		)
		return fmt.Errorf("mail queue is full")
	}
}

func (d *Dispatcher) worker(workerID int) {
	defer d.wg.Done()

	log := d.log.With(zap.Int("worker_id", workerID))
	log.Info("mail worker started")

	for {
		select {
		case job := <-d.jobQueue:
			if job == nil {
				log.Info("mail worker stopped")
				return
			}
			d.deliverWithRetry(log, job)

		case <-d.ctx.Done():
			log.Info("mail worker received shutdown signal")
			return
		}
	}
}

// deliverWithRetry sends one job, retrying with exponential backoff.
func (d *Dispatcher) deliverWithRetry(log *zap.Logger, job *Job) {
	var lastErr error

	for attempt := 1; attempt <= d.cfg.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
		err := d.deliver(ctx, job)
		cancel()

		if err == nil {
			if attempt > 1 {
				log.Info("email delivery succeeded after retry",
					zap.String("to", job.Message.To),
					zap.Int("attempt", attempt),
				)
			}
			return
		}

		lastErr = err
		log.Warn("email delivery failed",
			zap.String("to", job.Message.To),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", d.cfg.RetryAttempts),
			zap.Error(err),
		)

		if attempt == d.cfg.RetryAttempts {
			break
		}

		delay := d.cfg.RetryDelay * time.Duration(1<<(attempt-1))

		select {
		case <-time.After(delay):
		case <-d.ctx.Done():
			log.Info("worker shutdown during retry delay")
			return
		}
	}

	log.Error("email delivery failed after all retries",
		zap.String("to", job.Message.To),
		zap.Int("attempts", d.cfg.RetryAttempts),
		zap.Error(lastErr),
	)
}

// deliver sends a single job and marks the instance notified on success.
func (d *Dispatcher) deliver(ctx context.Context, job *Job) error {
	if err := d.sender.Send(ctx, job.Message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	if err := d.storage.MarkNotified(ctx, job.InstanceID, time.Now().UTC()); err != nil {
		// The email is out; a failed bookkeeping write must not trigger a
		// duplicate send through the retry loop.
		d.log.Error("failed to mark instance notified",
			zap.Int64("instance_id", job.InstanceID),
			zap.Error(err))
	}

	return nil
}

// Stats returns queue statistics for the health endpoint.
func (d *Dispatcher) Stats() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return map[string]interface{}{
		"started":        d.started,
		"queue_length":   len(d.jobQueue),
		"queue_capacity": cap(d.jobQueue),
		"worker_count":   d.cfg.Workers,
		"retry_attempts": d.cfg.RetryAttempts,
	}
}
