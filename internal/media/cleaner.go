package media

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// CleanerConfig controls the concurrency characteristics of the cleaner.
type CleanerConfig struct {
	QueueSize     int
	Workers       int
	DeleteTimeout time.Duration
}

// Cleaner deletes replaced blobs in the background so requests never wait on the blob store.
type Cleaner struct {
	store   BlobStore
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan string
	wg     sync.WaitGroup
}

var (
	// ErrCleanerClosed is returned by Enqueue after Shutdown.
	ErrCleanerClosed = errors.New("media cleaner closed")
	// ErrCleanerBusy is returned by Enqueue when the queue is full. The blob is left in place.
	ErrCleanerBusy = errors.New("media cleaner queue full")
)

// NewCleaner starts the worker pool.
func NewCleaner(store BlobStore, cfg CleanerConfig, logger *slog.Logger) *Cleaner {
	if store == nil {
		panic("media: blob store must not be nil")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.DeleteTimeout <= 0 {
		cfg.DeleteTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cleaner{
		store:   store,
		logger:  logger,
		timeout: cfg.DeleteTimeout,
		jobs:    make(chan string, cfg.QueueSize),
	}

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}

	return c
}

// Enqueue schedules deletion of location without waiting for queue space. Empty locations are ignored.
func (c *Cleaner) Enqueue(ctx context.Context, location string) error {
	if location == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The read lock keeps Shutdown from closing jobs while a send is pending.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrCleanerClosed
	}

	select {
	case c.jobs <- location:
		return nil
	default:
		return ErrCleanerBusy
	}
}

// Shutdown stops accepting work and waits for queued deletions to finish.
func (c *Cleaner) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.jobs)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *Cleaner) worker() {
	defer c.wg.Done()

	for location := range c.jobs {
		c.delete(location)
	}
}

func (c *Cleaner) delete(location string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.store.Delete(ctx, location); err != nil {
		c.logger.Error("delete replaced blob", "location", location, "error", err)
		return
	}
	c.logger.Debug("deleted replaced blob", "location", location)
}
