package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Resyncer pushes locally pending documents to the remote store.
type Resyncer interface {
	ProcessPending(ctx context.Context) error
}

// ResyncProcessorConfig holds configuration for the resync processor
type ResyncProcessorConfig struct {
	// PollInterval is how often to check for pending documents (default: 30s)
	PollInterval time.Duration
}

// DefaultResyncProcessorConfig returns sensible defaults
func DefaultResyncProcessorConfig() ResyncProcessorConfig {
	return ResyncProcessorConfig{
		PollInterval: 30 * time.Second,
	}
}

// ResyncProcessor polls for pending documents. It backs up the AMQP
// consumer for messages that were lost or never published.
type ResyncProcessor struct {
	resyncer Resyncer
	config   ResyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewResyncProcessor creates a new resync processor
func NewResyncProcessor(resyncer Resyncer, config ResyncProcessorConfig) *ResyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultResyncProcessorConfig().PollInterval
	}
	return &ResyncProcessor{
		resyncer: resyncer,
		config:   config,
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *ResyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("resync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Resync processor started", "poll_interval", p.config.PollInterval)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ResyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Resync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Resync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ResyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ResyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.resyncer.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic resync failed", "error", err)
			}
		}
	}
}
