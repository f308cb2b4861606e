package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quakescope/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second
)

// Manager orchestrates worker goroutines that consume from Redis Streams.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	logger      *slog.Logger
	stream      string
	group       string
	workerCount int
	batchSize   int64
	blockTime   time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	Stream       string        // defaults to queue.StreamAlerts
	Group        string        // defaults to queue.ConsumerGroupAlerts
	WorkerCount  int           // Number of worker goroutines
	BatchSize    int64         // Messages per read
	BlockTimeout time.Duration // Block time for XREADGROUP
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Stream:       queue.StreamAlerts,
		Group:        queue.ConsumerGroupAlerts,
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

// NewManager creates a new worker manager.
func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.Stream == "" {
		cfg.Stream = queue.StreamAlerts
	}
	if cfg.Group == "" {
		cfg.Group = queue.ConsumerGroupAlerts
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		logger:      logger.With("component", "worker_manager"),
		stream:      cfg.Stream,
		group:       cfg.Group,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
	}
}

// Start begins the worker goroutines.
// Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, m.stream, m.group); err != nil {
		m.cancel()
		return err
	}

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, consumerNameForWorker(workerID))
	}

	m.logger.Info("workers started", "count", m.workerCount, "stream", m.stream, "group", m.group)
	return nil
}

// Stop gracefully shuts down all workers.
// Blocks until all workers have finished.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Info("all workers stopped")
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	log := m.logger.With("worker", workerID, "consumer", consumerName)

	// replay anything this consumer left unacknowledged before a restart
	m.processPending(log, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			log.Debug("worker shutting down")
			return
		default:
			m.processMessages(log, consumerName)
		}
	}
}

// processPending handles messages that were delivered but not acknowledged.
func (m *Manager) processPending(log *slog.Logger, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, m.stream, m.group, consumerName, m.batchSize)
		if err != nil {
			log.Error("read pending failed", "error", err)
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Info("processing pending messages", "count", len(messages))
		m.handleMessages(log, messages)
	}
}

// processMessages reads and handles a batch of messages.
func (m *Manager) processMessages(log *slog.Logger, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, m.stream, m.group, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Error("read failed", "error", err)
		// back off on error
		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}

	if len(messages) == 0 {
		return
	}
	m.handleMessages(log, messages)
}

// handleMessages processes a batch of messages and acknowledges them.
// Failed events are still acked so a poison event cannot loop.
func (m *Manager) handleMessages(log *slog.Logger, messages []queue.Message) {
	// acks must land even when Stop cancels mid-batch
	ackCtx := context.WithoutCancel(m.ctx)
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			log.Error("handler error", "msg_id", msg.ID, "type", msg.Event.Type, "error", err)
		}

		if err := m.consumer.Ack(ackCtx, m.stream, m.group, msg.ID); err != nil {
			log.Error("ack failed", "msg_id", msg.ID, "error", err)
		}
	}
}

// consumerNameForWorker generates a unique consumer name for each worker.
func consumerNameForWorker(workerID int) string {
	return fmt.Sprintf("worker-%d", workerID)
}
