package orders

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mehranjanati/saas-backend/pkg/models"
)

// ErrOrderNotFound is returned when an order id is unknown to the registry.
var ErrOrderNotFound = errors.New("orders: order not found")

// errHalted is returned by transitions against an order that already reached
// a terminal state; the pipeline stops silently when it sees it.
var errHalted = errors.New("orders: order already in terminal state")

// OrderService owns order lifecycle records and runs the asynchronous
// processing pipeline. Submission is synchronous; completion is observed via
// GetStatus polling.
type OrderService interface {
	Start() error
	Stop() error
	Submit(payload models.OrderPayload) string
	GetStatus(orderID string) (*models.OrderRecord, error)
	Cancel(orderID string, reason string) error
}

// Config carries the order service tuning knobs.
type Config struct {
	// Retention is how long terminal records are kept before the janitor
	// evicts them.
	Retention time.Duration
	// SweepInterval is how often the janitor runs.
	SweepInterval time.Duration
	// StageDelay simulates per-stage processing latency. Tests set it to 0.
	StageDelay time.Duration
}

// Service implements OrderService with an in-memory registry. Records are
// mutated only through updateStatus, which keeps the history append-only and
// its last entry equal to the current status.
type Service struct {
	logger *zap.Logger
	cfg    Config

	mu     sync.RWMutex
	orders map[string]*models.OrderRecord
	// runs tracks the current pipeline generation per order id. A pipeline
	// may only transition the record it was started for; a stale run whose
	// record was cancelled and replaced sees a newer generation and halts.
	runs map[string]uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewService creates the order service.
func NewService(logger *zap.Logger, cfg Config) (*Service, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	return &Service{
		logger: logger,
		cfg:    cfg,
		orders: make(map[string]*models.OrderRecord),
		runs:   make(map[string]uint64),
		stopCh: make(chan struct{}),
	}, nil
}

// Start launches the retention janitor.
func (s *Service) Start() error {
	s.wg.Add(1)
	go s.janitor()
	s.logger.Info("order service started",
		zap.Duration("retention", s.cfg.Retention),
		zap.Duration("sweep_interval", s.cfg.SweepInterval),
	)
	return nil
}

// Stop halts the janitor and waits for in-flight pipelines to finish.
func (s *Service) Stop() error {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("order service stopped")
	return nil
}

// Submit registers the order in pending state and enqueues the processing
// pipeline. It always succeeds and returns immediately; pipeline failures are
// only observable through GetStatus. When the caller supplies an id that
// already has a non-terminal record, no second pipeline is started.
func (s *Service) Submit(payload models.OrderPayload) string {
	orderID := payload.OrderID
	if orderID == "" {
		orderID = "ORD-" + uuid.NewString()
		payload.OrderID = orderID
	}

	now := time.Now()
	record := &models.OrderRecord{
		OrderID:   orderID,
		Payload:   payload,
		Status:    models.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		History: []models.OrderHistoryEntry{
			{Status: models.OrderStatusPending, Timestamp: now, Message: "Order received"},
		},
	}

	s.mu.Lock()
	if existing, ok := s.orders[orderID]; ok && !existing.Status.Terminal() {
		s.mu.Unlock()
		s.logger.Warn("order already in flight, ignoring resubmission",
			zap.String("order_id", orderID),
			zap.String("status", string(existing.Status)),
		)
		return orderID
	}
	s.orders[orderID] = record
	s.runs[orderID]++
	gen := s.runs[orderID]
	s.mu.Unlock()

	s.logger.Info("order received and queued for processing", zap.String("order_id", orderID))

	s.wg.Add(1)
	go s.process(orderID, gen, payload)

	return orderID
}

// GetStatus returns a point-in-time snapshot of an order record.
func (s *Service) GetStatus(orderID string) (*models.OrderRecord, error) {
	s.mu.RLock()
	record, ok := s.orders[orderID]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrOrderNotFound
	}
	snapshot := *record
	snapshot.History = make([]models.OrderHistoryEntry, len(record.History))
	copy(snapshot.History, record.History)
	s.mu.RUnlock()
	return &snapshot, nil
}

// Cancel transitions an order to cancelled. Only non-terminal orders can be
// cancelled; the pipeline notices the terminal state and halts at its next
// transition.
func (s *Service) Cancel(orderID string, reason string) error {
	if reason == "" {
		reason = "Order cancelled"
	}
	err := s.updateStatus(orderID, models.OrderStatusCancelled, reason)
	if errors.Is(err, errHalted) {
		return fmt.Errorf("orders: order %s already finished", orderID)
	}
	return err
}

// updateStatus appends a history entry and advances the order status on
// behalf of an external operation such as cancellation.
func (s *Service) updateStatus(orderID string, status models.OrderStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(orderID, status, message)
}

// transition is updateStatus for pipeline runs: a run whose generation no
// longer matches the registry's has been superseded and must not touch the
// record.
func (s *Service) transition(orderID string, gen uint64, status models.OrderStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[orderID] != gen {
		return errHalted
	}
	return s.updateLocked(orderID, status, message)
}

// updateLocked appends a history entry and advances the order status. It is
// the single mutation point for registry records; callers hold s.mu.
func (s *Service) updateLocked(orderID string, status models.OrderStatus, message string) error {
	record, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if record.Status.Terminal() {
		return errHalted
	}

	now := time.Now()
	record.Status = status
	record.UpdatedAt = now
	record.History = append(record.History, models.OrderHistoryEntry{
		Status:    status,
		Timestamp: now,
		Message:   message,
	})

	s.logger.Info("order status updated",
		zap.String("order_id", orderID),
		zap.String("status", string(status)),
		zap.String("message", message),
	)
	return nil
}

// janitor evicts terminal records older than the retention window.
func (s *Service) janitor() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	cutoff := time.Now().Add(-s.cfg.Retention)
	evicted := 0

	s.mu.Lock()
	for id, record := range s.orders {
		if record.Status.Terminal() && record.UpdatedAt.Before(cutoff) {
			delete(s.orders, id)
			delete(s.runs, id)
			evicted++
		}
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("evicted expired order records", zap.Int("count", evicted))
	}
}
