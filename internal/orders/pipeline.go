package orders

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mehranjanati/saas-backend/pkg/metrics"
	"github.com/mehranjanati/saas-backend/pkg/models"
)

// process runs the validate → pay → finalize pipeline for one order. Stages
// execute strictly in sequence; any stage error converts into a Failed
// transition and the error text becomes the history note. Nothing here ever
// propagates back to the submitter.
func (s *Service) process(orderID string, gen uint64, payload models.OrderPayload) {
	defer s.wg.Done()
	start := time.Now()

	if err := s.transition(orderID, gen, models.OrderStatusProcessing, "Order processing started"); err != nil {
		// Cancelled before the pipeline started, or a programming error.
		if !errors.Is(err, errHalted) {
			s.logger.Error("pipeline could not start", zap.String("order_id", orderID), zap.Error(err))
		}
		return
	}

	stages := []struct {
		name string
		run  func(models.OrderPayload) error
		// note, when set, is appended to the history after the stage
		// succeeds so pollers can see intermediate progress.
		note string
	}{
		{name: "validate", run: s.validateItems},
		{name: "payment", run: s.processPayment, note: "Payment processed"},
		{name: "finalize", run: s.finalize},
	}

	for _, stage := range stages {
		if err := stage.run(payload); err != nil {
			msg := fmt.Sprintf("Error processing order %s: %s", orderID, err)
			s.logger.Error("order pipeline stage failed",
				zap.String("order_id", orderID),
				zap.String("stage", stage.name),
				zap.Error(err),
			)
			s.finish(orderID, gen, models.OrderStatusFailed, msg, start)
			return
		}
		if stage.note != "" {
			if err := s.transition(orderID, gen, models.OrderStatusProcessing, stage.note); err != nil {
				// The order was cancelled mid-pipeline; the cancellation stands.
				return
			}
		}
	}

	s.finish(orderID, gen, models.OrderStatusCompleted, "Order completed successfully", start)
	s.logger.Info("order processed successfully", zap.String("order_id", orderID))
}

func (s *Service) finish(orderID string, gen uint64, status models.OrderStatus, message string, start time.Time) {
	if err := s.transition(orderID, gen, status, message); err != nil {
		// The order was cancelled mid-pipeline; the cancellation stands.
		return
	}
	metrics.OrdersProcessed.WithLabelValues(string(status)).Inc()
	metrics.OrderPipelineDuration.Observe(time.Since(start).Seconds())
}

// validateItems rejects orders with an empty item list.
func (s *Service) validateItems(payload models.OrderPayload) error {
	if len(payload.Items) == 0 {
		return errors.New("order contains no items")
	}
	s.simulateWork()
	s.logger.Debug("order items validated", zap.Int("items", len(payload.Items)))
	return nil
}

// processPayment rejects orders whose declared total is not positive. An
// absent total counts as zero; the line items are not consulted.
func (s *Service) processPayment(payload models.OrderPayload) error {
	if payload.Total.Sign() <= 0 {
		return errors.New("order total must be greater than zero")
	}
	s.simulateWork()
	s.logger.Debug("order payment processed", zap.String("total", payload.Total.String()))
	return nil
}

// finalize has no modeled failure condition but is structurally allowed to
// fail like any other stage.
func (s *Service) finalize(payload models.OrderPayload) error {
	s.simulateWork()
	return nil
}

func (s *Service) simulateWork() {
	if s.cfg.StageDelay > 0 {
		time.Sleep(s.cfg.StageDelay)
	}
}
