package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehranjanati/saas-backend/internal/orders"
	"github.com/mehranjanati/saas-backend/pkg/models"
)

const createOrderMutation = `
	mutation CreateOrder($input: orders_insert_input!) {
		insert_orders_one(object: $input) {
			id
			status
			created_at
		}
	}
`

const getOrdersQuery = `
	query GetOrders {
		orders {
			id
			status
			user_id
			details
			created_at
		}
	}
`

// orderProcessWorkflowID is the automation workflow notified on submission.
const orderProcessWorkflowID = "order-process"

func (s *Server) hasuraHeaders(c *gin.Context) map[string]string {
	return map[string]string{
		"x-hasura-role":    c.GetString("role"),
		"x-hasura-user-id": c.GetString("userID"),
	}
}

// createOrder accepts an order, persists it through the remote mutation,
// enqueues the local processing pipeline and notifies the automation engine.
// Submission always succeeds synchronously; remote persistence, cache
// invalidation and the workflow trigger are all best-effort background work.
func (s *Server) createOrder(c *gin.Context) {
	userID := c.GetString("userID")

	var payload models.OrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid order payload: %v", err)})
		return
	}
	payload.UserID = userID

	headers := s.hasuraHeaders(c)
	variables := map[string]any{
		"input": map[string]any{
			"user_id": userID,
			"details": payload,
		},
	}

	start := time.Now()
	if _, err := s.executor.Execute(c.Request.Context(), createOrderMutation, variables, headers); err != nil {
		// The local pipeline still runs; the remote record catches up on the
		// next sync.
		s.logger.Warn("remote order persistence failed", zap.Error(err))
	} else {
		s.logger.Debug("mutation executed", zap.Duration("took", time.Since(start)))
	}

	orderID := s.orders.Submit(payload)

	// Stale list reads for this user are now invalid.
	pattern := fmt.Sprintf("get_orders:*:%s", userID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _ = s.store.InvalidateByPattern(ctx, pattern)
	}()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.workflow.Trigger(ctx, orderProcessWorkflowID, map[string]any{
			"order_id": orderID,
			"user_id":  userID,
			"total":    payload.Total,
		})
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success":  true,
		"message":  "Order received and processing started",
		"order_id": orderID,
	})
}

// listOrders serves the user's orders with the cache-aside pattern: check the
// cache, fall back to the remote query on a miss, then populate the cache.
func (s *Server) listOrders(c *gin.Context) {
	userID := c.GetString("userID")
	queryName := "get_orders"

	key, keyErr := s.store.ComputeKey(queryName, nil, userID)
	if keyErr == nil {
		if cached, ok := s.store.Get(c.Request.Context(), queryName, key); ok {
			s.logger.Debug("returning cached orders", zap.String("key", key))
			c.Data(http.StatusOK, "application/json", cached)
			return
		}
	}

	result, err := s.executor.Execute(c.Request.Context(), getOrdersQuery, nil, s.hasuraHeaders(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("failed to fetch orders: %v", err)})
		return
	}

	if keyErr == nil {
		s.store.Set(c.Request.Context(), queryName, key, result, s.cfg.Cache.TTL)
	}
	c.Data(http.StatusOK, "application/json", result)
}

// getOrderStatus returns the current pipeline state of an order.
func (s *Server) getOrderStatus(c *gin.Context) {
	orderID := c.Param("id")

	record, err := s.orders.GetStatus(orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Order %s not found", orderID)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"order_id":   record.OrderID,
		"status":     record.Status,
		"created_at": record.CreatedAt,
		"updated_at": record.UpdatedAt,
	})
}

// getOrderHistory returns the full record including the transition history.
func (s *Server) getOrderHistory(c *gin.Context) {
	orderID := c.Param("id")

	record, err := s.orders.GetStatus(orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Order %s not found", orderID)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// cancelOrder transitions a non-terminal order to cancelled.
func (s *Server) cancelOrder(c *gin.Context) {
	orderID := c.Param("id")

	var req cancelOrderRequest
	_ = c.ShouldBindJSON(&req)

	if err := s.orders.Cancel(orderID, req.Reason); err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Order %s not found", orderID)})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Order cancelled",
		"order_id": orderID,
	})
}
