package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type workflowTriggerRequest struct {
	WorkflowID string         `json:"workflow_id" binding:"required"`
	Data       map[string]any `json:"data"`
}

// triggerWorkflow forwards a trigger request to the automation engine and
// relays the outcome. Failures come back in the body, not as HTTP errors.
func (s *Server) triggerWorkflow(c *gin.Context) {
	var req workflowTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workflow_id required"})
		return
	}

	result := s.workflow.Trigger(c.Request.Context(), req.WorkflowID, req.Data)
	c.JSON(http.StatusOK, result)
}

// workflowExecutionStatus fetches the state of a triggered execution.
func (s *Server) workflowExecutionStatus(c *gin.Context) {
	executionID := c.Param("execution_id")

	status, err := s.workflow.ExecutionStatus(c.Request.Context(), executionID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

type workflowWebhookRequest struct {
	EventType string         `json:"event_type" binding:"required"`
	Payload   map[string]any `json:"payload"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// workflowWebhook receives event callbacks from the automation engine. The
// gateway only acknowledges them; downstream handling is keyed off the event
// type.
func (s *Server) workflowWebhook(c *gin.Context) {
	var req workflowWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_type required"})
		return
	}

	switch req.EventType {
	case "order_created", "payment_received":
		s.logger.Info("processing workflow event",
			zap.String("event_type", req.EventType),
		)
	default:
		s.logger.Warn("unknown workflow event type", zap.String("event_type", req.EventType))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Webhook processed for event: " + req.EventType,
	})
}
