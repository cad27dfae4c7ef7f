package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mehranjanati/saas-backend/pkg/metrics"
)

// Client talks to the workflow automation engine. Trigger failures are
// reported in the result, never escalated: order submission must not depend
// on the automation engine being up.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// TriggerResult is the outcome of a workflow trigger request.
type TriggerResult struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	WorkflowID  string          `json:"workflow_id,omitempty"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// ExecutionStatus is the state of a previously triggered workflow run.
type ExecutionStatus struct {
	Success  bool            `json:"success"`
	Status   string          `json:"status"`
	Finished bool            `json:"finished"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewClient creates a workflow trigger client.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Trigger posts data to the engine's webhook for the given workflow and
// returns the opaque execution identifier. A non-2xx response or transport
// error yields Success=false rather than an error.
func (c *Client) Trigger(ctx context.Context, workflowID string, data map[string]any) *TriggerResult {
	result := &TriggerResult{WorkflowID: workflowID}

	body, err := json.Marshal(data)
	if err != nil {
		result.Message = fmt.Sprintf("Error triggering workflow: %v", err)
		return result
	}

	url := fmt.Sprintf("%s/webhook/%s", c.baseURL, workflowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		result.Message = fmt.Sprintf("Error triggering workflow: %v", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-N8N-API-KEY", c.apiKey)
	}

	c.logger.Info("triggering workflow", zap.String("workflow_id", workflowID))

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.WorkflowTriggers.WithLabelValues("error").Inc()
		c.logger.Error("workflow trigger failed", zap.String("workflow_id", workflowID), zap.Error(err))
		result.Message = fmt.Sprintf("Error triggering workflow: %v", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.WorkflowTriggers.WithLabelValues("rejected").Inc()
		c.logger.Error("workflow trigger rejected",
			zap.String("workflow_id", workflowID),
			zap.Int("status", resp.StatusCode),
		)
		result.Message = fmt.Sprintf("Workflow execution failed with status code: %d", resp.StatusCode)
		return result
	}

	var payload struct {
		ExecutionID string          `json:"executionId"`
		Data        json.RawMessage `json:"data"`
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &payload)

	metrics.WorkflowTriggers.WithLabelValues("success").Inc()
	c.logger.Info("workflow executed successfully",
		zap.String("workflow_id", workflowID),
		zap.String("execution_id", payload.ExecutionID),
	)

	result.Success = true
	result.Message = "Workflow executed successfully"
	result.ExecutionID = payload.ExecutionID
	result.Data = payload.Data
	return result
}

// ExecutionStatus fetches the state of a workflow execution.
func (c *Client) ExecutionStatus(ctx context.Context, executionID string) (*ExecutionStatus, error) {
	url := fmt.Sprintf("%s/executions/%s", c.baseURL, executionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-N8N-API-KEY", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get execution status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Status   string          `json:"status"`
		Finished bool            `json:"finished"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &ExecutionStatus{
		Success:  true,
		Status:   payload.Status,
		Finished: payload.Finished,
		Data:     payload.Data,
	}, nil
}
