package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"taskpilot/internal/domain"
	"taskpilot/internal/infra/config"
	"taskpilot/internal/infra/tracer"
)

// maxResponseBody is the maximum response body size we read from the Asana API.
const maxResponseBody = 1 * 1024 * 1024 // 1 MB

// Client talks to the Asana REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates an Asana API client. Requests are paced with a token
// bucket sized from cfg.MaxRequestsPerMinute to stay under Asana's quota.
func NewClient(cfg config.AsanaConfig, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://app.asana.com/api/1.0"
	}

	rpm := cfg.MaxRequestsPerMinute
	if rpm <= 0 {
		rpm = 150
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		token:   cfg.AccessToken,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rpm)/60.0, 5),
		logger:  logger,
	}
}

// Asana wire types. The API wraps every payload in a "data" envelope.

type createTaskBody struct {
	Data createTaskData `json:"data"`
}

type createTaskData struct {
	Name     string   `json:"name"`
	DueOn    string   `json:"due_on,omitempty"`
	Projects []string `json:"projects"`
}

type taskEnvelope struct {
	Data domain.Task `json:"data"`
}

type errorEnvelope struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// CreateTask creates a task in the project named by req.ProjectID.
func (c *Client) CreateTask(ctx context.Context, req domain.CreateTaskRequest) (*domain.Task, error) {
	ctx, span := tracer.StartSpan(ctx, "asana.create_task")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(createTaskBody{Data: createTaskData{
		Name:     req.Name,
		DueOn:    req.DueOn,
		Projects: []string{req.ProjectID},
	}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		err := mapHTTPError(httpResp.StatusCode, respBody)
		tracer.RecordError(span, err)
		return nil, err
	}

	var env taskEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	tracer.SetOK(span)
	c.logger.Debug("asana task created",
		"gid", env.Data.GID,
		"name", env.Data.Name,
		"due_on", env.Data.DueOn,
	)
	return &env.Data, nil
}

// mapHTTPError maps an Asana API status code + body to a domain error.
func mapHTTPError(statusCode int, body []byte) error {
	detail := fmt.Sprintf("asana API error %d", statusCode)

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Errors) > 0 {
		detail += ": " + env.Errors[0].Message
	} else if len(body) > 0 {
		detail += ": " + string(body)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimit, detail)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, detail)
	case statusCode >= 500:
		return fmt.Errorf("%w: %s", domain.ErrProviderError, detail)
	default:
		return fmt.Errorf("%s", detail)
	}
}
