package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"taskpilot/internal/domain"
	"taskpilot/internal/infra/tracer"
)

const dueOnLayout = "2006-01-02"

// TaskBackend abstracts the Asana task API.
type TaskBackend interface {
	CreateTask(ctx context.Context, req domain.CreateTaskRequest) (*domain.Task, error)
}

// MockTaskBackend records created tasks in memory, for testing/development.
type MockTaskBackend struct {
	Created []domain.CreateTaskRequest
	Err     error
}

func (m *MockTaskBackend) CreateTask(_ context.Context, req domain.CreateTaskRequest) (*domain.Task, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Created = append(m.Created, req)
	return &domain.Task{GID: "mock-1", Name: req.Name, DueOn: req.DueOn}, nil
}

// AsanaTaskTool lets the LLM create tasks in the configured Asana project.
type AsanaTaskTool struct {
	backend   TaskBackend
	projectID func() string
	now       func() time.Time
	logger    *slog.Logger
}

// NewAsanaTaskTool creates the task creation tool. projectID is re-evaluated
// on every call so late configuration (or a changed env var) takes effect
// without a restart.
func NewAsanaTaskTool(backend TaskBackend, projectID func() string, logger *slog.Logger) *AsanaTaskTool {
	return &AsanaTaskTool{
		backend:   backend,
		projectID: projectID,
		now:       time.Now,
		logger:    logger,
	}
}

func (t *AsanaTaskTool) Name() string { return "create_asana_task" }

func (t *AsanaTaskTool) Description() string {
	return "Creates a task in Asana given the name of the task and when it is due"
}

func (t *AsanaTaskTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"task_name": {
					"type": "string",
					"description": "The name of the task in Asana"
				},
				"due_on": {
					"type": "string",
					"description": "The date the task is due in the format YYYY-MM-DD. If not given, the current day is used"
				}
			},
			"required": ["task_name"]
		}`),
	}
}

type createTaskParams struct {
	TaskName string `json:"task_name"`
	DueOn    string `json:"due_on,omitempty"`
}

func (t *AsanaTaskTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.create_asana_task", t.logger, params,
		func(ctx context.Context, span trace.Span, p createTaskParams) (any, error) {
			name := strings.TrimSpace(p.TaskName)
			if err := RequireField("task_name", name); err != nil {
				return ErrResult("%v", err)
			}

			dueOn, err := t.resolveDueOn(p.DueOn)
			if err != nil {
				return ErrResult("invalid due_on %q: want YYYY-MM-DD or \"today\"", p.DueOn)
			}

			projectID := t.projectID()
			if projectID == "" {
				return nil, domain.NewDomainError("Tool.Execute", domain.ErrMissingProject,
					"set ASANA_PROJECT_ID or asana.project_id")
			}

			span.SetAttributes(
				tracer.StringAttr("asana.project_id", projectID),
				tracer.StringAttr("asana.due_on", dueOn),
			)

			task, err := t.backend.CreateTask(ctx, domain.CreateTaskRequest{
				Name:      name,
				DueOn:     dueOn,
				ProjectID: projectID,
			})
			if err != nil {
				return nil, err
			}

			t.logger.Info("asana task created", "gid", task.GID, "name", task.Name)
			return JSONResult(task)
		})
}

// resolveDueOn maps the model-supplied due date to a concrete calendar date.
// Empty or "today" means the current local date; anything else must parse
// strictly as YYYY-MM-DD.
func (t *AsanaTaskTool) resolveDueOn(dueOn string) (string, error) {
	dueOn = strings.TrimSpace(dueOn)
	if dueOn == "" || strings.EqualFold(dueOn, "today") {
		return t.now().Format(dueOnLayout), nil
	}
	parsed, err := time.Parse(dueOnLayout, dueOn)
	if err != nil {
		return "", err
	}
	return parsed.Format(dueOnLayout), nil
}

var _ domain.Tool = (*AsanaTaskTool)(nil)
