package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"taskpilot/internal/domain"
	"taskpilot/internal/infra/tracer"
)

// User-facing fallback replies. The conversation must survive provider and
// tool failures, so turn errors never propagate past RunTurn.
const (
	replyRequestFailed  = "I encountered an error while processing your request. Please try again."
	replyResponseFailed = "I encountered an error while processing the response."
)

// OrchestratorDeps holds injected dependencies for the orchestrator.
type OrchestratorDeps struct {
	LLM    domain.LLMProvider
	Tools  domain.ToolExecutor
	Logger *slog.Logger
}

// Orchestrator drives the two-phase tool-calling turn: first completion,
// sequential tool execution, then a closing completion that narrates the
// tool results back to the user.
type Orchestrator struct {
	deps OrchestratorDeps
}

// NewOrchestrator creates an orchestrator with the given dependencies.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// RunTurn processes one user message and returns the assistant's reply.
// The user message and the final assistant reply are appended to the
// session; intermediate tool-call traffic is recorded in between, in
// protocol order. Failures are logged and turned into a fallback reply.
func (o *Orchestrator) RunTurn(ctx context.Context, session *Session, userMsg string) string {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.turn",
		trace.WithAttributes(tracer.StringAttr("session.id", session.ID)),
	)
	defer span.End()

	session.AddMessage(domain.Message{
		Role:    domain.RoleUser,
		Content: userMsg,
	})

	reply, err := o.runTurn(ctx, session)
	if err != nil {
		tracer.RecordError(span, err)
		o.deps.Logger.Error("turn failed",
			"session", session.ID,
			"code", domain.ErrorCodeOf(err),
			"error", err,
		)
		if errors.Is(err, domain.ErrFinalSynthesis) {
			reply = replyResponseFailed
		} else {
			reply = replyRequestFailed
		}
	} else {
		tracer.SetOK(span)
	}

	session.AddMessage(domain.Message{
		Role:    domain.RoleAssistant,
		Content: reply,
	})
	return reply
}

// runTurn executes the turn protocol and returns the raw reply text.
func (o *Orchestrator) runTurn(ctx context.Context, session *Session) (string, error) {
	resp, err := o.deps.LLM.Chat(ctx, domain.ChatRequest{
		Messages: session.Messages(),
		Tools:    o.deps.Tools.Schemas(),
	})
	if err != nil {
		return "", domain.WrapOp("first completion", err)
	}

	calls := resp.Message.ToolCalls
	if len(calls) == 0 {
		return resp.Message.Content, nil
	}

	// Record the assistant's tool-call message before any results so the
	// wire history stays valid for the second completion.
	session.AddMessage(domain.Message{
		Role:      domain.RoleAssistant,
		Content:   resp.Message.Content,
		ToolCalls: calls,
	})

	// Execute sequentially, preserving call order. A failed call produces
	// an error result message; the remaining calls still run.
	for _, call := range calls {
		session.AddMessage(o.executeTool(ctx, session.ID, call))
	}

	// Closing completion. Tools are withheld: the model is expected to
	// narrate results, not to start another round.
	final, err := o.deps.LLM.Chat(ctx, domain.ChatRequest{
		Messages: session.Messages(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFinalSynthesis, err)
	}
	if len(final.Message.ToolCalls) > 0 {
		return "", domain.NewDomainError("Orchestrator.RunTurn", domain.ErrFinalSynthesis,
			"model requested tools in the closing completion")
	}

	return final.Message.Content, nil
}

// executeTool runs a single tool call and returns the result as a Message.
// Lookup failures and execution failures both become tool messages so the
// model can see what went wrong.
func (o *Orchestrator) executeTool(ctx context.Context, sessionID string, call domain.ToolCall) domain.Message {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.execute_tool",
		trace.WithAttributes(
			tracer.StringAttr("tool.name", call.Name),
			tracer.StringAttr("session.id", sessionID),
		),
	)
	defer span.End()

	toolMsg := func(res domain.ToolResult) domain.Message {
		return domain.Message{
			Role:    domain.RoleTool,
			Name:    call.Name,
			Content: res.Content,
			ToolCalls: []domain.ToolCall{{
				ID:   res.ToolCallID,
				Name: call.Name,
			}},
			Timestamp: time.Now(),
		}
	}

	tool, err := o.deps.Tools.Get(call.Name)
	if err != nil {
		tracer.RecordError(span, err)
		o.deps.Logger.Warn("tool not found", "tool", call.Name, "session", sessionID)
		return toolMsg(domain.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true})
	}

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		tracer.RecordError(span, err)
		o.deps.Logger.Warn("tool execution failed",
			"tool", call.Name,
			"session", sessionID,
			"error", err,
		)
		return toolMsg(domain.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true})
	}

	result.ToolCallID = call.ID
	if result.IsError {
		span.SetAttributes(tracer.StringAttr("tool.outcome", "error"))
	} else {
		tracer.SetOK(span)
	}
	return toolMsg(*result)
}
