package tool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/domain"
)

type staticTool struct {
	name   string
	schema json.RawMessage
	result *domain.ToolResult
}

func (s *staticTool) Name() string        { return s.name }
func (s *staticTool) Description() string { return "static test tool" }
func (s *staticTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: s.name, Description: s.Description(), Parameters: s.schema}
}
func (s *staticTool) Execute(_ context.Context, _ json.RawMessage) (*domain.ToolResult, error) {
	return s.result, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&staticTool{name: "alpha"}))

	got, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name())
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&staticTool{name: "alpha"}))
	assert.Error(t, r.Register(&staticTool{name: "alpha"}))
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrToolNotFound))
}

func TestRegistrySchemas(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&staticTool{name: "alpha"}))
	require.NoError(t, r.Register(&staticTool{name: "beta"}))

	schemas := r.Schemas()
	assert.Len(t, schemas, 2)
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&staticTool{name: "alpha"}))
	require.NoError(t, r.Register(&staticTool{name: "beta"}))

	var names []string
	for _, tl := range r.List() {
		names = append(names, tl.Name())
	}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
}

func TestRegistryWrapsWithSchemaValidation(t *testing.T) {
	r := NewRegistry(slog.Default())
	schema := json.RawMessage(`{"type":"object","properties":{"x":{"type":"string"}},"required":["x"]}`)
	require.NoError(t, r.Register(&staticTool{
		name:   "strict",
		schema: schema,
		result: TextResult("ok"),
	}))

	got, err := r.Get("strict")
	require.NoError(t, err)

	// Missing required field is rejected before the tool runs.
	res, err := got.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "schema validation failed")

	res, err = got.Execute(context.Background(), json.RawMessage(`{"x":"1"}`))
	require.NoError(t, err)
	assert.False(t, res.IsError)
}
