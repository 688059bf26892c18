package tool_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/acontext/pkg/store"
	"github.com/nextlevelbuilder/acontext/pkg/tool"
)

type echoArgs struct {
	Text string `json:"text" jsonschema:"required"`
}

func TestExecuteRunsRegisteredTool(t *testing.T) {
	pool := tool.NewPool()
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "echo", Description: "echoes text"},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args echoArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			return args.Text, nil
		},
	})

	raw, err := json.Marshal(echoArgs{Text: "hello"})
	require.NoError(t, err)

	result, err := pool.Execute(context.Background(), tool.Call{Name: "echo", Arguments: string(raw)})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "hello", result.Content)
}

func TestExecuteUnknownToolIsNonFatal(t *testing.T) {
	pool := tool.NewPool()
	result, err := pool.Execute(context.Background(), tool.Call{Name: "missing"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unknown tool")
}

func TestExecuteRecoversFromPanicByAborting(t *testing.T) {
	pool := tool.NewPool()
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "boom"},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			panic("kaboom")
		},
	})

	_, err := pool.Execute(context.Background(), tool.Call{Name: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestExecuteValidationErrorIsNonFatal(t *testing.T) {
	pool := tool.NewPool()
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "reject"},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			return "", fmt.Errorf("%w: bad order", store.ErrValidation)
		},
	})

	result, err := pool.Execute(context.Background(), tool.Call{Name: "reject"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "bad order")
}

func TestExecuteNotFoundErrorAborts(t *testing.T) {
	pool := tool.NewPool()
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "lookup"},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			return "", fmt.Errorf("%w: task missing", store.ErrNotFound)
		},
	})

	_, err := pool.Execute(context.Background(), tool.Call{Name: "lookup"})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSchemaForDerivesRequiredField(t *testing.T) {
	schema, err := tool.SchemaFor(&echoArgs{})
	require.NoError(t, err)
	assert.Contains(t, schema, `"text"`)
	assert.Contains(t, schema, "required")
}
