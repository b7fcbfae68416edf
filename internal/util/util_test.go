package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	Operation string   `json:"operation" description:"Operation" enum:"add,subtract"`
	A         float64  `json:"a" description:"First operand"`
	B         *float64 `json:"b" description:"Optional second operand"`
	Note      string   `json:"note,omitempty"`
	hidden    int      //nolint:unused
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleArgs{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "operation")
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "note")
	assert.NotContains(t, props, "hidden")

	op := props["operation"].(map[string]any)
	assert.Equal(t, "string", op["type"])
	assert.Equal(t, []any{"add", "subtract"}, op["enum"])
	assert.Equal(t, "Operation", op["description"])

	// Required excludes pointer and omitempty fields.
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"operation", "a"}, req)
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema(42)
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("You are {{.persona}}.", map[string]any{"persona": "a pirate"})
	require.NoError(t, err)
	assert.Equal(t, "You are a pirate.", out)

	// Fast path: no markers, vars ignored.
	out, err = RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	// Helper funcs.
	out, err = RenderTemplate(`{{default "assistant" .persona}}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "assistant", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
