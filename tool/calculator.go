package tool

import (
	"context"
	"fmt"
	"math"
)

// Calculator is a built-in tool performing basic arithmetic. The model fills
// {operation, a, b}; b is unused for sqrt.
type Calculator struct{}

// NewCalculator creates the calculator tool.
func NewCalculator() *Calculator { return &Calculator{} }

// Name implements Tool.
func (t *Calculator) Name() string { return "calculator" }

// Description implements Tool.
func (t *Calculator) Description() string {
	return "Perform basic math operations (add, subtract, multiply, divide, power, sqrt)"
}

// Parameters implements Tool.
func (t *Calculator) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation": map[string]interface{}{
				"type":        "string",
				"description": "Operation",
				"enum":        []string{"add", "subtract", "multiply", "divide", "power", "sqrt"},
			},
			"a": map[string]interface{}{
				"type":        "number",
				"description": "First number",
			},
			"b": map[string]interface{}{
				"type":        "number",
				"description": "Second number (required for add, subtract, multiply, divide, power; not used for sqrt)",
			},
		},
		"required": []string{"operation", "a"},
	}
}

// Call implements Tool.
func (t *Calculator) Call(_ context.Context, args map[string]interface{}) (interface{}, error) {
	op, _ := args["operation"].(string)
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)

	switch op {
	case "add":
		return a + b, nil
	case "subtract":
		return a - b, nil
	case "multiply":
		return a * b, nil
	case "divide":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case "power":
		return math.Pow(a, b), nil
	case "sqrt":
		if a < 0 {
			return nil, fmt.Errorf("sqrt of negative number")
		}
		return math.Sqrt(a), nil
	}
	return nil, fmt.Errorf("unsupported operation %q", op)
}
