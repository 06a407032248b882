// Package template evaluates the expressions stored in function and condition nodes.
//
// Expressions are Go text/templates rendered against the workflow variables, so a
// workflow definition stays plain data. The rendered text is coerced back into a
// typed value (JSON object/array, number, bool or string).
package template

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	json "github.com/goccy/go-json"
)

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"rand": func(max int) int {
		if max <= 0 {
			return 0
		}
		num := make([]byte, 1)
		_, err := rand.Read(num)
		if err != nil {
			return 0
		}

		return int(num[0]) % max
	},
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"contains": func(s, substr string) bool {
		return strings.Contains(s, substr)
	},
}

// Data builds the template data for a set of workflow variables. Variables are
// reachable both at the top level ({{ .score }}) and under .vars / .variables.
func Data(variables map[string]any) map[string]any {
	data := make(map[string]any, len(variables)+2)
	for k, v := range variables {
		data[k] = v
	}

	data["vars"] = variables
	data["variables"] = variables

	return data
}

// RenderWithVariables renders expr against the workflow variables.
func RenderWithVariables(expr string, variables map[string]any) (any, error) {
	return Render(expr, Data(variables))
}

func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.New("expression").
		Option("missingkey=zero").
		Funcs(funcs).
		Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	// Try to parse as JSON if it looks like JSON
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// Truthy converts a rendered value to a boolean.
func Truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		// "<no value>" is what text/template prints for a missing key
		return v != "" && v != "<no value>"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return false
	}
}
