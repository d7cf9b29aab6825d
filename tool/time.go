package tool

import (
	"fmt"
	"time"
)

// CurrentTimeToolName is the registered name of the clock tool.
const CurrentTimeToolName = "current_time"

// NewCurrentTimeTool returns a tool reporting the current date and time,
// optionally converted to a named IANA timezone. It has no side effects and
// needs no approval.
func NewCurrentTimeTool() *FunctionTool {
	return NewFunctionTool(
		CurrentTimeToolName,
		"Get the current date and time, optionally in a named IANA timezone",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA timezone name such as UTC or America/New_York. Defaults to UTC.",
				},
			},
			"additionalProperties": false,
		},
		func(tc *Context, args map[string]any) (any, error) {
			loc := time.UTC
			if name, ok := args["timezone"].(string); ok && name != "" {
				l, err := time.LoadLocation(name)
				if err != nil {
					return nil, NewToolError(CurrentTimeToolName,
						fmt.Sprintf("unknown timezone %q", name), CodeValidation)
				}
				loc = l
			}
			now := time.Now().In(loc)
			return map[string]any{
				"time":     now.Format(time.RFC3339),
				"timezone": loc.String(),
			}, nil
		},
	)
}
