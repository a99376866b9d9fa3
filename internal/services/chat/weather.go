// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package chat

import (
	"encoding/json"
	"math/rand/v2"

	openai "github.com/sashabaranov/go-openai"
)

// weatherTool is the single declared tool capability. The lookup is
// synthetic and only illustrates the tool round-trip.
var weatherTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "weather",
		Description: "Get the weather in a location (fahrenheit)",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "The location to get the weather for",
				},
			},
			"required": []string{"location"},
		},
	},
}

type weatherArgs struct {
	Location string `json:"location"`
}

type weatherReport struct {
	Location    string `json:"location"`
	Temperature int    `json:"temperature"`
}

// execTool runs a requested tool call and returns its JSON result. Unknown
// tools and malformed arguments produce an error payload the model can
// recover from.
func execTool(call openai.ToolCall) string {
	if call.Function.Name != weatherTool.Function.Name {
		return `{"error":"unknown tool"}`
	}

	var args weatherArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args.Location == "" {
		return `{"error":"invalid tool arguments"}`
	}

	report := weatherReport{
		Location:    args.Location,
		Temperature: rand.IntN(59) + 32, // 32..90 °F
	}
	out, err := json.Marshal(report)
	if err != nil {
		return `{"error":"failed to encode tool result"}`
	}
	return string(out)
}
