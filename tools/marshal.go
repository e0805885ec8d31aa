package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// MarshalOutput renders a tool record as indented JSON for the text content
// block. Strings are passed through unchanged.
func MarshalOutput(logger *slog.Logger, o any) string {
	if str, ok := o.(string); ok {
		return str
	}

	outputBytes, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		logger.Error("Error marshalling output",
			"error", err,
			"type", fmt.Sprintf("%T", o),
			"value", fmt.Sprintf("%+v", o))
		return ""
	}

	return string(outputBytes)
}
