package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voyantlabs/codectx/internal/errors"
)

// jsonResult wraps a value as JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("response marshal failed: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

// errorResult reports a tool failure inside the result with IsError
// set, so the calling model sees the error and can self-correct. The
// payload carries the stable error code and any field details.
func errorResult(err error) (*mcp.CallToolResult, error) {
	payload := map[string]any{
		"code":    errors.KindOf(err).Code(),
		"message": err.Error(),
	}
	if details := errors.DetailsOf(err); len(details) > 0 {
		payload["details"] = details
	}
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		data = []byte(fmt.Sprintf(`{"code":"internal","message":%q}`, err.Error()))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: true,
	}, nil
}

// badArguments standardizes unmarshal failures.
func badArguments(tool string, err error) (*mcp.CallToolResult, error) {
	return errorResult(errors.InvalidRequestf("%s arguments are malformed: %v", tool, err))
}
