package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/ganot/perfscan/internal/transport"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// toolError reports err as a tool-level error carrying the API error body.
func toolError(err error) *sdkmcp.CallToolResult {
	apiErr, _ := transport.MapError(err)
	data, mErr := json.Marshal(apiErr)
	if mErr != nil {
		data = []byte(apiErr.Error())
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}

// toolResult renders v as JSON text content.
func toolResult(v any) (*sdkmcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}

func errUnknownConfidence(v string) error {
	return fmt.Errorf("%w: unknown confidence %q", transport.ErrBadRequest, v)
}
