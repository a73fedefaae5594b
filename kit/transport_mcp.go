package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webnote/idgen"
)

// MCPDecode turns the raw tool arguments into the endpoint's request.
type MCPDecode func(*mcp.CallToolRequest) (any, error)

// DecodeArgs unmarshals the tool arguments into a fresh *T. A call without
// arguments yields a zero T.
func DecodeArgs[T any]() MCPDecode {
	return func(req *mcp.CallToolRequest) (any, error) {
		v := new(T)
		if args := req.Params.Arguments; len(args) > 0 && string(args) != "null" {
			if err := json.Unmarshal(args, v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
}

var mcpRequestID = idgen.Prefixed("mcp_", idgen.NanoID(12))

// RegisterMCPTool registers endpoint as an MCP tool. Decode and endpoint
// errors become tool errors, not protocol errors; the response is returned
// as JSON text. Every call is tagged with a fresh request id.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode MCPDecode) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in, err := decode(req)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		ctx = WithRequestID(WithTransport(ctx, TransportMCP), mcpRequestID())

		resp, err := endpoint(ctx, in)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
