package kit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoReq struct {
	Word string `json:"word"`
}

func TestRegisterMCPTool(t *testing.T) {
	var transport, reqID string
	ep := func(ctx context.Context, req any) (any, error) {
		transport, reqID = GetTransport(ctx), GetRequestID(ctx)
		r := req.(*echoReq)
		if r.Word == "boom" {
			return nil, errors.New("boom refused")
		}
		return map[string]string{"echo": r.Word}, nil
	}

	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	RegisterMCPTool(srv, &mcp.Tool{
		Name: "echo",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"word": map[string]any{"type": "string"}},
		},
	}, ep, DecodeArgs[echoReq]())

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	call := func(args any) *mcp.CallToolResult {
		t.Helper()
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: args})
		if err != nil {
			t.Fatalf("CallTool: %v", err)
		}
		return res
	}
	text := func(res *mcp.CallToolResult) string {
		t.Helper()
		tc, ok := res.Content[0].(*mcp.TextContent)
		if !ok {
			t.Fatalf("content %T", res.Content[0])
		}
		return tc.Text
	}

	res := call(map[string]any{"word": "hi"})
	if res.IsError || text(res) != `{"echo":"hi"}` {
		t.Errorf("echo: %v %s", res.IsError, text(res))
	}
	if transport != TransportMCP || !strings.HasPrefix(reqID, "mcp_") {
		t.Errorf("context: transport %q request id %q", transport, reqID)
	}
	first := reqID

	res = call(map[string]any{})
	if res.IsError || text(res) != `{"echo":""}` {
		t.Errorf("no args: %v %s", res.IsError, text(res))
	}
	if reqID == first {
		t.Error("request id reused across calls")
	}

	res = call(map[string]any{"word": "boom"})
	if !res.IsError || !strings.Contains(text(res), "boom refused") {
		t.Errorf("endpoint error: %v %s", res.IsError, text(res))
	}
}
