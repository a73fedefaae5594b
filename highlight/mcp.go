// CLAUDE:SUMMARY Registers the webnote MCP tools: open page, list, highlight by quote, delete, recolor, note, export, pages, restore runs.
package highlight

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webnote/kit"
)

// RegisterMCP registers the webnote tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerOpenPageTool(srv)
	s.registerListTool(srv)
	s.registerPagesTool(srv)
	s.registerHighlightTool(srv)
	s.registerDeleteTool(srv)
	s.registerRecolorTool(srv)
	s.registerUpdateNoteTool(srv)
	s.registerExportTool(srv)
	s.registerRestoreRunsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (s *Service) addTool(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode kit.MCPDecode) {
	kit.RegisterMCPTool(srv, tool, kit.Logging(s.logger, tool.Name)(endpoint), decode)
}

var (
	urlProp   = map[string]any{"type": "string", "description": "Page URL (http(s) or file://)"}
	idProp    = map[string]any{"type": "string", "description": "Highlight ID"}
	colorProp = map[string]any{"type": "string", "enum": []any{"yellow", "green", "blue", "pink", "purple"}, "description": "Highlight color"}
)

// --- open_page ---

type openPageResponse struct {
	Page       PageRecord    `json:"page"`
	Report     RestoreReport `json:"report"`
	Highlights []Summary     `json:"highlights"`
}

func (s *Service) registerOpenPageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webnote_open_page",
		Description: "Load a page from a path or URL and restore its stored highlights. Reports how many were placed and by which strategy.",
		InputSchema: inputSchema(map[string]any{
			"source": map[string]any{"type": "string", "description": "Local path, file:// URL or http(s) URL"},
		}, []string{"source"}),
	}

	type openReq struct {
		Source string `json:"source"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*openReq)
		p, rep, err := s.OpenPage(ctx, r.Source)
		if err != nil {
			return nil, err
		}
		return &openPageResponse{Page: p.Info(), Report: rep, Highlights: p.Summaries()}, nil
	}

	s.addTool(srv, tool, endpoint, kit.DecodeArgs[openReq]())
}

// --- list ---

type urlRequest struct {
	URL string `json:"url"`
}

func (s *Service) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webnote_list",
		Description: "List the highlights of a page, newest first, with text shortened to 100 characters.",
		InputSchema: inputSchema(map[string]any{"url": urlProp}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*urlRequest)
		return s.Summaries(ctx, r.URL)
	}

	s.addTool(srv, tool, endpoint, kit.DecodeArgs[urlRequest]())
}

// --- pages ---

func (s *Service) registerPagesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webnote_pages",
		Description: "List pages that hold highlights, most recently modified first.",
		InputSchema: inputSchema(map[string]any{
			"match": map[string]any{"type": "string", "description": "Optional URL glob, e.g. https://example.com/**"},
		}, nil),
	}

	type pagesReq struct {
		Match string `json:"match"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*pagesReq)
		return s.ListPages(ctx, r.Match)
	}

	s.addTool(srv, tool, endpoint, kit.DecodeArgs[pagesReq]())
}

// --- highlight ---

func (s *Service) registerHighlightTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webnote_highlight",
		Description: "Highlight the first occurrence of a quote on an open page (case-insensitive). Use prefix to pick a later occurrence.",
		InputSchema: inputSchema(map[string]any{
			"url":    urlProp,
			"quote":  map[string]any{"type": "string", "description": "Text to highlight"},
			"prefix": map[string]any{"type": "string", "description": "Text directly preceding the quote"},
			"color":  colorProp,
		}, []string{"url", "quote"}),
	}

	type highlightReq struct {
		URL    string `json:"url"`
		Quote  string `json:"quote"`
		Prefix string `json:"prefix,omitempty"`
		Color  string `json:"color,omitempty"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*highlightReq)
		return s.Highlight(ctx, r.URL, r.Quote, r.Prefix, r.Color)
	}

	s.addTool(srv, tool, endpoint, kit.DecodeArgs[highlightReq]())
}

// --- delete ---

type idRequest struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

func (s *Service) registerDeleteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webnote_delete",
		Description: "Delete a highlight. Its markers are removed from the open page.",
		InputSchema: inputSchema(map[string]any{"url": urlProp, "id": idProp}, []string{"url", "id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*idRequest)
		ok, err := s.DeleteAnnotation(ctx, r.URL, r.ID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": ok, "id": r.ID}, nil
	}

	s.addTool(srv, tool, endpoint, kit.DecodeArgs[idRequest]())
}

// --- recolor ---

func (s *Service) registerRecolorTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webnote_recolor",
		Description: "Change the color of a highlight.",
		InputSchema: inputSchema(map[string]any{"url": urlProp, "id": idProp, "color": colorProp}, []string{"url", "id", "color"}),
	}

	type recolorReq struct {
		URL   string `json:"url"`
		ID    string `json:"id"`
		Color string `json:"color"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*recolorReq)
		ok, err := s.Recolor(ctx, r.URL, r.ID, r.Color)
		if err != nil {
			return nil, err
		}
		return map[string]any{"updated": ok, "id": r.ID, "color": r.Color}, nil
	}

	s.addTool(srv, tool, endpoint, kit.DecodeArgs[recolorReq]())
}

// --- update_note ---

func (s *Service) registerUpdateNoteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webnote_update_note",
		Description: "Set the note attached to a highlight. Markup is stripped.",
		InputSchema: inputSchema(map[string]any{
			"url":  urlProp,
			"id":   idProp,
			"note": map[string]any{"type": "string", "description": "Note text"},
		}, []string{"url", "id", "note"}),
	}

	type noteReq struct {
		URL  string `json:"url"`
		ID   string `json:"id"`
		Note string `json:"note"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*noteReq)
		return s.UpdateNote(ctx, r.URL, r.ID, r.Note)
	}

	s.addTool(srv, tool, endpoint, kit.DecodeArgs[noteReq]())
}

// --- export ---

func (s *Service) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webnote_export",
		Description: "Export as Markdown: 'digest' lists the highlights with notes, 'page' renders the open page with highlights in bold.",
		InputSchema: inputSchema(map[string]any{
			"url":    urlProp,
			"format": map[string]any{"type": "string", "enum": []any{"digest", "page"}, "description": "Export format (default: digest)"},
		}, []string{"url"}),
	}

	type exportReq struct {
		URL    string `json:"url"`
		Format string `json:"format,omitempty"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*exportReq)
		var md string
		var err error
		if r.Format == "page" {
			md, err = s.ExportMarkdown(r.URL)
		} else {
			md, err = s.ExportDigest(ctx, r.URL)
		}
		if err != nil {
			return nil, err
		}
		return map[string]string{"markdown": md}, nil
	}

	s.addTool(srv, tool, endpoint, kit.DecodeArgs[exportReq]())
}

// --- restore_runs ---

func (s *Service) registerRestoreRunsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "webnote_restore_runs",
		Description: "Show the latest restore runs of a page: how many highlights were placed, by which strategy, and which failed.",
		InputSchema: inputSchema(map[string]any{
			"url":   urlProp,
			"limit": map[string]any{"type": "integer", "description": "Max runs (default 20)"},
		}, []string{"url"}),
	}

	type runsReq struct {
		URL   string `json:"url"`
		Limit int    `json:"limit,omitempty"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*runsReq)
		return s.RestoreRuns(ctx, r.URL, r.Limit)
	}

	s.addTool(srv, tool, endpoint, kit.DecodeArgs[runsReq]())
}
