// CLAUDE:SUMMARY CLI entry point for webnote: open a page and restore its highlights, edit them, export Markdown, serve the panel API and MCP tools.
// Command webnote anchors highlights to web pages and restores them on reload.
//
// Usage:
//
//	webnote -page https://example.com/post                  # restore and print the report
//	webnote -page post.html -highlight "some text" -color blue
//	webnote -page post.html -delete hl_123
//	webnote -page post.html -out marked.html                # write the page with markers
//	webnote -page post.html -markdown                       # page as Markdown, highlights in bold
//	webnote -list https://example.com/post                  # stored highlights for a URL
//	webnote -serve                                          # panel API on cfg.server.addr
//	webnote -mcp                                            # MCP tools over stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webnote/highlight"
	"github.com/hazyhaar/webnote/panelapi"
)

type options struct {
	page      string
	out       string
	markdown  bool
	highlight string
	prefix    string
	color     string
	delete    string
	list      string
	serve     bool
	mcp       bool
}

func main() {
	configPath := flag.String("config", "", "path to webnote.yaml config file")
	dbPath := flag.String("db", "", "database path (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")

	var o options
	flag.StringVar(&o.page, "page", "", "open a page (path, file:// or http(s) URL) and restore its highlights")
	flag.StringVar(&o.out, "out", "", "write the opened page with its markers to this file")
	flag.BoolVar(&o.markdown, "markdown", false, "print the opened page as Markdown")
	flag.StringVar(&o.highlight, "highlight", "", "highlight the first occurrence of this text on the opened page")
	flag.StringVar(&o.prefix, "prefix", "", "text that must precede -highlight")
	flag.StringVar(&o.color, "color", "", "highlight color: yellow, green, blue, pink, purple")
	flag.StringVar(&o.delete, "delete", "", "remove the highlight with this id from the opened page")
	flag.StringVar(&o.list, "list", "", "print the stored highlights of a URL")
	flag.BoolVar(&o.serve, "serve", false, "serve the panel HTTP API")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools over stdio")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &highlight.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = highlight.LoadConfigFile(*configPath); err != nil {
			logger.Error("webnote: config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	if err := run(ctx, logger, cfg, o); err != nil {
		logger.Error("webnote: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *highlight.Config, o options) error {
	svc, err := highlight.New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch {
	case o.serve || o.mcp:
		return serve(ctx, logger, svc, o)
	case o.list != "":
		sums, err := svc.Summaries(ctx, o.list)
		if err != nil {
			return err
		}
		return printJSON(sums)
	case o.page != "":
		return runPage(ctx, svc, o)
	}
	flag.Usage()
	return errors.New("nothing to do: pass -page, -list, -serve or -mcp")
}

func runPage(ctx context.Context, svc *highlight.Service, o options) error {
	p, rep, err := svc.OpenPage(ctx, o.page)
	if err != nil {
		return err
	}
	url := p.Info().URL

	switch {
	case o.highlight != "":
		rec, err := svc.Highlight(ctx, url, o.highlight, o.prefix, o.color)
		if err != nil {
			return err
		}
		if err := printJSON(rec); err != nil {
			return err
		}
	case o.delete != "":
		ok, err := svc.DeleteAnnotation(ctx, url, o.delete)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", highlight.ErrNotFound, o.delete)
		}
	case !o.markdown && o.out == "":
		return printJSON(rep)
	}

	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		if err := p.Render(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if o.markdown {
		md, err := svc.ExportMarkdown(url)
		if err != nil {
			return err
		}
		fmt.Print(md)
	}
	return nil
}

func serve(ctx context.Context, logger *slog.Logger, svc *highlight.Service, o options) error {
	go svc.Watch(ctx)

	cfg := svc.Config()
	errc := make(chan error, 2)

	if o.serve {
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           panelapi.New(svc, panelapi.WithLogger(logger), panelapi.WithMaxBody(cfg.Server.MaxBodyBytes)).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info("webnote: panel api listening", "addr", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if o.mcp {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "webnote", Version: "1.0.0"}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			logger.Info("webnote: mcp on stdio")
			errc <- mcpSrv.Run(ctx, &mcp.StdioTransport{})
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
