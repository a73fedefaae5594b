package pageload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrBrowserClosed is returned by Load after Close.
var ErrBrowserClosed = errors.New("pageload: browser is closed")

// signatureJS summarizes the live body cheaply enough to poll.
const signatureJS = `() => {
	const b = document.body;
	if (!b) return '';
	return b.getElementsByTagName('*').length + ':' + b.textContent.length;
}`

// Browser renders remote pages in Chrome through rod. Chrome is launched (or
// connected to) on first use and shared by subsequent loads.
type Browser struct {
	cfg    BrowserConfig
	stable StableConfig
	logger *slog.Logger

	mu     sync.Mutex
	b      *rod.Browser
	lnch   *launcher.Launcher
	closed bool
}

// NewBrowser creates a Browser. No Chrome process is started until Load.
func NewBrowser(cfg BrowserConfig, stable StableConfig, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	stable.defaults()
	return &Browser{cfg: cfg, stable: stable, logger: logger}
}

func (br *Browser) connect() (*rod.Browser, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	if br.closed {
		return nil, ErrBrowserClosed
	}
	if br.b != nil {
		return br.b, nil
	}

	wsURL := br.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("pageload: launch chrome: %w", err)
		}
		wsURL = u
		br.lnch = l
		br.logger.Info("pageload: launched local chrome", "url", wsURL)
	} else {
		br.logger.Info("pageload: connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		br.cleanupLocked()
		return nil, fmt.Errorf("pageload: connect: %w", err)
	}
	br.b = b
	return b, nil
}

// Load navigates to pageURL, waits for the body to settle, and parses the
// rendered outer HTML.
func (br *Browser) Load(ctx context.Context, pageURL string) (*Document, error) {
	b, err := br.connect()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if br.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("pageload: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, br.cfg.NavTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("pageload: navigate %s: %w", pageURL, err)
	}

	complete := false
	if res, err := page.Context(navCtx).Eval(`() => document.readyState`); err == nil {
		complete = res.Value.Str() == "complete"
	}

	pollCtx, stop := context.WithCancel(navCtx)
	changes := make(chan struct{}, 1)
	go br.poll(pollCtx, page, changes)
	timedOut := WaitStable(navCtx, br.stable, complete, changes)
	stop()
	if timedOut {
		br.logger.Warn("pageload: page did not settle, reading current tree", "url", pageURL)
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("pageload: get DOM: %w", err)
	}

	doc, err := Parse(strings.NewReader(res.Value.Str()), pageURL)
	if err != nil {
		return nil, err
	}
	doc.Source = SourceBrowser
	doc.StableTimedOut = timedOut
	return doc, nil
}

// poll samples the body signature and signals changes until ctx ends.
func (br *Browser) poll(ctx context.Context, page *rod.Page, changes chan<- struct{}) {
	ticker := time.NewTicker(br.stable.Poll)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := page.Context(ctx).Eval(signatureJS)
			if err != nil {
				continue
			}
			sig := res.Value.Str()
			if sig == last {
				continue
			}
			first := last == ""
			last = sig
			if first {
				continue
			}
			select {
			case changes <- struct{}{}:
			default:
			}
		}
	}
}

// Close shuts down a launched Chrome. A remote Chrome is left running.
func (br *Browser) Close() error {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.closed = true
	return br.cleanupLocked()
}

func (br *Browser) cleanupLocked() error {
	var err error
	if br.lnch != nil {
		if br.b != nil {
			err = br.b.Close()
		}
		br.lnch.Cleanup()
		br.lnch = nil
	}
	br.b = nil
	return err
}
