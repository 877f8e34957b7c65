package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Options configures the Chrome driver.
type Options struct {
	// RemoteURL points at a running Chrome's devtools endpoint. When set,
	// no local browser is launched and ProfileDir is ignored.
	RemoteURL   string
	ExecPath    string
	ProfileDir  string
	Headless    bool
	PageTimeout time.Duration
	Settle      time.Duration
	Logger      *slog.Logger
}

// Chrome launches or attaches to Chrome via the devtools protocol.
type Chrome struct {
	opts Options
}

func NewChrome(opts Options) *Chrome {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Chrome{opts: opts}
}

// NewSession starts a tab bound to ctx. Cancelling ctx tears the browser
// down; Close does the same and removes the copied profile.
func (c *Chrome) NewSession(ctx context.Context) (Session, error) {
	s := &chromeSession{opts: c.opts}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if c.opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, c.opts.RemoteURL)
	} else {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts,
			chromedp.Flag("headless", c.opts.Headless),
			chromedp.NoSandbox,
			chromedp.WindowSize(1920, 1080),
		)
		if c.opts.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
		}
		if c.opts.ProfileDir != "" {
			dir, err := CopyProfile(c.opts.ProfileDir)
			if err != nil {
				return nil, err
			}
			s.profileCopy = dir
			opts = append(opts, chromedp.UserDataDir(dir))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	logger := c.opts.Logger
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	s.ctx = tabCtx
	s.cancel = func() {
		tabCancel()
		allocCancel()
	}

	// Start the browser now so launch failures surface here.
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	chromedp.ListenTarget(tabCtx, s.onEvent)
	return s, nil
}

type chromeSession struct {
	opts        Options
	ctx         context.Context
	cancel      context.CancelFunc
	profileCopy string
	closeOnce   sync.Once

	watchMu sync.Mutex
	watch   *headerWatch
}

type headerWatch struct {
	name  string
	found chan string
	done  atomic.Bool
}

func (s *chromeSession) onEvent(ev interface{}) {
	req, ok := ev.(*network.EventRequestWillBeSent)
	if !ok || req.Request == nil {
		return
	}
	s.watchMu.Lock()
	w := s.watch
	s.watchMu.Unlock()
	if w == nil || w.done.Load() {
		return
	}
	for k, v := range req.Request.Headers {
		if !strings.EqualFold(k, w.name) {
			continue
		}
		val, _ := v.(string)
		if val != "" && w.done.CompareAndSwap(false, true) {
			w.found <- val
		}
		return
	}
}

// run executes actions under the page timeout, stopping early if ctx ends.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.opts.PageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(tctx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if s.opts.Settle > 0 {
		actions = append(actions, chromedp.Sleep(s.opts.Settle))
	}
	if err := s.run(ctx, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Evaluate(ctx context.Context, expr string, out any) error {
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

func (s *chromeSession) Click(ctx context.Context, selector string) (bool, error) {
	expr := fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (!el) return false; el.click(); return true; })()`,
		strconv.Quote(selector))
	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(expr, &clicked)); err != nil {
		return false, fmt.Errorf("click %s: %w", selector, err)
	}
	if clicked && s.opts.Settle > 0 {
		if err := s.run(ctx, chromedp.Sleep(s.opts.Settle)); err != nil {
			return true, err
		}
	}
	return clicked, nil
}

func (s *chromeSession) ScrollToBottom(ctx context.Context) error {
	actions := []chromedp.Action{chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)}
	if s.opts.Settle > 0 {
		actions = append(actions, chromedp.Sleep(s.opts.Settle/2))
	}
	return s.run(ctx, actions...)
}

func (s *chromeSession) CaptureHeader(ctx context.Context, url, header string) (string, error) {
	w := &headerWatch{name: header, found: make(chan string, 1)}
	s.watchMu.Lock()
	s.watch = w
	s.watchMu.Unlock()
	defer func() {
		s.watchMu.Lock()
		s.watch = nil
		s.watchMu.Unlock()
	}()

	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}

	timer := time.NewTimer(s.opts.PageTimeout)
	defer timer.Stop()
	select {
	case v := <-w.found:
		return v, nil
	case <-timer.C:
		return "", fmt.Errorf("%s on %s: %w", header, url, ErrHeaderNotSeen)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.profileCopy != "" {
			err = os.RemoveAll(s.profileCopy)
		}
	})
	return err
}
