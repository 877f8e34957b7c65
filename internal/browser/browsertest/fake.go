// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/albapepper/eventcentral/internal/browser"
)

// Driver serves canned HTML per URL. Pages are shared by every session it
// opens; a click on a selector listed in Links moves to the mapped URL.
type Driver struct {
	mu       sync.Mutex
	Pages    map[string]string
	Links    map[string]string
	Evals    map[string]any
	Headers  map[string]string
	Err      error
	NavErr   map[string]error
	opened   int
	closed   int
	visits   []string
	sessions []*Session
}

func NewDriver() *Driver {
	return &Driver{
		Pages:   make(map[string]string),
		Links:   make(map[string]string),
		Evals:   make(map[string]any),
		Headers: make(map[string]string),
		NavErr:  make(map[string]error),
	}
}

func (d *Driver) NewSession(ctx context.Context) (browser.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	d.opened++
	s := &Session{d: d}
	d.sessions = append(d.sessions, s)
	return s, nil
}

// SetPage registers html for url.
func (d *Driver) SetPage(url, html string) {
	d.mu.Lock()
	d.Pages[url] = html
	d.mu.Unlock()
}

// Opened and Closed count sessions.
func (d *Driver) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

func (d *Driver) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Visits lists every navigated URL in order.
func (d *Driver) Visits() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visits...)
}

// Session is a fake tab.
type Session struct {
	d      *Driver
	url    string
	closed bool
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.visits = append(s.d.visits, url)
	if err := s.d.NavErr[url]; err != nil {
		return err
	}
	s.url = url
	return nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	html, ok := s.d.Pages[s.url]
	if !ok {
		return "<html><body></body></html>", nil
	}
	return html, nil
}

// Evaluate decodes the value registered for expr, matched by substring.
func (s *Session) Evaluate(ctx context.Context, expr string, out any) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for key, v := range s.d.Evals {
		if !strings.Contains(expr, key) {
			continue
		}
		if out == nil {
			return nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) (bool, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	target, ok := s.d.Links[selector]
	if !ok {
		return false, nil
	}
	s.url = target
	s.d.visits = append(s.d.visits, target)
	return true, nil
}

func (s *Session) ScrollToBottom(ctx context.Context) error { return ctx.Err() }

func (s *Session) CaptureHeader(ctx context.Context, url, header string) (string, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.visits = append(s.d.visits, url)
	v, ok := s.d.Headers[header]
	if !ok {
		return "", fmt.Errorf("%s: %w", header, browser.ErrHeaderNotSeen)
	}
	return v, nil
}

func (s *Session) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.d.closed++
	}
	return nil
}
