// Package browser drives the provider web app through a real Chrome. Each
// polling session owns one Session; sessions never share a tab or a
// profile directory.
package browser

import (
	"context"
	"errors"
)

var ErrHeaderNotSeen = errors.New("request header not observed")

// Session is one isolated browser tab with its own profile state.
type Session interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// HTML returns the current document's outer HTML.
	HTML(ctx context.Context) (string, error)
	// Evaluate runs a JS expression and decodes its result into out.
	Evaluate(ctx context.Context, expr string, out any) error
	// Click clicks the first element matching selector. It reports false
	// when nothing matched.
	Click(ctx context.Context, selector string) (bool, error)
	// ScrollToBottom scrolls the window so lazy lists load.
	ScrollToBottom(ctx context.Context) error
	// CaptureHeader navigates to url and returns the first value of the
	// named request header sent by the page.
	CaptureHeader(ctx context.Context, url, header string) (string, error)
	Close() error
}

// Driver opens sessions.
type Driver interface {
	NewSession(ctx context.Context) (Session, error)
}
