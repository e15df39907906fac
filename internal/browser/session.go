// Package browser defines the page-automation capability used by the
// extractor and provides a chromedp-backed implementation.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a selector matches nothing within the timeout.
var ErrNotFound = errors.New("element not found")

// Session is one exclusively owned navigation context. Implementations are
// not required to be safe for concurrent use; each lane owns its own.
type Session interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until selector matches a visible element or the
	// timeout elapses, in which case it returns ErrNotFound.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Visible reports whether selector currently matches a visible element.
	Visible(ctx context.Context, selector string) (bool, error)
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Evaluate runs script in the page and decodes its result into out.
	Evaluate(ctx context.Context, script string, out any) error
	// Text returns the rendered text of the first element matching selector.
	Text(ctx context.Context, selector string) (string, error)
	// HTML returns the outer HTML of the first element matching selector.
	HTML(ctx context.Context, selector string) (string, error)
	Close() error
}

// Factory opens new sessions. One factory is shared by all lanes; the
// sessions it returns are not.
type Factory interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}
