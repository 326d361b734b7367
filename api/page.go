package api

import (
	"context"
	"io"
)

// Viewport is a page viewport size in CSS pixels.
type Viewport struct {
	Width  int64
	Height int64
}

// Page is the most recently opened page of a running browser instance.
type Page interface {
	// URL returns the page URL at the time it was attached.
	URL() string
	// Evaluate runs code as the body of an async function returning
	// (code), and writes the result to w.
	Evaluate(ctx context.Context, code string, w io.Writer) error
	// Screenshot resizes the viewport, captures the page as PNG and
	// returns where it was saved.
	Screenshot(ctx context.Context, vp Viewport) (string, error)
	// StreamConsole writes console messages, page errors and failed
	// requests to w until ctx is done.
	StreamConsole(ctx context.Context, w io.Writer) error
	// Close detaches from the page. The page and browser keep running.
	Close() error
}
