package domains

import (
	"context"
	"fmt"

	cdpb "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
)

// Browser exposes the CDP Browser domain actions.
type Browser interface {
	GetVersion(ctx context.Context) (product, userAgent string, err error)
}

var _ Browser = &browser{}

type browser struct {
	exec cdp.Executor
}

// NewBrowser returns a new CDP Browser domain wrapper.
func NewBrowser(exec cdp.Executor) Browser {
	return &browser{exec}
}

func (b *browser) GetVersion(ctx context.Context) (string, string, error) {
	action := cdpb.GetVersion()
	_, product, _, userAgent, _, err := action.Do(cdp.WithExecutor(ctx, b.exec))
	if err != nil {
		return "", "", fmt.Errorf("getting browser version: %w", err)
	}

	return product, userAgent, nil
}
