package cdp

import (
	"context"

	"github.com/chromedp/cdproto/target"
)

type ctxKey int

const (
	ctxKeySessionID ctxKey = iota
)

// WithSessionID routes the commands executed with the returned context to
// the target attached as sessionID. Commands without a session go to the
// browser target.
func WithSessionID(ctx context.Context, sessionID target.SessionID) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, sessionID)
}

// GetSessionID returns the session set by WithSessionID, if any.
func GetSessionID(ctx context.Context) target.SessionID {
	v := ctx.Value(ctxKeySessionID)
	if sid, ok := v.(target.SessionID); ok {
		return sid
	}
	return ""
}
