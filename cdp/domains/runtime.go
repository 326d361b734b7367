package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpr "github.com/chromedp/cdproto/runtime"
)

// Runtime exposes the CDP Runtime domain actions.
type Runtime interface {
	Enable(context.Context) error
	Evaluate(ctx context.Context, expression string) (*cdpr.RemoteObject, *cdpr.ExceptionDetails, error)
	ValueOf(ctx context.Context, id cdpr.RemoteObjectID) (*cdpr.RemoteObject, error)
}

var _ Runtime = &runtime{}

type runtime struct {
	exec cdp.Executor
}

// NewRuntime returns a new CDP Runtime domain wrapper.
func NewRuntime(exec cdp.Executor) Runtime {
	return &runtime{exec}
}

func (r *runtime) Enable(ctx context.Context) error {
	if err := cdpr.Enable().Do(cdp.WithExecutor(ctx, r.exec)); err != nil {
		return fmt.Errorf("enabling runtime CDP domain: %w", err)
	}

	return nil
}

// Evaluate evaluates expression, waits for the promise it returns, if any,
// and returns the result by value. A thrown exception is reported in the
// exception details, not as an error.
func (r *runtime) Evaluate(ctx context.Context, expression string) (*cdpr.RemoteObject, *cdpr.ExceptionDetails, error) {
	action := cdpr.Evaluate(expression).
		WithAwaitPromise(true).
		WithReturnByValue(true).
		WithUserGesture(true)
	res, exc, err := action.Do(cdp.WithExecutor(ctx, r.exec))
	if err != nil {
		return nil, nil, fmt.Errorf("evaluating expression: %w", err)
	}

	return res, exc, nil
}

// ValueOf returns the JSON value of the remote object id.
func (r *runtime) ValueOf(ctx context.Context, id cdpr.RemoteObjectID) (*cdpr.RemoteObject, error) {
	action := cdpr.CallFunctionOn("function() { return this; }").
		WithObjectID(id).
		WithReturnByValue(true)
	res, exc, err := action.Do(cdp.WithExecutor(ctx, r.exec))
	if err != nil {
		return nil, fmt.Errorf("getting value of object %q: %w", id, err)
	}
	if exc != nil {
		return nil, fmt.Errorf("getting value of object %q: %s", id, exc.Text)
	}

	return res, nil
}
