package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpt "github.com/chromedp/cdproto/target"
)

// Target exposes the CDP Target domain actions.
type Target interface {
	GetTargets(ctx context.Context) ([]*cdpt.Info, error)
	AttachToTarget(ctx context.Context, id cdpt.ID) (cdpt.SessionID, error)
	DetachFromTarget(ctx context.Context, sessionID cdpt.SessionID) error
}

var _ Target = &target{}

type target struct {
	exec cdp.Executor
}

// NewTarget returns a new CDP Target domain wrapper.
func NewTarget(exec cdp.Executor) Target {
	return &target{exec}
}

// GetTargets lists the browser targets in the order the browser reports them.
func (t *target) GetTargets(ctx context.Context) ([]*cdpt.Info, error) {
	infos, err := cdpt.GetTargets().Do(cdp.WithExecutor(ctx, t.exec))
	if err != nil {
		return nil, fmt.Errorf("getting targets: %w", err)
	}

	return infos, nil
}

// AttachToTarget attaches to the target in flat mode: the returned session
// is addressed over the same connection.
func (t *target) AttachToTarget(ctx context.Context, id cdpt.ID) (cdpt.SessionID, error) {
	action := cdpt.AttachToTarget(id).WithFlatten(true)
	sid, err := action.Do(cdp.WithExecutor(ctx, t.exec))
	if err != nil {
		return "", fmt.Errorf("attaching to target %q: %w", id, err)
	}

	return sid, nil
}

func (t *target) DetachFromTarget(ctx context.Context, sessionID cdpt.SessionID) error {
	action := cdpt.DetachFromTarget().WithSessionID(sessionID)
	if err := action.Do(cdp.WithExecutor(ctx, t.exec)); err != nil {
		return fmt.Errorf("detaching from session %q: %w", sessionID, err)
	}

	return nil
}
