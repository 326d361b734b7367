/*
 *
 * browserctl - drive parallel browser instances over CDP
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/agenttools/browserctl/api"
	"github.com/agenttools/browserctl/cdp/domains"
	"github.com/agenttools/browserctl/storage"

	"github.com/pkg/errors"
)

var (
	// DesktopViewport is the default screenshot viewport.
	DesktopViewport = api.Viewport{Width: 1920, Height: 1080} //nolint:gochecknoglobals
	// MobileViewport is a phone sized viewport.
	MobileViewport = api.Viewport{Width: 400, Height: 900} //nolint:gochecknoglobals
)

// Screenshotter captures pages as PNG files in a directory.
type Screenshotter struct {
	persister storage.FilePersister
	dir       string
}

// NewScreenshotter returns a screenshotter saving through persister into dir.
func NewScreenshotter(persister storage.FilePersister, dir string) *Screenshotter {
	return &Screenshotter{
		persister: persister,
		dir:       dir,
	}
}

// ScreenshotName returns the file name of a screenshot taken at t, e.g.
// screenshot-2021-11-12T09-30-00-000Z.png.
func ScreenshotName(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return "screenshot-" + strings.NewReplacer(":", "-", ".", "-").Replace(ts) + ".png"
}

func (s *Screenshotter) screenshot(
	ctx context.Context, page domains.Page, emu domains.Emulation, vp api.Viewport, at time.Time,
) (string, error) {
	if err := emu.SetViewport(ctx, vp.Width, vp.Height); err != nil {
		return "", errors.Wrap(err, "unable to set viewport for screenshot")
	}

	buf, err := page.CaptureScreenshot(ctx)
	if err != nil {
		return "", errors.Wrap(err, "unable to capture screenshot")
	}

	path := filepath.Join(s.dir, ScreenshotName(at))
	if err := s.persister.Persist(ctx, path, bytes.NewReader(buf)); err != nil {
		return "", errors.Wrapf(err, "unable to save screenshot to %s", path)
	}

	return path, nil
}

// Screenshot sets the page viewport to vp, captures the page and returns
// the path of the saved PNG file.
func (p *Page) Screenshot(ctx context.Context, vp api.Viewport) (string, error) {
	ctx = p.withSession(ctx)
	path, err := p.screenshotter.screenshot(ctx, p.client.Page, p.client.Emulation, vp, p.now())
	if err != nil {
		return "", err
	}
	p.logger.Debugf("Page:screenshot", "sid:%v viewport:%dx%d path:%q", p.sessionID, vp.Width, vp.Height, path)

	return path, nil
}
