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

// Package common implements the operations browserctl performs on the most
// recently opened page of a running browser: evaluating code, capturing
// screenshots and streaming console output.
package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/agenttools/browserctl/api"
	"github.com/agenttools/browserctl/cdp"
	"github.com/agenttools/browserctl/log"
	"github.com/agenttools/browserctl/storage"

	"github.com/chromedp/cdproto/target"
)

// ErrNoActivePage is returned when the browser has no page target.
var ErrNoActivePage = errors.New("no active tab found")

const detachTimeout = 2 * time.Second

// Page is a CDP session attached to a page target.
type Page struct {
	client     *cdp.Client
	ownsClient bool
	info       *target.Info
	sessionID  target.SessionID
	logger     *log.Logger

	screenshotter *Screenshotter
	now           func() time.Time
}

var _ api.Page = &Page{}

// ConnectPage connects to the browser endpoint at baseURL (e.g.
// http://localhost:9222) and attaches to its most recently opened page.
// Closing the page, or ctx being done, closes the connection.
func ConnectPage(ctx context.Context, baseURL string, logger *log.Logger) (*Page, error) {
	v, err := cdp.DiscoverVersion(ctx, nil, baseURL)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	client, err := cdp.Connect(ctx, v.WebSocketDebuggerURL, logger)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", cdp.ErrNoEndpoint, baseURL, err) //nolint:errorlint
	}

	p, err := AttachToActivePage(ctx, client, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	p.ownsClient = true

	return p, nil
}

// AttachToActivePage attaches to the page target the browser lists last,
// which is the most recently opened one.
func AttachToActivePage(ctx context.Context, client *cdp.Client, logger *log.Logger) (*Page, error) {
	infos, err := client.Target.GetTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}

	var info *target.Info
	for _, ti := range infos {
		if ti.Type == "page" {
			info = ti
		}
	}
	if info == nil {
		return nil, ErrNoActivePage
	}

	sid, err := client.Target.AttachToTarget(ctx, info.TargetID)
	if err != nil {
		return nil, fmt.Errorf("attaching to page %q: %w", info.URL, err)
	}
	logger.Debugf("Page:attach", "tid:%v sid:%v url:%q", info.TargetID, sid, info.URL)

	return &Page{
		client:        client,
		info:          info,
		sessionID:     sid,
		logger:        logger,
		screenshotter: NewScreenshotter(&storage.LocalFilePersister{}, os.TempDir()),
		now:           time.Now,
	}, nil
}

// URL returns the page URL at the time the page was attached.
func (p *Page) URL() string {
	return p.info.URL
}

// Close detaches from the page, and disconnects from the browser when the
// page was connected with ConnectPage.
func (p *Page) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
	defer cancel()

	err := p.client.Target.DetachFromTarget(ctx, p.sessionID)
	if err != nil {
		p.logger.Debugf("Page:close", "sid:%v err:%v", p.sessionID, err)
	}
	if p.ownsClient {
		return p.client.Close() //nolint:wrapcheck
	}

	return nil
}

// withSession routes commands run with the returned context to the page.
func (p *Page) withSession(ctx context.Context) context.Context {
	return cdp.WithSessionID(ctx, p.sessionID)
}
