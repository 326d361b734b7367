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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/network"
	cdpr "github.com/chromedp/cdproto/runtime"
	"github.com/fatih/color"
	"github.com/tidwall/gjson"
)

const (
	consoleSeparatorWidth = 60
	consoleTimeFormat     = "3:04:05 PM"
)

// ConsoleLocation is where a console message was logged from.
type ConsoleLocation struct {
	URL    string
	Line   int64
	Column int64
}

// ConsoleArg is the JSON of a non-empty object or array argument of a
// console message.
type ConsoleArg struct {
	Index int
	JSON  string
}

// ConsoleMessage is a message logged with the page's console API.
type ConsoleMessage struct {
	Type     string
	Text     string
	Time     time.Time
	Location *ConsoleLocation
	Args     []ConsoleArg
}

// ConsoleFormatter writes console messages, page errors and failed
// requests in a human readable form.
type ConsoleFormatter struct {
	w        io.Writer
	colorize bool
}

// NewConsoleFormatter returns a formatter writing to w, with colors when
// colorize is true.
func NewConsoleFormatter(w io.Writer, colorize bool) *ConsoleFormatter {
	return &ConsoleFormatter{w: w, colorize: colorize}
}

func (f *ConsoleFormatter) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if f.colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (f *ConsoleFormatter) separator() {
	fmt.Fprintln(f.w, strings.Repeat("─", consoleSeparatorWidth))
}

// Header announces which page is being listened to.
func (f *ConsoleFormatter) Header(url string) {
	fmt.Fprintf(f.w, "📋 Capturing console logs from: %s\n\n", url)
	fmt.Fprint(f.w, "Listening for console messages (press Ctrl+C to stop)...\n\n")
	f.separator()
}

// consoleStyle returns the symbol and color attribute of a message type.
func consoleStyle(typ string) (string, color.Attribute) {
	switch typ {
	case "error", "assert":
		return "❌", color.FgRed
	case "warning":
		return "⚠️", color.FgYellow
	case "info":
		return "ℹ️", color.FgCyan
	case "debug":
		return "🐛", color.FgMagenta
	default:
		return "📝", color.Reset
	}
}

// Message writes a console message.
func (f *ConsoleFormatter) Message(m *ConsoleMessage) {
	symbol, attr := consoleStyle(m.Type)
	head := fmt.Sprintf("[%s] %s %s:", m.Time.Format(consoleTimeFormat), symbol, strings.ToUpper(m.Type))
	fmt.Fprintf(f.w, "%s %s\n", f.color(attr).Sprint(head), m.Text)

	if m.Location != nil && m.Location.URL != "" {
		loc := fmt.Sprintf("   └─ %s:%d:%d", m.Location.URL, m.Location.Line, m.Location.Column)
		fmt.Fprintln(f.w, f.color(color.FgHiBlack).Sprint(loc))
	}
	for _, arg := range m.Args {
		fmt.Fprintf(f.w, "   └─ arg[%d]: %s\n", arg.Index, arg.JSON)
	}
	f.separator()
}

// PageError writes an uncaught exception of the page.
func (f *ConsoleFormatter) PageError(message string) {
	fmt.Fprintf(f.w, "%s %s\n", f.color(color.FgRed).Sprint("[PAGE ERROR]:"), message)
	f.separator()
}

// RequestFailed writes a network request that failed.
func (f *ConsoleFormatter) RequestFailed(errorText, url string) {
	fmt.Fprintf(f.w, "%s %s - %s\n", f.color(color.FgRed).Sprint("[REQUEST FAILED]:"), errorText, url)
	f.separator()
}

// argText renders a console argument the way it appears in the message
// text.
func argText(arg *cdpr.RemoteObject) string {
	switch {
	case arg.Type == cdpr.TypeUndefined:
		return "undefined"
	case arg.UnserializableValue != "":
		return string(arg.UnserializableValue)
	case arg.ObjectID != "":
		return arg.Description
	case len(arg.Value) > 0:
		return jsString(gjson.ParseBytes(arg.Value))
	}
	return arg.Description
}

// indentArg returns the indented JSON of value when it is an object or
// array with at least one entry.
func indentArg(value []byte) (string, bool) {
	v := gjson.ParseBytes(value)
	if !v.IsObject() && !v.IsArray() {
		return "", false
	}
	empty := true
	v.ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	if empty {
		return "", false
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, value, "", "  "); err != nil {
		return "", false
	}
	return buf.String(), true
}

// StreamConsole writes the page's console messages, uncaught exceptions
// and failed requests to w until ctx is done. It returns an error when the
// connection to the browser is lost.
func (p *Page) StreamConsole(ctx context.Context, w io.Writer) error {
	return p.streamConsole(ctx, NewConsoleFormatter(w, !color.NoColor))
}

func (p *Page) streamConsole(ctx context.Context, f *ConsoleFormatter) error {
	events, unsubscribe := p.client.Subscribe(p.sessionID,
		cdproto.EventRuntimeConsoleAPICalled,
		cdproto.EventRuntimeExceptionThrown,
		cdproto.EventNetworkRequestWillBeSent,
		cdproto.EventNetworkLoadingFailed,
	)
	defer unsubscribe()

	sctx := p.withSession(ctx)
	if err := p.client.Runtime.Enable(sctx); err != nil {
		return err //nolint:wrapcheck
	}
	if err := p.client.Network.Enable(sctx); err != nil {
		return err //nolint:wrapcheck
	}
	f.Header(p.URL())

	requests := make(map[network.RequestID]string)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("lost connection to the browser: %w", p.client.Err())
			}
			switch data := evt.Data.(type) {
			case *cdpr.EventConsoleAPICalled:
				f.Message(p.consoleMessage(sctx, data))
			case *cdpr.EventExceptionThrown:
				f.PageError(exceptionMessage(data.ExceptionDetails))
			case *network.EventRequestWillBeSent:
				requests[data.RequestID] = data.Request.URL
			case *network.EventLoadingFailed:
				url, ok := requests[data.RequestID]
				if !ok {
					url = "(unknown URL)"
				}
				delete(requests, data.RequestID)
				f.RequestFailed(data.ErrorText, url)
			}
		}
	}
}

func (p *Page) consoleMessage(ctx context.Context, ev *cdpr.EventConsoleAPICalled) *ConsoleMessage {
	m := &ConsoleMessage{
		Type: string(ev.Type),
		Time: p.now(),
	}

	texts := make([]string, 0, len(ev.Args))
	for i, arg := range ev.Args {
		texts = append(texts, argText(arg))
		if arg.ObjectID == "" {
			continue
		}
		// Objects that cannot be serialized are left out.
		obj, err := p.client.Runtime.ValueOf(ctx, arg.ObjectID)
		if err != nil {
			p.logger.Debugf("Page:console", "sid:%v arg:%d err:%v", p.sessionID, i, err)
			continue
		}
		if s, ok := indentArg(obj.Value); ok {
			m.Args = append(m.Args, ConsoleArg{Index: i, JSON: s})
		}
	}
	m.Text = strings.Join(texts, " ")

	if ev.StackTrace != nil && len(ev.StackTrace.CallFrames) > 0 {
		cf := ev.StackTrace.CallFrames[0]
		m.Location = &ConsoleLocation{URL: cf.URL, Line: cf.LineNumber, Column: cf.ColumnNumber}
	}

	return m
}
