package common

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agenttools/browserctl/cdp"
	"github.com/agenttools/browserctl/storage"
	"github.com/agenttools/browserctl/tests/ws"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	consoleAPICalledParams = `{"type":"warning","args":[` +
		`{"type":"string","value":"careful"},` +
		`{"type":"object","className":"Object","description":"Object","objectId":"obj-1"}],` +
		`"executionContextId":1,"timestamp":1636729445000,` +
		`"stackTrace":{"callFrames":[{"functionName":"","scriptId":"1","url":"https://example.com/app.js","lineNumber":10,"columnNumber":4}]}}`
	exceptionThrownParams = `{"timestamp":1636729445000,"exceptionDetails":{"exceptionId":1,"text":"Uncaught",` +
		`"lineNumber":0,"columnNumber":7,"exception":{"type":"object","subtype":"error",` +
		`"description":"Error: boom\n    at <anonymous>:1:7"}}}`
	requestWillBeSentParams = `{"requestId":"R1","loaderId":"L1","documentURL":"https://example.com/",` +
		`"request":{"url":"https://nope.invalid/x.js","method":"GET","headers":{}},` +
		`"timestamp":1,"wallTime":1636729445}`
	loadingFailedParams = `{"requestId":"R1","timestamp":2,"type":"Script","errorText":"net::ERR_NAME_NOT_RESOLVED"}`
)

// fakeBrowser answers the commands a page sends to the browser with
// targets as the list of open targets.
func fakeBrowser(targets string) ws.HandlerFunc {
	return func(_ *websocket.Conn, msg *cdproto.Message, writeCh chan cdproto.Message, done chan struct{}) {
		if msg.ID == 0 {
			return
		}
		switch msg.Method {
		case cdproto.CommandTargetGetTargets:
			ws.Send(writeCh, done, ws.Reply(msg, `{"targetInfos":[`+targets+`]}`))
		case cdproto.CommandTargetAttachToTarget:
			ws.Send(writeCh, done, ws.Reply(msg, `{"sessionId":"S1"}`))
		case cdproto.CommandRuntimeEvaluate:
			if msg.SessionID != "S1" {
				ws.Send(writeCh, done, ws.ErrorReply(msg, -32601, "'Runtime.evaluate' wasn't found"))
				return
			}
			ws.Send(writeCh, done, ws.Reply(msg, `{"result":{"type":"object","value":{"title":"Example Domain","links":1}}}`))
		case cdproto.CommandRuntimeCallFunctionOn:
			ws.Send(writeCh, done, ws.Reply(msg, `{"result":{"type":"object","value":{"a":1}}}`))
		case cdproto.CommandPageCaptureScreenshot:
			data := base64.StdEncoding.EncodeToString([]byte("\x89PNG"))
			ws.Send(writeCh, done, ws.Reply(msg, `{"data":"`+data+`"}`))
		case cdproto.CommandNetworkEnable:
			ws.Send(writeCh, done, ws.Event("S1", cdproto.EventRuntimeConsoleAPICalled, consoleAPICalledParams))
			ws.Send(writeCh, done, ws.Event("S1", cdproto.EventRuntimeExceptionThrown, exceptionThrownParams))
			ws.Send(writeCh, done, ws.Event("S1", cdproto.EventNetworkRequestWillBeSent, requestWillBeSentParams))
			ws.Send(writeCh, done, ws.Event("S1", cdproto.EventNetworkLoadingFailed, loadingFailedParams))
			ws.Send(writeCh, done, ws.Reply(msg, "{}"))
		default:
			ws.Send(writeCh, done, ws.Reply(msg, "{}"))
		}
	}
}

var openTargets = ws.TargetJSON("T1", "page", "https://example.com/first") + "," + //nolint:gochecknoglobals
	ws.TargetJSON("T2", "service_worker", "https://example.com/sw.js") + "," +
	ws.TargetJSON("T3", "page", "https://example.com/") + "," +
	ws.TargetJSON("T4", "background_page", "chrome-extension://abc/bg.html")

func connectPage(t *testing.T, targets string) (*Page, *ws.Server) {
	t.Helper()

	server := ws.NewServer(t, ws.WithBrowser(fakeBrowser(targets)))

	// The connection lives as long as the context it was made with.
	p, err := ConnectPage(context.Background(), server.URL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	return p, server
}

func TestConnectPage(t *testing.T) {
	t.Parallel()

	t.Run("attaches_to_last_page", func(t *testing.T) {
		t.Parallel()

		p, server := connectPage(t, openTargets)
		assert.Equal(t, "https://example.com/", p.URL())
		assert.EqualValues(t, "S1", p.sessionID)
		assert.Equal(t, []cdproto.MethodType{
			cdproto.CommandTargetGetTargets,
			cdproto.CommandTargetAttachToTarget,
		}, server.Commands.All())
	})

	t.Run("no_page", func(t *testing.T) {
		t.Parallel()

		server := ws.NewServer(t, ws.WithBrowser(fakeBrowser(
			ws.TargetJSON("T2", "service_worker", "https://example.com/sw.js"),
		)))
		_, err := ConnectPage(context.Background(), server.URL(), nil)
		assert.ErrorIs(t, err, ErrNoActivePage)
	})

	t.Run("no_endpoint", func(t *testing.T) {
		t.Parallel()

		server := ws.NewServer(t)
		_, err := ConnectPage(context.Background(), server.URL(), nil)
		assert.ErrorIs(t, err, cdp.ErrNoEndpoint)
	})

	t.Run("websocket_refused", func(t *testing.T) {
		t.Parallel()

		server := ws.NewServer(t, ws.WithVersionHandler("/status/200"))
		_, err := ConnectPage(context.Background(), server.URL(), nil)
		assert.ErrorIs(t, err, cdp.ErrNoEndpoint)
	})
}

func TestPageEvaluate(t *testing.T) {
	t.Parallel()

	p, server := connectPage(t, openTargets)

	var buf bytes.Buffer
	err := p.Evaluate(context.Background(), "({title: document.title, links: document.links.length})", &buf)
	require.NoError(t, err)
	assert.Equal(t, "title: Example Domain\nlinks: 1\n", buf.String())
	assert.Contains(t, server.Commands.All(), cdproto.MethodType(cdproto.CommandRuntimeEvaluate))
}

func TestPageEvaluateException(t *testing.T) {
	t.Parallel()

	handler := func(conn *websocket.Conn, msg *cdproto.Message, writeCh chan cdproto.Message, done chan struct{}) {
		if msg.Method == cdproto.CommandRuntimeEvaluate {
			ws.Send(writeCh, done, ws.Reply(msg, `{"result":{"type":"object","subtype":"error"},`+
				`"exceptionDetails":{"exceptionId":1,"text":"Uncaught","lineNumber":0,"columnNumber":0,`+
				`"exception":{"type":"object","subtype":"error","description":"ReferenceError: foo is not defined\n    at <anonymous>:1:1"}}}`))
			return
		}
		fakeBrowser(openTargets)(conn, msg, writeCh, done)
	}
	server := ws.NewServer(t, ws.WithBrowser(handler))
	p, err := ConnectPage(context.Background(), server.URL(), nil)
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	var buf bytes.Buffer
	err = p.Evaluate(context.Background(), "foo", &buf)
	require.EqualError(t, err, "evaluation failed: ReferenceError: foo is not defined")
	assert.Empty(t, buf.String())
}

func TestPageScreenshot(t *testing.T) {
	t.Parallel()

	p, server := connectPage(t, openTargets)
	fs := afero.NewMemMapFs()
	p.screenshotter = NewScreenshotter(&storage.LocalFilePersister{Fs: fs}, "/shots")
	p.now = func() time.Time { return time.Date(2021, 11, 12, 9, 30, 0, 0, time.UTC) }

	path, err := p.Screenshot(context.Background(), DesktopViewport)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/shots", "screenshot-2021-11-12T09-30-00-000Z.png"), path)

	buf, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(buf))

	cmds := server.Commands.All()
	assert.Equal(t, []cdproto.MethodType{
		cdproto.CommandEmulationSetDeviceMetricsOverride,
		cdproto.CommandPageCaptureScreenshot,
	}, cmds[len(cmds)-2:])
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p) //nolint:wrapcheck
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPageStreamConsole(t *testing.T) {
	t.Parallel()

	p, _ := connectPage(t, openTargets)
	p.now = func() time.Time { return time.Date(2021, 11, 12, 15, 4, 5, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	errc := make(chan error, 1)
	go func() {
		errc <- p.streamConsole(ctx, NewConsoleFormatter(&out, false))
	}()

	want := "📋 Capturing console logs from: https://example.com/\n\n" +
		"Listening for console messages (press Ctrl+C to stop)...\n\n" + separator +
		"[3:04:05 PM] ⚠️ WARNING: careful Object\n" +
		"   └─ https://example.com/app.js:10:4\n" +
		"   └─ arg[1]: {\n  \"a\": 1\n}\n" + separator +
		"[PAGE ERROR]: Error: boom\n" + separator +
		"[REQUEST FAILED]: net::ERR_NAME_NOT_RESOLVED - https://nope.invalid/x.js\n" + separator

	require.Eventually(t, func() bool {
		return out.String() == want
	}, 5*time.Second, 10*time.Millisecond, "got:\n%s", out.String())

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("console stream did not stop")
	}
}

func TestPageStreamConsoleConnectionLost(t *testing.T) {
	t.Parallel()

	p, _ := connectPage(t, openTargets)

	var out syncBuffer
	errc := make(chan error, 1)
	go func() {
		errc <- p.streamConsole(context.Background(), NewConsoleFormatter(&out, false))
	}()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Listening for console messages")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, p.client.Close())

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lost connection to the browser")
		assert.True(t, errors.Is(err, cdp.ErrConnectionClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("console stream did not stop")
	}
}
