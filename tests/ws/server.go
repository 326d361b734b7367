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


// Package ws provides a websocket test server that stands in for a CDP
// compatible browser.
package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/target"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"github.com/mccutchen/go-httpbin/httpbin"
	"github.com/stretchr/testify/require"
)

// BrowserPath is where WithBrowser serves the browser websocket endpoint.
const BrowserPath = "/devtools/browser/0123456789"

// HandlerFunc handles one CDP message received by the server and writes
// replies and events to writeCh.
type HandlerFunc func(conn *websocket.Conn, msg *cdproto.Message, writeCh chan cdproto.Message, done chan struct{})

// Server can be used as a test alternative to a real CDP compatible browser.
// Paths without a handler are served by httpbin, so the server answers
// HTTP like any web server.
type Server struct {
	t          testing.TB
	Mux        *http.ServeMux
	ServerHTTP *httptest.Server
	Commands   *CommandRecorder
}

// NewServer returns a fully configured and running WS test server.
func NewServer(t testing.TB, opts ...func(*Server)) *Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.Handle("/", httpbin.New().Handler())

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	s := &Server{
		t:          t,
		Mux:        mux,
		ServerHTTP: server,
		Commands:   &CommandRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// URL returns the base HTTP URL of the server, e.g. http://127.0.0.1:1234.
func (s *Server) URL() string {
	return s.ServerHTTP.URL
}

// WSURL returns the websocket URL of path on the server.
func (s *Server) WSURL(path string) string {
	return "ws" + strings.TrimPrefix(s.ServerHTTP.URL, "http") + path
}

// CommandRecorder records the CDP commands a server received.
type CommandRecorder struct {
	mu   sync.Mutex
	cmds []cdproto.MethodType
}

func (r *CommandRecorder) record(method cdproto.MethodType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, method)
}

// All returns the received commands in order.
func (r *CommandRecorder) All() []cdproto.MethodType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cdproto.MethodType(nil), r.cmds...)
}

// WithBrowser serves /json/version pointing at BrowserPath and handles CDP
// messages on BrowserPath with fn.
func WithBrowser(fn HandlerFunc) func(*Server) {
	return func(s *Server) {
		WithVersionHandler(BrowserPath)(s)
		WithCDPHandler(BrowserPath, fn)(s)
	}
}

// WithVersionHandler serves /json/version with the websocket URL of wsPath.
func WithVersionHandler(wsPath string) func(*Server) {
	return func(s *Server) {
		s.Mux.HandleFunc("/json/version", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"Browser":              "HeadlessChrome/96.0.4664.45",
				"Protocol-Version":     "1.3",
				"User-Agent":           "Mozilla/5.0 HeadlessChrome/96.0.4664.45",
				"V8-Version":           "9.6.180.14",
				"WebKit-Version":       "537.36",
				"webSocketDebuggerUrl": s.WSURL(wsPath),
			})
		})
	}
}

// WithClosureAbnormalHandler attaches an abnormal closure behavior to Server.
func WithClosureAbnormalHandler(path string) func(*Server) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
		if err != nil {
			return
		}
		_ = conn.Close() // This forces a connection closure without a proper WS close message exchange
	}
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(handler))
	}
}

// WithCDPHandler attaches a custom CDP handler function to Server.
func WithCDPHandler(path string, fn HandlerFunc) func(*Server) {
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
			if err != nil {
				return
			}
			defer conn.Close() //nolint:errcheck

			done := make(chan struct{})
			writeCh := make(chan cdproto.Message)

			go func() {
				defer close(done)
				for {
					msg, err := read(conn)
					if err != nil {
						return
					}
					if msg.Method != "" {
						s.Commands.record(msg.Method)
					}
					fn(conn, msg, writeCh, done)
				}
			}()

			for {
				select {
				case msg := <-writeCh:
					if err := write(conn, &msg); err != nil {
						s.t.Logf("writing CDP message: %v", err)
						return
					}
				case <-done:
					return
				}
			}
		}))
	}
}

func read(conn *websocket.Conn) (*cdproto.Message, error) {
	_, buf, err := conn.ReadMessage()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	var msg cdproto.Message
	decoder := jlexer.Lexer{Data: buf}
	msg.UnmarshalEasyJSON(&decoder)
	if err := decoder.Error(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &msg, nil
}

func write(conn *websocket.Conn, msg *cdproto.Message) error {
	encoder := jwriter.Writer{}
	msg.MarshalEasyJSON(&encoder)
	if err := encoder.Error; err != nil {
		return err //nolint:wrapcheck
	}

	writer, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if _, err := encoder.DumpTo(writer); err != nil {
		return err //nolint:wrapcheck
	}

	return writer.Close() //nolint:wrapcheck
}

// CDPDefaultHandler replies to every command with an empty result.
func CDPDefaultHandler(conn *websocket.Conn, msg *cdproto.Message, writeCh chan cdproto.Message, done chan struct{}) {
	if msg.ID == 0 {
		return
	}
	Send(writeCh, done, Reply(msg, "{}"))
}

// Reply returns the reply to msg carrying the JSON result.
func Reply(msg *cdproto.Message, result string) cdproto.Message {
	return cdproto.Message{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Result:    easyjson.RawMessage(result),
	}
}

// ErrorReply returns an error reply to msg.
func ErrorReply(msg *cdproto.Message, code int64, text string) cdproto.Message {
	return cdproto.Message{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Error:     &cdproto.Error{Code: code, Message: text},
	}
}

// Event returns a CDP event for sessionID with the JSON params.
func Event(sessionID string, method cdproto.MethodType, params string) cdproto.Message {
	return cdproto.Message{
		SessionID: target.SessionID(sessionID),
		Method:    method,
		Params:    easyjson.RawMessage(params),
	}
}

// Send writes msg unless the connection is done.
func Send(writeCh chan cdproto.Message, done chan struct{}, msg cdproto.Message) {
	select {
	case writeCh <- msg:
	case <-done:
	}
}

// MustJSON marshals v or fails the test.
func MustJSON(t testing.TB, v interface{}) string {
	t.Helper()

	buf, err := json.Marshal(v)
	require.NoError(t, err)
	return string(buf)
}

// TargetJSON returns the JSON of a target info.
func TargetJSON(id, typ, url string) string {
	return fmt.Sprintf(`{"targetId":%q,"type":%q,"title":"","url":%q,"attached":false,"canAccessOpener":false,"browserContextId":"0123456789876543210"}`, id, typ, url)
}
