package cdp

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/agenttools/browserctl/log"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"github.com/oxtoacart/bpool"
)

const (
	wsWriteBufferSize  = 1 << 20
	wsHandshakeTimeout = 10 * time.Second
	wsCloseTimeout     = 5 * time.Second
)

// Outgoing frames are encoded into pooled buffers.
var framePool = bpool.NewBufferPool(32) //nolint:gochecknoglobals

// connection is a websocket carrying CDP messages. Reads and writes must
// each happen from a single goroutine.
type connection struct {
	ws     *websocket.Conn
	wsURL  string
	logger *log.Logger

	closeOnce sync.Once
}

func dial(ctx context.Context, wsURL string, logger *log.Logger) (*connection, error) {
	wsd := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
		WriteBufferSize:  wsWriteBufferSize,
	}
	ws, _, err := wsd.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dialing %q: %w", wsURL, err)
	}

	return &connection{ws: ws, wsURL: wsURL, logger: logger}, nil
}

func (c *connection) readMessage() (*cdproto.Message, error) {
	_, buf, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	c.logger.Tracef("cdp:recv", "<- %s", buf)

	var msg cdproto.Message
	decoder := jlexer.Lexer{Data: buf}
	msg.UnmarshalEasyJSON(&decoder)
	if err := decoder.Error(); err != nil {
		return nil, fmt.Errorf("decoding CDP message: %w", err)
	}

	return &msg, nil
}

func (c *connection) writeMessage(msg *cdproto.Message) error {
	var encoder jwriter.Writer
	msg.MarshalEasyJSON(&encoder)
	if err := encoder.Error; err != nil {
		return fmt.Errorf("encoding CDP message: %w", err)
	}

	buf := framePool.Get()
	defer framePool.Put(buf)
	if _, err := encoder.DumpTo(buf); err != nil {
		return fmt.Errorf("encoding CDP message: %w", err)
	}
	c.logger.Tracef("cdp:send", "-> %s", buf.Bytes())

	return c.ws.WriteMessage(websocket.TextMessage, buf.Bytes()) //nolint:wrapcheck
}

// close sends a close frame with code and closes the socket.
func (c *connection) close(code int) error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(wsCloseTimeout),
		)
		if cerr := c.ws.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
