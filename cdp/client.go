package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/agenttools/browserctl/cdp/domains"
	"github.com/agenttools/browserctl/log"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
)

// ErrConnectionClosed is returned by commands issued on, or pending on, a
// closed connection.
var ErrConnectionClosed = errors.New("CDP connection closed")

var _ cdp.Executor = &Client{}

// Client manages CDP communication with the browser over a single
// websocket. Commands are routed to page targets with WithSessionID.
type Client struct {
	ctx    context.Context
	logger *log.Logger

	Browser   domains.Browser
	Emulation domains.Emulation
	Network   domains.Network
	Page      domains.Page
	Runtime   domains.Runtime
	Target    domains.Target

	conn    *connection
	msgID   int64
	sendCh  chan *cdproto.Message
	watcher *eventWatcher

	pendingMu sync.Mutex
	pending   map[int64]chan *cdproto.Message

	done         chan struct{}
	shutdownOnce sync.Once
	err          error
}

// Connect establishes a CDP connection to the browser at wsURL. The
// connection is closed when ctx is done or Close is called.
func Connect(ctx context.Context, wsURL string, logger *log.Logger) (*Client, error) {
	conn, err := dial(ctx, wsURL, logger)
	if err != nil {
		return nil, err
	}
	logger.Debugf("cdp", "established CDP connection to %q", wsURL)

	c := &Client{
		ctx:     ctx,
		logger:  logger,
		conn:    conn,
		sendCh:  make(chan *cdproto.Message, 32), // Avoid blocking in Execute
		watcher: newEventWatcher(logger),
		pending: make(map[int64]chan *cdproto.Message),
		done:    make(chan struct{}),
	}
	c.Browser = domains.NewBrowser(c)
	c.Emulation = domains.NewEmulation(c)
	c.Network = domains.NewNetwork(c)
	c.Page = domains.NewPage(c)
	c.Runtime = domains.NewRuntime(c)
	c.Target = domains.NewTarget(c)

	go c.recvLoop()
	go c.sendLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	return c, nil
}

// Execute implements cdp.Executor and performs a synchronous send and
// receive. The command goes to the session set on ctx by WithSessionID.
func (c *Client) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	c.logger.Debugf("Client:Execute", "wsURL:%q method:%q", c.conn.wsURL, method)

	var buf []byte
	if params != nil {
		var err error
		if buf, err = easyjson.Marshal(params); err != nil {
			return fmt.Errorf("encoding %s params: %w", method, err)
		}
	}
	msg := &cdproto.Message{
		ID:        atomic.AddInt64(&c.msgID, 1),
		SessionID: GetSessionID(ctx),
		Method:    cdproto.MethodType(method),
		Params:    buf,
	}

	// Register before sending; the reply can race the send.
	recvCh := make(chan *cdproto.Message, 1)
	c.pendingMu.Lock()
	c.pending[msg.ID] = recvCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.ID)
		c.pendingMu.Unlock()
	}()

	select {
	case c.sendCh <- msg:
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	case <-c.done:
		return c.Err()
	}

	select {
	case reply := <-recvCh:
		switch {
		case reply.Error != nil:
			return fmt.Errorf("%s: %w", method, reply.Error)
		case res != nil:
			return easyjson.Unmarshal(reply.Result, res) //nolint:wrapcheck
		}
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	case <-c.done:
		return c.Err()
	}
}

// Subscribe returns a channel that receives the given events of the target
// attached as sessionID, and a function that unsubscribes and closes the
// channel. The channel is also closed when the connection closes.
func (c *Client) Subscribe(sessionID target.SessionID, events ...cdproto.MethodType) (<-chan *Event, func()) {
	return c.watcher.subscribe(sessionID, events...)
}

// Done is closed when the connection is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection closed, or nil while it is open.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close closes the connection to the browser. The browser keeps running.
func (c *Client) Close() error {
	err := c.conn.close(websocket.CloseNormalClosure)
	c.shutdown(nil)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("closing CDP connection: %w", err)
	}
	return nil
}

func (c *Client) shutdown(cause error) {
	c.shutdownOnce.Do(func() {
		if cause == nil {
			c.err = ErrConnectionClosed
		} else {
			c.err = fmt.Errorf("%w: %v", ErrConnectionClosed, cause) //nolint:errorlint
		}
		close(c.done)
		_ = c.conn.close(websocket.CloseGoingAway)
		c.watcher.close()
	})
}

func (c *Client) recvLoop() {
	for {
		msg, err := c.conn.readMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debugf("Client:recvLoop", "wsURL:%q err:%v", c.conn.wsURL, err)
			}
			c.shutdown(err)
			return
		}

		switch {
		case msg.ID != 0:
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			c.pendingMu.Unlock()
			if !ok {
				c.logger.Debugf("Client:recvLoop", "ignoring reply to unknown message %d", msg.ID)
				continue
			}
			ch <- msg
		case msg.Method != "":
			c.watcher.notify(c.decodeEvent(msg))
		default:
			c.logger.Errorf("cdp", "ignoring malformed incoming message (missing id or method): %#v", msg)
		}
	}
}

func (c *Client) decodeEvent(msg *cdproto.Message) *Event {
	evt := &Event{
		Name:      msg.Method,
		SessionID: msg.SessionID,
		Data:      msg,
	}
	data, err := cdproto.UnmarshalMessage(msg)
	if err != nil {
		var unknown cdp.ErrUnknownCommandOrEvent
		if !errors.As(err, &unknown) {
			c.logger.Errorf("cdp", "decoding %s event: %v", msg.Method, err)
		}
		// Unknown events (from a newer or older browser) are passed on raw.
		return evt
	}
	evt.Data = data

	return evt
}

func (c *Client) sendLoop() {
	for {
		select {
		case msg := <-c.sendCh:
			if err := c.conn.writeMessage(msg); err != nil {
				c.logger.Debugf("Client:sendLoop", "wsURL:%q err:%v", c.conn.wsURL, err)
				c.shutdown(err)
				return
			}
		case <-c.done:
			return
		}
	}
}
