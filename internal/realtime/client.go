package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/studytrack/notifyd/pkg/logger"
)

// ErrClientClosed is returned by Ping after Close.
var ErrClientClosed = errors.New("realtime client: closed")

// Client consumes a remote user's realtime stream over a WebSocket. It satisfies Source.
// Ping and Close may be called from different goroutines.
type Client struct {
	socket *websocket.Conn
	ch     chan Message
	log    *zap.Logger

	// gorilla allows one concurrent writer per connection.
	writeMu sync.Mutex
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Dial connects to a realtime endpoint. The bearer token is sent in the Authorization
// header; streams are requested through the query string.
func Dial(ctx context.Context, endpoint, token string, streams ...string) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	url := endpoint
	if len(streams) > 0 {
		sep := "?"
		for _, stream := range streams {
			url += sep + "streams=" + stream
			sep = "&"
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: writeWait}
	socket, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("realtime client: dial %s: %w", endpoint, err)
	}

	c := &Client{
		socket: socket,
		ch:     make(chan Message, defaultBufferSize),
		log:    logger.WithModule("realtime.client"),
		done:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// C returns decoded messages. The channel closes when the connection ends.
func (c *Client) C() <-chan Message {
	return c.ch
}

// Ping asks the server for a pong event.
func (c *Client) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.socket.WriteJSON(controlMessage{Action: "ping"})
}

// Close terminates the connection and waits for the reader to exit.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.closed = true
		_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = c.socket.Close()
	})
	c.wg.Wait()
}

func (c *Client) readLoop() {
	defer func() {
		close(c.ch)
		c.wg.Done()
	}()

	for {
		var message Message
		if err := c.socket.ReadJSON(&message); err != nil {
			select {
			case <-c.done:
			default:
				c.log.Debug("connection ended", zap.Error(err))
			}
			return
		}
		select {
		case c.ch <- message:
		case <-c.done:
			return
		}
	}
}
