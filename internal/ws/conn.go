package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/livedesk/internal/broker"
	"github.com/Rrens/livedesk/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameBytes  = 64 << 10
	sendBufferSize = 256
)

// clientFrame is what clients send: an event name, an opaque payload and an
// optional correlation id echoed back on the response or error.
type clientFrame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id,omitempty"`
}

type outFrame struct {
	env       broker.Envelope
	droppable bool
}

// Client is one websocket connection. It implements broker.Subscriber; the
// broker and the read loop both feed the send channel and writePump is the
// only goroutine touching the socket for writes.
type Client struct {
	id   string
	conn *websocket.Conn
	gw   *Gateway
	send chan outFrame

	mu        sync.RWMutex
	principal domain.Principal

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, gw *Gateway, p domain.Principal) *Client {
	return &Client{
		id:        uuid.New().String(),
		conn:      conn,
		gw:        gw,
		send:      make(chan outFrame, sendBufferSize),
		principal: p,
		done:      make(chan struct{}),
	}
}

// ID implements broker.Subscriber.
func (c *Client) ID() string { return c.id }

// Enqueue implements broker.Subscriber. Droppable frames are discarded when
// the buffer is full; losing a critical frame instead closes the connection,
// and the client recovers the gap through session restore.
func (c *Client) Enqueue(env broker.Envelope, droppable bool) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- outFrame{env: env, droppable: droppable}:
		return true
	default:
		if droppable {
			return true
		}
		log.Warn().Str("conn", c.id).Str("event", env.Event).Msg("send buffer full, closing slow consumer")
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "slow consumer"),
			time.Now().Add(writeWait))
		c.close()
		return false
	}
}

// Principal returns the identity bound to this connection.
func (c *Client) Principal() domain.Principal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.principal
}

// bindSession attaches a session to a latent customer connection.
func (c *Client) bindSession(sessionID uuid.UUID, token string) {
	c.mu.Lock()
	c.principal.SessionID = &sessionID
	c.principal.CustomerToken = token
	c.mu.Unlock()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump consumes client frames until the connection drops. Frames are
// handled one at a time so a connection's commands keep their order.
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.gw.drop(c)
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.readFailed(err)
			return
		}

		// Malformed frames are logged and dropped, never fatal.
		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Debug().Err(err).Str("conn", c.id).Msg("dropping malformed frame")
			continue
		}
		if frame.Event == "" {
			log.Debug().Str("conn", c.id).Msg("dropping frame without event")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.gw.handlerTimeout)
		c.gw.dispatch(ctx, c, frame)
		cancel()
	}
}

// readFailed tells an idle peer why it was dropped; transport errors only get
// a debug line since the socket is already gone.
func (c *Client) readFailed(err error) {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeIdleTimeout, "idle timeout"),
			time.Now().Add(writeWait))
		return
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
		log.Debug().Err(err).Str("conn", c.id).Msg("websocket read failed")
	}
}

// writePump drains the send channel onto the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame.env); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
