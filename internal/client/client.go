// Package client is a headless party participant: it dials the relay,
// runs a playsync.Engine against any Player, and flips role when the
// room reseats the host. It is both a usable client library and the
// end-to-end harness for the protocol.
package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/elie00/stream-party-sub001/internal/domain"
	"github.com/elie00/stream-party-sub001/internal/playsync"
	"github.com/elie00/stream-party-sub001/internal/protocol"
)

// Client joins one room over one websocket. It implements
// playsync.Sink, so the engine's outbound traffic flows straight into
// the send pump.
type Client struct {
	conn   *websocket.Conn
	engine *playsync.Engine
	log    zerolog.Logger

	send chan []byte
	done chan struct{}

	mu            sync.Mutex
	userID        domain.UserID
	pendingHostID domain.UserID // role msg seen before whoami resolved
}

type Options struct {
	Room     string
	Name     string
	Player   playsync.Player
	Tunables playsync.Tunables
	Logger   zerolog.Logger
}

// Dial connects, joins the room and starts the pumps. The first
// snapshot arrives either from the host's periodic timer or from the
// resync request sent on join.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn: conn,
		log:  opts.Logger,
		send: make(chan []byte, 32),
		done: make(chan struct{}),
	}
	c.engine = playsync.NewEngine(c, opts.Tunables, opts.Logger)
	if opts.Player != nil {
		c.engine.AttachPlayer(opts.Player)
	}

	go c.writePump()
	go c.readPump()

	c.enqueueJSON(protocol.Envelope{Type: protocol.TypeWhoAmI})
	c.enqueueJSON(struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}{Type: protocol.TypeJoin, Room: opts.Room, Name: opts.Name})

	// Late joiner catch-up: ask for a fresh snapshot right away.
	c.engine.RequestSync()

	return c, nil
}

// Engine exposes the sync engine for host-side player actions
// (EmitPlay and friends).
func (c *Client) Engine() *playsync.Engine { return c.engine }

// playsync.Sink implementation; sends are dropped when the buffer is
// full, the next snapshot recovers.

func (c *Client) SendSnapshot(s playsync.Snapshot) error {
	b, err := protocol.EncodeSnapshot(s)
	if err != nil {
		return err
	}
	return c.trySend(b)
}

func (c *Client) SendEvent(ev playsync.Event) error {
	b, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return c.trySend(b)
}

func (c *Client) SendResync() error {
	b, err := protocol.EncodeResync("")
	if err != nil {
		return err
	}
	return c.trySend(b)
}

func (c *Client) trySend(b []byte) error {
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	default:
		c.log.Debug().Str("module", "client").Msg("send buffer full, frame dropped")
		return nil
	}
}

func (c *Client) enqueueJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Str("module", "client").Err(err).Msg("marshal")
		return
	}
	_ = c.trySend(b)
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug().Str("module", "client").Err(err).Msg("write failed")
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.log.Debug().Str("module", "client").Err(err).Msg("read closed")
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Debug().Str("module", "client").Err(err).Msg("bad frame")
		return
	}

	switch env.Type {
	case protocol.TypeWhoAmI:
		var m struct {
			ID domain.UserID `json:"id"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		c.resolveIdentity(m.ID)

	case protocol.TypeRoomState:
		var m struct {
			HostID domain.UserID `json:"host_id"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		c.adoptHost(m.HostID)

	case protocol.TypeRoleChanged:
		var m protocol.RoleChangedMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		c.adoptHost(m.HostID)

	case protocol.TypeSnapshot:
		var m protocol.SnapshotMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		c.engine.HandleSnapshot(m.Snapshot)

	case protocol.TypePlay, protocol.TypePause, protocol.TypeSeek, protocol.TypeSourceChanged:
		var m protocol.EventMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		c.engine.HandleEvent(m.Event())

	case protocol.TypeResync:
		// The relay forwards peers' requests to the host only.
		c.engine.BroadcastNow()

	case protocol.TypePong, protocol.TypeLeft, protocol.TypeError:
		// Plumbing acks; nothing to apply.

	default:
		c.log.Debug().Str("module", "client").Str("type", env.Type).Msg("unknown frame")
	}
}

// resolveIdentity stores our id and settles a host announcement that
// arrived before whoami did.
func (c *Client) resolveIdentity(id domain.UserID) {
	c.mu.Lock()
	c.userID = id
	pending := c.pendingHostID
	c.pendingHostID = ""
	c.mu.Unlock()
	if pending != "" {
		c.adoptHost(pending)
	}
}

// adoptHost flips the engine role by comparing the announced host with
// our own identity.
func (c *Client) adoptHost(hostID domain.UserID) {
	if hostID == "" {
		return
	}
	c.mu.Lock()
	me := c.userID
	if me == "" {
		c.pendingHostID = hostID
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if hostID == me {
		c.engine.SetRole(playsync.RoleHost)
	} else {
		c.engine.SetRole(playsync.RolePeer)
	}
}

// Close tears the session down; safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
		close(c.done)
	}
	c.mu.Unlock()

	c.engine.Close()
	_ = c.conn.Close()
}
