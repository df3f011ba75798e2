package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/elie00/stream-party-sub001/internal/app"
	"github.com/elie00/stream-party-sub001/internal/config"
	"github.com/elie00/stream-party-sub001/internal/core"
	"github.com/elie00/stream-party-sub001/internal/domain"
	"github.com/elie00/stream-party-sub001/internal/playsync"
	"github.com/elie00/stream-party-sub001/internal/protocol"
)

var ErrBackpressure = errors.New("send buffer full")

// PartyWSController terminates party websockets: it validates inbound
// frames, answers room plumbing (join/leave/rename/whoami/ping) itself,
// and hands playback traffic to the orchestrator. Sync semantics live
// in playsync on the clients; the relay only checks shape and routes.
type PartyWSController struct {
	Orch    *app.Orchestrator
	Cfg     *config.Config
	Limiter *ResyncRateLimiter
}

func NewPartyWSController(orch *app.Orchestrator, cfg *config.Config) *PartyWSController {
	return &PartyWSController{
		Orch:    orch,
		Cfg:     cfg,
		Limiter: NewResyncRateLimiter(cfg.ResyncLimit, cfg.ResyncInterval),
	}
}

type wsPartyConn struct {
	conn *websocket.Conn
	send chan core.Frame
	once sync.Once
}

func (c *wsPartyConn) TrySend(f core.Frame) error {
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsPartyConn) Close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *PartyWSController) HandleParty(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Msg("new party connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "adapters.ws").Err(err).Msg("ws upgrade failed")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &wsPartyConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	user := ctl.Orch.Registry.GetOrCreateUser(sid)
	meta := domain.NewMember(user)
	sess := core.NewMemberSession(meta, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSession(sid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

func (ctl *PartyWSController) writePump(ctx context.Context, c *wsPartyConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Debug().Str("module", "adapters.ws").Err(err).Msg("write deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Str("module", "adapters.ws").Err(err).Msg("write failed")
				return
			}
		}
	}
}

func (ctl *PartyWSController) readPump(ctx context.Context, sid core.SessionID, c *wsPartyConn) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Msg("closing party connection")
		ctl.Orch.OnDisconnect(sid)
		ctl.Limiter.Forget(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.dispatch(sid, c, data)
		}
	}
}

func (ctl *PartyWSController) dispatch(sid core.SessionID, c *wsPartyConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Str("module", "adapters.ws").Err(err).Msg("bad json")
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(sid, c, data)
	case protocol.TypeLeave:
		ctl.handleLeave(sid, c)
	case protocol.TypeRename:
		ctl.handleRename(sid, c, data)
	case protocol.TypeWhoAmI:
		ctl.handleWhoAmI(sid, c)
	case protocol.TypePing:
		ctl.sendJSON(c, protocol.Envelope{Type: protocol.TypePong})
	case protocol.TypeSnapshot:
		ctl.handleSnapshot(sid, data)
	case protocol.TypePlay, protocol.TypePause, protocol.TypeSeek, protocol.TypeSourceChanged:
		ctl.handleEvent(sid, data)
	case protocol.TypeResync:
		ctl.handleResync(sid, c)
	default:
		log.Debug().Str("module", "adapters.ws").Str("type", env.Type).Msg("unknown message type")
	}
}

func (ctl *PartyWSController) sendJSON(c *wsPartyConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Str("module", "adapters.ws").Err(err).Msg("marshal response")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *PartyWSController) sendError(c *wsPartyConn, msg string) {
	ctl.sendJSON(c, map[string]string{"type": protocol.TypeError, "error": msg})
}

func (ctl *PartyWSController) handleJoin(sid core.SessionID, c *wsPartyConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Debug().Str("module", "adapters.ws").Err(err).Msg("bad join payload")
		return
	}

	roomName := domain.RoomName(p.Room)
	if roomName == "" {
		roomName = "main"
	}
	if p.Name != "" {
		ctl.Orch.Registry.UpdateUsername(sid, p.Name)
	}

	ctl.Orch.Join(sid, roomName)

	// Room snapshot so the joiner can render members, learn who hosts,
	// and adopt the party's sync constants before its first resync.
	room := ctl.Orch.Rooms.GetOrCreate(roomName)
	var hostID domain.UserID
	if hostSID, ok := room.Host(); ok {
		hostID = ctl.Orch.Registry.GetOrCreateUser(hostSID).ID
	}
	resp := struct {
		Type     string            `json:"type"`
		Room     domain.RoomName   `json:"room"`
		Members  []core.MemberDTO  `json:"members"`
		Count    int               `json:"count"`
		HostID   domain.UserID     `json:"host_id,omitempty"`
		Tunables playsync.Tunables `json:"tunables"`
	}{
		Type:     protocol.TypeRoomState,
		Room:     room.Room().Name,
		Members:  room.MembersSnapshot(),
		Count:    room.MemberCount(),
		HostID:   hostID,
		Tunables: ctl.Orch.Tunables,
	}
	ctl.sendJSON(c, resp)
}

// handleLeave exits the room without dropping the connection.
func (ctl *PartyWSController) handleLeave(sid core.SessionID, c *wsPartyConn) {
	ctl.Orch.KickBySID(sid)
	ctl.sendJSON(c, protocol.Envelope{Type: protocol.TypeLeft})
}

func (ctl *PartyWSController) handleRename(sid core.SessionID, c *wsPartyConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Debug().Str("module", "adapters.ws").Err(err).Msg("bad rename payload")
		return
	}
	if p.Name == "" {
		ctl.sendError(c, "empty name")
		return
	}
	ctl.Orch.Registry.UpdateUsername(sid, p.Name)
	ctl.handleWhoAmI(sid, c)
}

func (ctl *PartyWSController) handleWhoAmI(sid core.SessionID, c *wsPartyConn) {
	user := ctl.Orch.Registry.GetOrCreateUser(sid)
	roomName, _, inRoom := ctl.Orch.Registry.RoomOf(sid)

	resp := struct {
		Type     string          `json:"type"`
		ID       domain.UserID   `json:"id"`
		Username string          `json:"username"`
		Room     domain.RoomName `json:"room,omitempty"`
	}{
		Type:     protocol.TypeWhoAmI,
		ID:       user.ID,
		Username: user.Username,
	}
	if inRoom {
		resp.Room = roomName
	}
	ctl.sendJSON(c, resp)
}

// handleSnapshot checks shape before relaying so peers never see a
// frame their engines would reject anyway.
func (ctl *PartyWSController) handleSnapshot(sid core.SessionID, data []byte) {
	var m protocol.SnapshotMsg
	if err := json.Unmarshal(data, &m); err != nil {
		log.Debug().Str("module", "adapters.ws").Err(err).Msg("bad snapshot payload")
		return
	}
	if err := m.Snapshot.Validate(); err != nil {
		log.Debug().Str("module", "adapters.ws").Str("sid", string(sid)).Err(err).Msg("snapshot rejected")
		return
	}
	ctl.Orch.OnPlaybackFrame(sid, data)
}

func (ctl *PartyWSController) handleEvent(sid core.SessionID, data []byte) {
	var m protocol.EventMsg
	if err := json.Unmarshal(data, &m); err != nil {
		log.Debug().Str("module", "adapters.ws").Err(err).Msg("bad event payload")
		return
	}
	if err := m.Event().Validate(); err != nil {
		log.Debug().Str("module", "adapters.ws").Str("sid", string(sid)).Err(err).Msg("event rejected")
		return
	}
	ctl.Orch.OnPlaybackFrame(sid, data)
}

func (ctl *PartyWSController) handleResync(sid core.SessionID, c *wsPartyConn) {
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "adapters.ws").Str("sid", string(sid)).Msg("resync rate limited")
		ctl.sendError(c, "resync rate limited")
		return
	}
	ctl.Orch.OnResync(sid)
}
