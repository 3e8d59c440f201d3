package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/game"
	"github.com/robalobadob/wordduel/internal/matchmaking"
	"github.com/robalobadob/wordduel/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Intent types accepted on /ws.
const (
	intentCreateMatch    = "create_match"
	intentJoinMatch      = "join_match"
	intentEnqueue        = "enqueue"
	intentCancelQueue    = "cancel_queue"
	intentSelectCard     = "select_card"
	intentSubmitGuess    = "submit_guess"
	intentRequestRematch = "request_rematch"
	intentLeave          = "leave"
)

// clientMessage is one inbound intent.
type clientMessage struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	Code     string `json:"code,omitempty"`
	Queue    string `json:"queue,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
	CardID   string `json:"cardId,omitempty"`
	Guess    string `json:"guess,omitempty"`
}

// client is one websocket connection. It is the session.Sink for its
// identity: Send never blocks and fails once the connection is gone.
type client struct {
	conn *websocket.Conn
	send chan session.Event
	done chan struct{}
	once sync.Once

	id   matchmaking.Identity
	name string
	log  zerolog.Logger
}

func (c *client) Send(e session.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- e:
		return true
	default:
		c.log.Warn().Str("event", string(e.Type)).Msg("send buffer full, dropping event")
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// handleWS upgrades the connection and runs the intent loop. Signed-in
// players are keyed by account and can reconnect; guests get a fresh
// identity per connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := matchmaking.Identity{Key: uuid.NewString(), Guest: true}
	var name string
	if me := userFrom(r.Context()); me != nil {
		id = matchmaking.Identity{Key: me.ID}
		name = me.Username
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan session.Event, sendBuffer),
		done: make(chan struct{}),
		id:   id,
		name: name,
		log:  s.log.With().Str("identity", id.Key).Bool("guest", id.Guest).Logger(),
	}
	c.log.Info().Msg("client connected")

	s.coord.Connect(id, c)
	go c.writePump()
	c.readPump(s.coord)
}

func (c *client) readPump(coord *matchmaking.Coordinator) {
	defer func() {
		coord.Disconnect(c.id, c)
		c.close()
		c.log.Info().Msg("client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if err := c.dispatch(coord, msg); err != nil {
			c.log.Debug().Err(err).Str("intent", msg.Type).Msg("intent rejected")
			c.Send(session.ErrorEvent(game.Message(err)))
		}
	}
}

func (c *client) dispatch(coord *matchmaking.Coordinator, msg clientMessage) error {
	name := msg.Name
	if name == "" {
		name = c.name
	}
	switch msg.Type {
	case intentCreateMatch:
		_, err := coord.CreateMatch(c.id, name)
		return err
	case intentJoinMatch:
		return coord.JoinMatch(c.id, name, msg.Code)
	case intentEnqueue:
		return coord.Enqueue(c.id, name, matchmaking.Queue(msg.Queue))
	case intentCancelQueue:
		return coord.Cancel(c.id)
	case intentSelectCard:
		return coord.SelectCard(c.id, msg.Code, msg.PlayerID, msg.CardID)
	case intentSubmitGuess:
		return coord.SubmitGuess(c.id, msg.Code, msg.PlayerID, msg.Guess, msg.CardID)
	case intentRequestRematch:
		return coord.RequestRematch(c.id, msg.Code, msg.PlayerID)
	case intentLeave:
		return coord.Leave(c.id)
	default:
		return game.Invalid("unknown intent %q", msg.Type)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
