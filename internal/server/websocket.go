package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"hueclue/internal/color"
)

// wsHub is the registry of live connections: conn -> (room code, player id).
// Broadcast reads the registry only; connect and disconnect are the sole
// writers.
type wsHub struct {
	mu     sync.Mutex
	groups map[string]map[*websocket.Conn]string
}

func newWSHub() *wsHub {
	return &wsHub{
		groups: make(map[string]map[*websocket.Conn]string),
	}
}

func (h *wsHub) Add(code string, conn *websocket.Conn, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	if group == nil {
		group = make(map[*websocket.Conn]string)
		h.groups[code] = group
	}
	group[conn] = playerID
}

func (h *wsHub) Remove(code string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	if group == nil {
		return
	}
	delete(group, conn)
	_ = conn.Close()
	if len(group) == 0 {
		delete(h.groups, code)
	}
}

func (h *wsHub) Send(conn *websocket.Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcast fans an event out to every connection in the room. Delivery is
// best effort: a failed write drops the connection, and clients reconcile by
// polling the full snapshot.
func (h *wsHub) Broadcast(code string, build func(playerID string) any) {
	h.mu.Lock()
	group := h.groups[code]
	conns := make(map[*websocket.Conn]string, len(group))
	for conn, playerID := range group {
		conns[conn] = playerID
	}
	h.mu.Unlock()

	for conn, playerID := range conns {
		data, err := json.Marshal(build(playerID))
		if err != nil {
			// One bad payload must not starve the other recipients.
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Remove(code, conn)
		}
	}
}

// SendToPlayer delivers a payload to every connection a player holds in the
// room. Used for terminal kicked notices.
func (h *wsHub) SendToPlayer(code, playerID string, payload any) {
	h.mu.Lock()
	group := h.groups[code]
	conns := make([]*websocket.Conn, 0, len(group))
	for conn, id := range group {
		if id == playerID {
			conns = append(conns, conn)
		}
	}
	h.mu.Unlock()
	for _, conn := range conns {
		h.Send(conn, payload)
	}
}

func (h *wsHub) CloseRoom(code string) {
	h.mu.Lock()
	group := h.groups[code]
	delete(h.groups, code)
	h.mu.Unlock()
	for conn := range group {
		_ = conn.Close()
	}
}

// wsAction is the closed inbound envelope. Only fire-and-forget draft
// updates and pings ride the socket; every other action is an HTTP call.
type wsAction struct {
	Action string     `json:"action"`
	Color  *color.HSL `json:"color,omitempty"`
	Text   *string    `json:"text,omitempty"`
}

const (
	actionUpdateDraftColor       = "updateDraftColor"
	actionUpdateDraftDescription = "updateDraftDescription"
	actionPing                   = "ping"
)

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	code, ok := parseWebsocketPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	code = normalizeRoomCode(code)
	playerID := r.URL.Query().Get("player_id")
	sess, exists := s.store.Get(code)
	if !exists {
		http.NotFound(w, r)
		return
	}
	if _, member := findPlayer(sess, playerID); !member {
		http.NotFound(w, r)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	log.Printf("ws connected game_id=%s player_id=%s remote=%s", code, playerID, r.RemoteAddr)
	s.hub.Add(code, conn, playerID)
	if sess, ok := s.store.Get(code); ok {
		s.hub.Send(conn, evGameStateUpdated(sess, playerID))
	}
	go s.readWS(code, playerID, conn)
}

func (s *Server) readWS(code, playerID string, conn *websocket.Conn) {
	defer s.hub.Remove(code, conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("ws disconnected game_id=%s player_id=%s error=%v", code, playerID, err)
			return
		}
		var action wsAction
		if err := json.Unmarshal(data, &action); err != nil {
			s.hub.Send(conn, evError(fmt.Errorf("%w: malformed action", ErrValidation)))
			continue
		}
		if err := s.dispatchWSAction(code, playerID, action); err != nil {
			s.hub.Send(conn, evError(err))
		}
	}
}

// dispatchWSAction rejects unknown tags explicitly rather than ignoring
// them.
func (s *Server) dispatchWSAction(code, playerID string, action wsAction) error {
	switch action.Action {
	case actionPing:
		return nil
	case actionUpdateDraftColor:
		if action.Color == nil {
			return fmt.Errorf("%w: color is required", ErrValidation)
		}
		return s.updateDraftColor(code, playerID, *action.Color)
	case actionUpdateDraftDescription:
		if action.Text == nil {
			return fmt.Errorf("%w: text is required", ErrValidation)
		}
		return s.updateDraftDescription(code, playerID, *action.Text)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrValidation, action.Action)
	}
}

func (s *Server) broadcastGameplay(sess *Session) {
	s.hub.Broadcast(sess.Code, func(playerID string) any {
		return evGameplayUpdated(sess, playerID)
	})
}

func (s *Server) broadcastPlayers(sess *Session) {
	event := evPlayersUpdated(sess)
	s.hub.Broadcast(sess.Code, func(string) any {
		return event
	})
}

func (s *Server) broadcastMeta(sess *Session) {
	event := evMetaUpdated(sess)
	s.hub.Broadcast(sess.Code, func(string) any {
		return event
	})
}

func (s *Server) broadcastFullState(sess *Session) {
	s.hub.Broadcast(sess.Code, func(playerID string) any {
		return evGameStateUpdated(sess, playerID)
	})
}
