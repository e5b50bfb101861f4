package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"hueclue/internal/color"
)

type createRequest struct {
	Name   string      `json:"name"`
	Config *GameConfig `json:"config"`
}

type joinRequest struct {
	Name string `json:"name"`
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

type descriptionRequest struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

type colorRequest struct {
	PlayerID string    `json:"player_id"`
	Color    color.HSL `json:"color"`
}

type kickRequest struct {
	PlayerID string `json:"player_id"`
	TargetID string `json:"target_id"`
}

func (s *Server) handleGameSubroutes(w http.ResponseWriter, r *http.Request) {
	code, action, ok := parseGamePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	code = normalizeRoomCode(code)
	if r.Method == http.MethodGet {
		if action == "" {
			s.handleGetGame(w, r, code)
			return
		}
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch action {
	case "join":
		s.handleJoinGame(w, r, code)
	case "rejoin":
		s.handleRejoinGame(w, r, code)
	case "draft-color":
		s.handleDraftColor(w, r, code)
	case "draft-description":
		s.handleDraftDescription(w, r, code)
	case "description":
		s.handleSubmitDescription(w, r, code)
	case "color":
		s.handleSubmitColor(w, r, code)
	case "start":
		s.handleStartRound(w, r, code)
	case "finalise":
		s.handleFinaliseGame(w, r, code)
	case "reset":
		s.handleResetGame(w, r, code)
	case "close":
		s.handleCloseRoom(w, r, code)
	case "kick":
		s.handleKickPlayer(w, r, code)
	default:
		http.NotFound(w, r)
	}
}

// reconcile fast-forwards any overdue phase before a handler acts. Runs as
// its own committed write so a later rejected action cannot undo it.
func (s *Server) reconcile(code string) (*Session, error) {
	changed := false
	sess, err := s.store.Update(code, func(sess *Session) error {
		changed = reconcileDeadlines(sess, timeNowUTC())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		phase := ""
		if round := currentRound(sess); round != nil {
			phase = round.Phase
		}
		log.Printf("round reconciled game_id=%s phase=%s", sess.Code, phase)
		s.persistEvent(sess, "round_reconciled", EventPayload{Phase: phase, Reason: "deadline"})
		s.broadcastGameplay(sess)
	}
	return sess, nil
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, fmt.Errorf("%w: name is required", ErrValidation))
		return
	}
	name, err := validateName(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	cfg := s.defaultGameConfig()
	if req.Config != nil {
		cfg = clampConfig(*req.Config, cfg)
	}
	sess := s.store.CreateSession(cfg)
	host := Player{
		ID:       uuid.NewString(),
		Name:     name,
		JoinedAt: timeNowUTC(),
	}
	sess, err = s.store.Update(sess.Code, func(sess *Session) error {
		sess.Players = append(sess.Players, host)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.persistGame(sess); err != nil {
		writeError(w, fmt.Errorf("%w: failed to create game", ErrValidation))
		return
	}
	log.Printf("game created game_id=%s host_id=%s", sess.Code, host.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"game_id":   sess.Code,
		"player_id": host.ID,
		"game":      snapshotFor(sess, host.ID),
	})
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request, code string) {
	var req joinRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, fmt.Errorf("%w: name is required", ErrValidation))
		return
	}
	name, err := validateName(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.reconcile(code); err != nil {
		writeError(w, err)
		return
	}
	playerID := ""
	rejoined := false
	sess, err := s.store.Update(code, func(sess *Session) error {
		for i := range sess.Players {
			if strings.EqualFold(sess.Players[i].Name, name) {
				if sess.Status == statusWaiting {
					return fmt.Errorf("%w: name already taken", ErrConflict)
				}
				// Matching a name in a running game is how a player
				// reconnects after losing their id.
				playerID = sess.Players[i].ID
				rejoined = true
				return nil
			}
		}
		if sess.Status != statusWaiting {
			return fmt.Errorf("%w: game already started", ErrConflict)
		}
		if len(sess.Players) >= sess.Config.MaxPlayers {
			return fmt.Errorf("%w: game %s", ErrCapacity, sess.Code)
		}
		playerID = uuid.NewString()
		sess.Players = append(sess.Players, Player{
			ID:       playerID,
			Name:     name,
			JoinedAt: timeNowUTC(),
		})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !rejoined {
		s.persistEvent(sess, "player_joined", EventPayload{PlayerID: playerID, PlayerName: name})
		log.Printf("player joined game_id=%s player_id=%s name=%s", sess.Code, playerID, name)
		s.broadcastPlayers(sess)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id":   sess.Code,
		"player_id": playerID,
		"game":      snapshotFor(sess, playerID),
	})
}

func (s *Server) handleRejoinGame(w http.ResponseWriter, r *http.Request, code string) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id is required", ErrValidation))
		return
	}
	sess, err := s.reconcile(code)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, ok := findPlayer(sess, req.PlayerID); !ok {
		writeError(w, fmt.Errorf("%w: player %s", ErrNotFound, req.PlayerID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id":   sess.Code,
		"player_id": req.PlayerID,
		"game":      snapshotFor(sess, req.PlayerID),
	})
}

// handleGetGame is the polling backstop: reconciling deadlines here means a
// quiet session catches up as soon as anyone looks at it.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request, code string) {
	sess, err := s.reconcile(code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotFor(sess, r.URL.Query().Get("player_id")))
}

func (s *Server) handleDraftColor(w http.ResponseWriter, r *http.Request, code string) {
	var req colorRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id and color are required", ErrValidation))
		return
	}
	if err := s.updateDraftColor(code, req.PlayerID, req.Color); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDraftDescription(w http.ResponseWriter, r *http.Request, code string) {
	var req descriptionRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id is required", ErrValidation))
		return
	}
	if err := s.updateDraftDescription(code, req.PlayerID, req.Text); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Draft updates are last-write-wins live previews: membership is the only
// precondition and nothing is ever scored from them directly.
func (s *Server) updateDraftColor(code, playerID string, c color.HSL) error {
	if err := validateColor(c); err != nil {
		return err
	}
	if _, err := s.reconcile(code); err != nil {
		return err
	}
	sess, err := s.store.Update(code, func(sess *Session) error {
		player, ok := findPlayer(sess, playerID)
		if !ok {
			return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
		}
		draft := c
		player.DraftColor = &draft
		return nil
	})
	if err != nil {
		return err
	}
	s.broadcastGameplay(sess)
	return nil
}

func (s *Server) updateDraftDescription(code, playerID, text string) error {
	trimmed, err := validateDescription(text)
	if err != nil {
		return err
	}
	if _, err := s.reconcile(code); err != nil {
		return err
	}
	sess, err := s.store.Update(code, func(sess *Session) error {
		player, ok := findPlayer(sess, playerID)
		if !ok {
			return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
		}
		player.DraftDescription = trimmed
		return nil
	})
	if err != nil {
		return err
	}
	s.broadcastGameplay(sess)
	return nil
}

func (s *Server) handleSubmitDescription(w http.ResponseWriter, r *http.Request, code string) {
	var req descriptionRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id is required", ErrValidation))
		return
	}
	text, err := validateDescription(req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.reconcile(code); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.store.Update(code, func(sess *Session) error {
		round := currentRound(sess)
		if round == nil || round.Phase != phaseDescribing {
			return fmt.Errorf("%w: round is not in the describing phase", ErrConflict)
		}
		if round.DescriberID != req.PlayerID {
			return fmt.Errorf("%w: not the describer", ErrConflict)
		}
		if text == "" {
			// No clue: the describer forfeits and everyone else scores 100.
			noClueScores(sess, round)
			return nil
		}
		round.Description = text
		round.Described = true
		round.Phase = phaseGuessing
		round.GuessingDeadline = timeNowUTC().Add(time.Duration(sess.Config.GuessingSeconds) * time.Second)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	phase := currentRound(sess).Phase
	s.persistEvent(sess, "description_submitted", EventPayload{PlayerID: req.PlayerID, Phase: phase})
	log.Printf("description submitted game_id=%s player_id=%s phase=%s", sess.Code, req.PlayerID, phase)
	writeJSON(w, http.StatusOK, snapshotFor(sess, req.PlayerID))
	s.broadcastGameplay(sess)
}

func (s *Server) handleSubmitColor(w http.ResponseWriter, r *http.Request, code string) {
	var req colorRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id and color are required", ErrValidation))
		return
	}
	if err := validateColor(req.Color); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.reconcile(code); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.store.Update(code, func(sess *Session) error {
		round := currentRound(sess)
		if round == nil || round.Phase != phaseGuessing {
			return fmt.Errorf("%w: round is not in the guessing phase", ErrConflict)
		}
		if _, ok := findPlayer(sess, req.PlayerID); !ok {
			return fmt.Errorf("%w: player %s", ErrNotFound, req.PlayerID)
		}
		if round.DescriberID == req.PlayerID {
			return fmt.Errorf("%w: the describer cannot guess", ErrConflict)
		}
		if _, submitted := round.Submissions[req.PlayerID]; submitted {
			return fmt.Errorf("%w: color already submitted", ErrConflict)
		}
		round.Submissions[req.PlayerID] = req.Color
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistEvent(sess, "color_submitted", EventPayload{PlayerID: req.PlayerID})
	// Re-read under the lock: only the submission that completes the set
	// performs the reveal; every later arrival finds the guard false.
	revealed := false
	sess, err = s.store.Update(code, func(sess *Session) error {
		round := currentRound(sess)
		if round == nil || round.Phase != phaseGuessing {
			return nil
		}
		if !submissionsComplete(sess, round) {
			return nil
		}
		scoreRound(round)
		revealed = true
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if revealed {
		s.persistEvent(sess, "round_revealed", EventPayload{Phase: phaseReveal})
		log.Printf("round revealed game_id=%s", sess.Code)
	}
	log.Printf("color submitted game_id=%s player_id=%s", sess.Code, req.PlayerID)
	writeJSON(w, http.StatusOK, snapshotFor(sess, req.PlayerID))
	s.broadcastGameplay(sess)
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request, code string) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id is required", ErrValidation))
		return
	}
	if _, err := s.reconcile(code); err != nil {
		writeError(w, err)
		return
	}
	started := false
	sess, err := s.store.Update(code, func(sess *Session) error {
		if _, ok := findPlayer(sess, req.PlayerID); !ok {
			return fmt.Errorf("%w: player %s", ErrNotFound, req.PlayerID)
		}
		if sess.Status == statusWaiting {
			if hostID(sess) != req.PlayerID {
				return fmt.Errorf("%w: only the host can start the game", ErrUnauthorized)
			}
			if len(sess.Players) < minPlayers {
				return fmt.Errorf("%w: not enough players", ErrConflict)
			}
			started = true
		} else {
			round := currentRound(sess)
			if round == nil || round.Phase != phaseReveal {
				return fmt.Errorf("%w: current round is not revealed", ErrConflict)
			}
		}
		describer := selectDescriber(sess.Players, sess.Rounds)
		sess.Rounds = append(sess.Rounds, newRound(sess, describer, timeNowUTC()))
		sess.Status = statusPlaying
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	round := currentRound(sess)
	s.persistEvent(sess, "round_started", EventPayload{
		PlayerID:   round.DescriberID,
		RoundIndex: len(sess.Rounds) - 1,
	})
	log.Printf("round started game_id=%s round=%d describer_id=%s", sess.Code, len(sess.Rounds)-1, round.DescriberID)
	writeJSON(w, http.StatusOK, snapshotFor(sess, req.PlayerID))
	if started {
		s.broadcastMeta(sess)
	}
	s.broadcastGameplay(sess)
}

func (s *Server) handleFinaliseGame(w http.ResponseWriter, r *http.Request, code string) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id is required", ErrValidation))
		return
	}
	if _, err := s.reconcile(code); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.store.Update(code, func(sess *Session) error {
		if hostID(sess) != req.PlayerID {
			return fmt.Errorf("%w: only the host can finalise the game", ErrUnauthorized)
		}
		round := currentRound(sess)
		if round == nil || round.Phase != phaseReveal {
			return fmt.Errorf("%w: current round is not revealed", ErrConflict)
		}
		if !gameComplete(sess.Players, sess.Rounds, sess.Config.TurnsPerPlayer) {
			return fmt.Errorf("%w: players still have turns left", ErrConflict)
		}
		round.Phase = phaseEndgame
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistEvent(sess, "game_finalised", EventPayload{Phase: phaseEndgame})
	log.Printf("game finalised game_id=%s", sess.Code)
	writeJSON(w, http.StatusOK, snapshotFor(sess, req.PlayerID))
	s.broadcastGameplay(sess)
}

func (s *Server) handleResetGame(w http.ResponseWriter, r *http.Request, code string) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id is required", ErrValidation))
		return
	}
	if _, err := s.reconcile(code); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.store.Update(code, func(sess *Session) error {
		if hostID(sess) != req.PlayerID {
			return fmt.Errorf("%w: only the host can reset the game", ErrUnauthorized)
		}
		sess.Rounds = nil
		sess.Status = statusWaiting
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistEvent(sess, "game_reset", EventPayload{Status: statusWaiting})
	log.Printf("game reset game_id=%s", sess.Code)
	writeJSON(w, http.StatusOK, snapshotFor(sess, req.PlayerID))
	s.broadcastFullState(sess)
}

func (s *Server) handleCloseRoom(w http.ResponseWriter, r *http.Request, code string) {
	var req playerRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id is required", ErrValidation))
		return
	}
	sess, err := s.reconcile(code)
	if err != nil {
		writeError(w, err)
		return
	}
	if hostID(sess) != req.PlayerID {
		writeError(w, fmt.Errorf("%w: only the host can close the room", ErrUnauthorized))
		return
	}
	s.persistEvent(sess, "room_closed", EventPayload{PlayerID: req.PlayerID})
	log.Printf("room closed game_id=%s", sess.Code)
	event := evKicked("room closed by host")
	s.hub.Broadcast(sess.Code, func(string) any {
		return event
	})
	s.store.Delete(sess.Code)
	s.hub.CloseRoom(sess.Code)
	writeJSON(w, http.StatusOK, map[string]any{"closed": true})
}

func (s *Server) handleKickPlayer(w http.ResponseWriter, r *http.Request, code string) {
	var req kickRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == "" || req.TargetID == "" {
		writeError(w, fmt.Errorf("%w: player_id and target_id are required", ErrValidation))
		return
	}
	if _, err := s.reconcile(code); err != nil {
		writeError(w, err)
		return
	}
	revealed := false
	sess, err := s.store.Update(code, func(sess *Session) error {
		if req.PlayerID != req.TargetID && hostID(sess) != req.PlayerID {
			return fmt.Errorf("%w: only the host can remove other players", ErrUnauthorized)
		}
		index := -1
		for i := range sess.Players {
			if sess.Players[i].ID == req.TargetID {
				index = i
				break
			}
		}
		if index == -1 {
			return fmt.Errorf("%w: player %s", ErrNotFound, req.TargetID)
		}
		sess.Players = append(sess.Players[:index], sess.Players[index+1:]...)
		if round := currentRound(sess); round != nil && round.Phase == phaseGuessing {
			delete(round.Submissions, req.TargetID)
			// The set of guessers shrank; the remaining submissions may now
			// complete it.
			if len(sess.Players) > 1 && submissionsComplete(sess, round) {
				scoreRound(round)
				revealed = true
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistEvent(sess, "player_removed", EventPayload{PlayerID: req.TargetID})
	if revealed {
		s.persistEvent(sess, "round_revealed", EventPayload{Phase: phaseReveal})
	}
	log.Printf("player removed game_id=%s target_id=%s by=%s", sess.Code, req.TargetID, req.PlayerID)
	s.hub.SendToPlayer(sess.Code, req.TargetID, evKicked("removed from the room"))
	writeJSON(w, http.StatusOK, snapshotFor(sess, req.PlayerID))
	s.broadcastPlayers(sess)
	if revealed {
		s.broadcastGameplay(sess)
	}
}
