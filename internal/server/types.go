package server

import (
	"maps"
	"time"

	"hueclue/internal/color"
)

const (
	statusWaiting = "waiting"
	statusPlaying = "playing"
)

// Round phases only move forward. resetGame is the one exception: it clears
// all rounds and returns the session to the waiting status.
const (
	phaseDescribing = "describing"
	phaseGuessing   = "guessing"
	phaseReveal     = "reveal"
	phaseEndgame    = "endgame"
)

type GameConfig struct {
	MaxPlayers         int `json:"max_players"`
	DescriptionSeconds int `json:"description_seconds"`
	GuessingSeconds    int `json:"guessing_seconds"`
	TurnsPerPlayer     int `json:"turns_per_player"`
}

// Session is the single unit of consistency: every field commits atomically
// through Store.Update.
type Session struct {
	Code       string
	DBID       uint
	Config     GameConfig
	Status     string
	Players    []Player
	Rounds     []Round
	CreatedAt  time.Time
	LastActive time.Time
}

type Player struct {
	ID               string
	Name             string
	JoinedAt         time.Time
	DraftColor       *color.HSL
	DraftDescription string
}

type Round struct {
	Target              color.HSL
	DescriberID         string
	Phase               string
	Description         string
	Described           bool
	Submissions         map[string]color.HSL
	Scores              map[string]int
	StartedAt           time.Time
	DescriptionDeadline time.Time
	GuessingDeadline    time.Time
}

// clone returns a deep copy of the session. Store reads hand out clones so
// handlers can build responses, broadcasts and journal entries after the
// store lock is released while mutators keep writing the live maps.
func (sess *Session) clone() *Session {
	out := *sess
	out.Players = append([]Player(nil), sess.Players...)
	for i := range out.Players {
		if draft := out.Players[i].DraftColor; draft != nil {
			c := *draft
			out.Players[i].DraftColor = &c
		}
	}
	out.Rounds = append([]Round(nil), sess.Rounds...)
	for i := range out.Rounds {
		out.Rounds[i].Submissions = maps.Clone(out.Rounds[i].Submissions)
		out.Rounds[i].Scores = maps.Clone(out.Rounds[i].Scores)
	}
	return &out
}

func currentRound(sess *Session) *Round {
	if len(sess.Rounds) == 0 {
		return nil
	}
	return &sess.Rounds[len(sess.Rounds)-1]
}

// currentRoundIndex is nil while the session is waiting.
func currentRoundIndex(sess *Session) *int {
	if sess.Status != statusPlaying || len(sess.Rounds) == 0 {
		return nil
	}
	index := len(sess.Rounds) - 1
	return &index
}

func findPlayer(sess *Session, playerID string) (*Player, bool) {
	for i := range sess.Players {
		if sess.Players[i].ID == playerID {
			return &sess.Players[i], true
		}
	}
	return nil, false
}

// hostID derives the host from the player list: earliest joinedAt wins, with
// playerId as the tie-break. Host status is never stored, so it transfers
// automatically when the original host leaves.
func hostID(sess *Session) string {
	host := ""
	var joined time.Time
	for i := range sess.Players {
		p := &sess.Players[i]
		if host == "" || p.JoinedAt.Before(joined) || (p.JoinedAt.Equal(joined) && p.ID < host) {
			host = p.ID
			joined = p.JoinedAt
		}
	}
	return host
}

// totalScore is derived on demand as the sum of the player's per-round
// scores.
func totalScore(sess *Session, playerID string) int {
	total := 0
	for i := range sess.Rounds {
		if score, ok := sess.Rounds[i].Scores[playerID]; ok {
			total += score
		}
	}
	return total
}
